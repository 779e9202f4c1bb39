package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/nanafox/tiny-cart/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, page Page, scopes ...Scope) ([]models.User, error)
	Update(ctx context.Context, id, actor uuid.UUID, fields map[string]any) (*models.User, error)
	Delete(ctx context.Context, id, actor uuid.UUID) error
	ImageKeysOwnedBy(ctx context.Context, id uuid.UUID) ([]string, error)
}
