package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nanafox/tiny-cart/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, page Page, scopes ...Scope) ([]models.Product, error)
	Update(ctx context.Context, id, actor uuid.UUID, fields map[string]any) (*models.Product, error)
	Delete(ctx context.Context, id, actor uuid.UUID) error
	Authorize(actor uuid.UUID, product *models.Product, action string) error

	// GetForUpdate loads a product and locks its row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error)
	// DecrementStock takes qty units off the stored count, failing with
	// InsufficientStock when fewer than qty remain.
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error

	AddImages(ctx context.Context, productID uuid.UUID, keys []string) ([]models.Image, error)
	Images(ctx context.Context, productID uuid.UUID) ([]models.Image, error)
}

// OwnedBy restricts a product listing to one seller.
func OwnedBy(ownerID uuid.UUID) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("owner_id = ?", ownerID)
	}
}
