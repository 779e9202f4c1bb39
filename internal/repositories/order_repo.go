package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nanafox/tiny-cart/internal/models"
)

// OrderRepository defines the interface for order line data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, page Page, scopes ...Scope) ([]models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id, actor uuid.UUID) error
	Authorize(actor uuid.UUID, order *models.Order, action string) error
}

// PlacedBy restricts an order listing to one buyer.
func PlacedBy(userID uuid.UUID) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "user_id"}, Value: userID})
	}
}

// ForProduct restricts an order listing to one product.
func ForProduct(productID uuid.UUID) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "product_id"}, Value: productID})
	}
}
