package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nanafox/tiny-cart/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	*Base[models.Order]
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
// Only the buyer who placed an order may modify or delete it.
func NewGORMOrderRepository(db *gorm.DB, paging Paging) *GORMOrderRepository {
	return &GORMOrderRepository{
		Base: NewBase(db, paging, BaseOptions[models.Order]{
			Name: "order",
			Policy: func(actor uuid.UUID, o *models.Order) bool {
				return actor == o.UserID
			},
			Sortable: []string{"created_at", "updated_at", "quantity"},
			Joins:    map[string]string{"product": "Product"},
			Preloads: []string{"Product"},
		}),
		db: db,
	}
}

// Save overwrites every column of an existing order line.
func (r *GORMOrderRepository) Save(ctx context.Context, order *models.Order) error {
	res := conn(ctx, r.db).Omit(clause.Associations).Save(order)
	if res.Error != nil {
		return translateError(res.Error, "order")
	}
	return nil
}
