package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nanafox/tiny-cart/internal/apperr"
	"github.com/nanafox/tiny-cart/internal/models"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	*Base[models.Product]
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
// Only the owning seller may modify or delete a product.
func NewGORMProductRepository(db *gorm.DB, paging Paging) *GORMProductRepository {
	return &GORMProductRepository{
		Base: NewBase(db, paging, BaseOptions[models.Product]{
			Name: "product",
			Policy: func(actor uuid.UUID, p *models.Product) bool {
				return actor == p.OwnerID
			},
			Sortable: []string{"created_at", "updated_at", "name", "unit_price", "number_in_stock"},
			Joins:    map[string]string{"owner": "Owner"},
			Preloads: []string{"Images"},
			Cascade:  deleteProductCascade,
		}),
		db: db,
	}
}

// GetForUpdate loads a product with a row lock. SQLite ignores the locking
// clause and relies on the transaction holding the database write lock.
func (r *GORMProductRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, translateError(err, "product")
	}
	return &product, nil
}

// DecrementStock is a compare-and-set on number_in_stock that keeps in_stock
// in step with the new count.
func (r *GORMProductRepository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return apperr.New(apperr.InvalidInput, "quantity must be a positive number, got %d", qty)
	}

	res := conn(ctx, r.db).Model(&models.Product{}).
		Where("id = ? AND number_in_stock >= ?", id, qty).
		Updates(map[string]any{
			"number_in_stock": gorm.Expr("number_in_stock - ?", qty),
			"in_stock":        gorm.Expr("number_in_stock - ? > 0", qty),
		})
	if res.Error != nil {
		return translateError(res.Error, "product")
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.InsufficientStock, "product %s does not have %d items left", id, qty)
	}
	return nil
}

// AddImages attaches one image row per blob key to the product.
func (r *GORMProductRepository) AddImages(ctx context.Context, productID uuid.UUID, keys []string) ([]models.Image, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	images := make([]models.Image, 0, len(keys))
	for _, key := range keys {
		images = append(images, models.Image{FilePath: key, ProductID: productID})
	}
	if err := conn(ctx, r.db).Create(&images).Error; err != nil {
		return nil, translateError(err, "image")
	}
	return images, nil
}

// Images lists the images attached to a product.
func (r *GORMProductRepository) Images(ctx context.Context, productID uuid.UUID) ([]models.Image, error) {
	var images []models.Image
	if err := conn(ctx, r.db).Where("product_id = ?", productID).Find(&images).Error; err != nil {
		return nil, translateError(err, "image")
	}
	return images, nil
}

// deleteProductCascade removes the product's images and the orders placed for it.
func deleteProductCascade(tx *gorm.DB, p *models.Product) error {
	if err := tx.Where("product_id = ?", p.ID).Delete(&models.Image{}).Error; err != nil {
		return err
	}
	return tx.Where("product_id = ?", p.ID).Delete(&models.Order{}).Error
}
