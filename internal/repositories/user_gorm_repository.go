package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nanafox/tiny-cart/internal/models"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	*Base[models.User]
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
// Users may only modify or delete their own record.
func NewGORMUserRepository(db *gorm.DB, paging Paging) *GORMUserRepository {
	return &GORMUserRepository{
		Base: NewBase(db, paging, BaseOptions[models.User]{
			Name: "user",
			Policy: func(actor uuid.UUID, u *models.User) bool {
				return actor == u.ID
			},
			Sortable: []string{"created_at", "updated_at", "username", "email", "role"},
			Cascade:  deleteUserCascade,
		}),
		db: db,
	}
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).First(&user, "username = ?", username).Error; err != nil {
		return nil, translateError(err, "user")
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).First(&user, "email = ?", email).Error; err != nil {
		return nil, translateError(err, "user")
	}
	return &user, nil
}

// ImageKeysOwnedBy returns the blob keys of every image on the user's products.
func (r *GORMUserRepository) ImageKeysOwnedBy(ctx context.Context, id uuid.UUID) ([]string, error) {
	var keys []string
	db := conn(ctx, r.db)
	err := db.Model(&models.Image{}).
		Where("product_id IN (?)", db.Model(&models.Product{}).Select("id").Where("owner_id = ?", id)).
		Pluck("file_path", &keys).Error
	if err != nil {
		return nil, translateError(err, "image")
	}
	return keys, nil
}

// deleteUserCascade removes everything that hangs off a user: orders the user
// placed or that reference the user's products, the images of those products
// and the products themselves.
func deleteUserCascade(tx *gorm.DB, u *models.User) error {
	owned := func() *gorm.DB {
		return tx.Model(&models.Product{}).Select("id").Where("owner_id = ?", u.ID)
	}

	if err := tx.Where("user_id = ? OR product_id IN (?)", u.ID, owned()).Delete(&models.Order{}).Error; err != nil {
		return err
	}
	if err := tx.Where("product_id IN (?)", owned()).Delete(&models.Image{}).Error; err != nil {
		return err
	}
	return tx.Where("owner_id = ?", u.ID).Delete(&models.Product{}).Error
}
