// Package testutil provides database fixtures for package tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nanafox/tiny-cart/internal/database"
	"github.com/nanafox/tiny-cart/internal/models"
)

func open(t testing.TB, dsn string) *gorm.DB {
	t.Helper()

	db, err := database.Open("sqlite", dsn, gormlogger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewSQLite opens a private in-memory database with every model migrated.
// The pool is limited to one connection, so code under test must route every
// query inside a transaction through that transaction.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()
	db := open(t, fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString()))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

// NewFileSQLite opens a database file in a temporary directory with the same
// connection options the application uses for a plain file path.
func NewFileSQLite(t testing.TB) *gorm.DB {
	t.Helper()
	return open(t, filepath.Join(t.TempDir(), "tinycart.db"))
}

// CreateUser stores a user with the given role. The password column holds a
// placeholder rather than a real hash.
func CreateUser(t testing.TB, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Email:    username + "@example.com",
		Username: username,
		Role:     role,
		Password: "not-a-real-hash",
		IsActive: true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateProduct stores a product owned by owner with stock units available.
func CreateProduct(t testing.TB, db *gorm.DB, owner *models.User, name string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:          name,
		Description:   name + " description",
		UnitPrice:     decimal.RequireFromString("19.99"),
		NumberInStock: stock,
		OwnerID:       owner.ID,
	}
	require.NoError(t, db.Omit("Owner", "Images").Create(p).Error)
	return p
}

// ReloadProduct reads the current stored state of a product.
func ReloadProduct(t testing.TB, db *gorm.DB, id uuid.UUID) *models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return &p
}

// RequireStockInvariant asserts the stored stock flag matches the stored count.
func RequireStockInvariant(t testing.TB, db *gorm.DB, id uuid.UUID) {
	t.Helper()
	p := ReloadProduct(t, db, id)
	require.GreaterOrEqual(t, p.NumberInStock, 0)
	require.Equal(t, p.NumberInStock > 0, p.InStock, "in_stock must follow number_in_stock")
}
