package services_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nanafox/tiny-cart/internal/models"
	"github.com/nanafox/tiny-cart/internal/repositories"
	"github.com/nanafox/tiny-cart/internal/services"
	"github.com/nanafox/tiny-cart/internal/storage"
)

// fixture wires the real repositories and services to a test database and an
// in-memory blob store.
type fixture struct {
	db       *gorm.DB
	fs       afero.Fs
	blobs    *storage.DiskStore
	auth     *services.AuthService
	users    *services.UserService
	products *services.ProductService
	orders   *services.OrderService
}

func newFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	blobs, err := storage.NewDiskStore(fs, "uploads")
	require.NoError(t, err)

	paging := repositories.Paging{DefaultLimit: 10, MaxLimit: 100}
	userRepo := repositories.NewGORMUserRepository(db, paging)
	productRepo := repositories.NewGORMProductRepository(db, paging)
	orderRepo := repositories.NewGORMOrderRepository(db, paging)
	tx := repositories.NewGORMTransactor(db)

	return &fixture{
		db:       db,
		fs:       fs,
		blobs:    blobs,
		auth:     services.NewAuthService(userRepo, testJWTSecret, time.Hour),
		users:    services.NewUserService(userRepo, productRepo, orderRepo, tx, blobs),
		products: services.NewProductService(productRepo, orderRepo, tx, blobs),
		orders:   services.NewOrderService(orderRepo, productRepo, tx),
	}
}

func (f *fixture) blobCount(t *testing.T) int {
	t.Helper()
	entries, err := afero.ReadDir(f.fs, "uploads")
	require.NoError(t, err)
	return len(entries)
}

func upload(name, content string) services.Upload {
	return services.Upload{
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func signUp(t *testing.T, f *fixture, username string, role models.Role) *models.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), services.UserCreate{
		Email:    username + "@example.com",
		Username: username,
		Role:     string(role),
		Password: "password123",
	})
	require.NoError(t, err)
	return u
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func repositoriesPage(skip, limit int) repositories.Page {
	return repositories.Page{Skip: skip, Limit: limit}
}
