package repositories_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/nanafox/tiny-cart/internal/apperr"
	"github.com/nanafox/tiny-cart/internal/models"
	"github.com/nanafox/tiny-cart/internal/repositories"
	"github.com/nanafox/tiny-cart/internal/testutil"
)

type RepositoryTestSuite struct {
	suite.Suite
	db       *gorm.DB
	ctx      context.Context
	users    *repositories.GORMUserRepository
	products *repositories.GORMProductRepository
	orders   *repositories.GORMOrderRepository
	tx       *repositories.GORMTransactor
	seller   *models.User
	buyer    *models.User
}

func (s *RepositoryTestSuite) SetupTest() {
	s.db = testutil.NewSQLite(s.T())
	s.ctx = context.Background()
	paging := repositories.Paging{DefaultLimit: 2, MaxLimit: 3}
	s.users = repositories.NewGORMUserRepository(s.db, paging)
	s.products = repositories.NewGORMProductRepository(s.db, paging)
	s.orders = repositories.NewGORMOrderRepository(s.db, paging)
	s.tx = repositories.NewGORMTransactor(s.db)
	s.seller = testutil.CreateUser(s.T(), s.db, "seller", models.RoleSeller)
	s.buyer = testutil.CreateUser(s.T(), s.db, "buyer", models.RoleBuyer)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) TestGetByIDNotFound() {
	_, err := s.products.GetByID(s.ctx, uuid.New())
	s.ErrorIs(err, apperr.ErrNotFound)
	s.Equal("product not found", apperr.DetailOf(err))
}

func (s *RepositoryTestSuite) TestCreateDuplicateEmailIsConflict() {
	dup := &models.User{Email: s.buyer.Email, Username: "other", Role: models.RoleBuyer, Password: "x"}
	err := s.users.Create(s.ctx, dup)
	s.ErrorIs(err, apperr.ErrConflict)
	s.NotContains(apperr.DetailOf(err), `"`)
}

func (s *RepositoryTestSuite) TestListClampsLimit() {
	for i := 0; i < 5; i++ {
		testutil.CreateProduct(s.T(), s.db, s.seller, "item", 1)
	}

	page, err := s.products.List(s.ctx, repositories.Page{})
	s.Require().NoError(err)
	s.Len(page, 2, "default page size")

	page, err = s.products.List(s.ctx, repositories.Page{Limit: 1000})
	s.Require().NoError(err)
	s.Len(page, 3, "limit is clamped to the maximum")

	page, err = s.products.List(s.ctx, repositories.Page{Skip: 4, Limit: 3})
	s.Require().NoError(err)
	s.Len(page, 1)
}

func (s *RepositoryTestSuite) TestListOrdering() {
	testutil.CreateProduct(s.T(), s.db, s.seller, "b-item", 1)
	testutil.CreateProduct(s.T(), s.db, s.seller, "a-item", 1)
	testutil.CreateProduct(s.T(), s.db, s.seller, "c-item", 1)

	page, err := s.products.List(s.ctx, repositories.Page{Limit: 3, OrderBy: "-name"})
	s.Require().NoError(err)
	s.Require().Len(page, 3)
	s.Equal([]string{"c-item", "b-item", "a-item"}, []string{page[0].Name, page[1].Name, page[2].Name})
}

func (s *RepositoryTestSuite) TestListRejectsUnknownOrderAndJoin() {
	_, err := s.products.List(s.ctx, repositories.Page{OrderBy: "password"})
	s.ErrorIs(err, apperr.ErrInvalidQuery)

	_, err = s.products.List(s.ctx, repositories.Page{OrderBy: "name; DROP TABLE products"})
	s.ErrorIs(err, apperr.ErrInvalidQuery)

	_, err = s.orders.List(s.ctx, repositories.Page{Join: "users"})
	s.ErrorIs(err, apperr.ErrInvalidQuery)

	_, err = s.orders.List(s.ctx, repositories.Page{Skip: -1})
	s.ErrorIs(err, apperr.ErrInvalidQuery)
}

func (s *RepositoryTestSuite) TestOrderListJoinsProduct() {
	p := testutil.CreateProduct(s.T(), s.db, s.seller, "lamp", 5)
	s.Require().NoError(s.orders.Create(s.ctx, &models.Order{ProductID: p.ID, UserID: s.buyer.ID, Quantity: 1}))

	orders, err := s.orders.List(s.ctx, repositories.Page{Join: "product", OrderBy: "-created_at"},
		repositories.PlacedBy(s.buyer.ID))
	s.Require().NoError(err)
	s.Require().Len(orders, 1)
	s.Require().NotNil(orders[0].Product)
	s.Equal("lamp", orders[0].Product.Name)
}

func (s *RepositoryTestSuite) TestUpdateUsesEntityPolicy() {
	p := testutil.CreateProduct(s.T(), s.db, s.seller, "lamp", 5)

	_, err := s.products.Update(s.ctx, p.ID, s.buyer.ID, map[string]any{"name": "stolen"})
	s.ErrorIs(err, apperr.ErrForbidden)
	s.Equal("lamp", testutil.ReloadProduct(s.T(), s.db, p.ID).Name)

	// The product's own id is not an owner.
	_, err = s.products.Update(s.ctx, p.ID, p.ID, map[string]any{"name": "stolen"})
	s.ErrorIs(err, apperr.ErrForbidden)

	updated, err := s.products.Update(s.ctx, p.ID, s.seller.ID, map[string]any{"name": "desk lamp"})
	s.Require().NoError(err)
	s.Equal("desk lamp", updated.Name)

	_, err = s.products.Update(s.ctx, uuid.New(), s.seller.ID, map[string]any{"name": "x"})
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *RepositoryTestSuite) TestUserPolicyIsSelfOnly() {
	_, err := s.users.Update(s.ctx, s.buyer.ID, s.seller.ID, map[string]any{"username": "hijack"})
	s.ErrorIs(err, apperr.ErrForbidden)

	u, err := s.users.Update(s.ctx, s.buyer.ID, s.buyer.ID, map[string]any{"username": "buyer2"})
	s.Require().NoError(err)
	s.Equal("buyer2", u.Username)

	_, err = s.users.Update(s.ctx, s.buyer.ID, s.buyer.ID, map[string]any{"username": s.seller.Username})
	s.ErrorIs(err, apperr.ErrConflict)
}

func (s *RepositoryTestSuite) TestDecrementStock() {
	p := testutil.CreateProduct(s.T(), s.db, s.seller, "lamp", 3)

	s.Require().NoError(s.products.DecrementStock(s.ctx, p.ID, 2))
	stored := testutil.ReloadProduct(s.T(), s.db, p.ID)
	s.Equal(1, stored.NumberInStock)
	s.True(stored.InStock)

	err := s.products.DecrementStock(s.ctx, p.ID, 2)
	s.ErrorIs(err, apperr.ErrInsufficientStock)
	s.Equal(1, testutil.ReloadProduct(s.T(), s.db, p.ID).NumberInStock)

	s.Require().NoError(s.products.DecrementStock(s.ctx, p.ID, 1))
	stored = testutil.ReloadProduct(s.T(), s.db, p.ID)
	s.Equal(0, stored.NumberInStock)
	s.False(stored.InStock)
}

func (s *RepositoryTestSuite) TestRunAtomicRollsBack() {
	p := testutil.CreateProduct(s.T(), s.db, s.seller, "lamp", 3)

	err := s.tx.RunAtomic(s.ctx, func(ctx context.Context) error {
		if err := s.products.DecrementStock(ctx, p.ID, 1); err != nil {
			return err
		}
		if err := s.orders.Create(ctx, &models.Order{ProductID: p.ID, UserID: s.buyer.ID, Quantity: 1}); err != nil {
			return err
		}
		return s.products.DecrementStock(ctx, p.ID, 10)
	})
	s.ErrorIs(err, apperr.ErrInsufficientStock)

	s.Equal(3, testutil.ReloadProduct(s.T(), s.db, p.ID).NumberInStock)
	var count int64
	s.Require().NoError(s.db.Model(&models.Order{}).Count(&count).Error)
	s.Zero(count)
}

func (s *RepositoryTestSuite) TestDeleteProductCascades() {
	p := testutil.CreateProduct(s.T(), s.db, s.seller, "lamp", 3)
	_, err := s.products.AddImages(s.ctx, p.ID, []string{"a.jpg", "b.jpg"})
	s.Require().NoError(err)
	s.Require().NoError(s.orders.Create(s.ctx, &models.Order{ProductID: p.ID, UserID: s.buyer.ID, Quantity: 1}))

	s.ErrorIs(s.products.Delete(s.ctx, p.ID, s.buyer.ID), apperr.ErrForbidden)

	s.Require().NoError(s.products.Delete(s.ctx, p.ID, s.seller.ID))
	s.assertCount(&models.Product{}, 0)
	s.assertCount(&models.Image{}, 0)
	s.assertCount(&models.Order{}, 0)
}

func (s *RepositoryTestSuite) TestDeleteUserCascades() {
	mine := testutil.CreateProduct(s.T(), s.db, s.seller, "mine", 3)
	other := testutil.CreateUser(s.T(), s.db, "other", models.RoleSeller)
	theirs := testutil.CreateProduct(s.T(), s.db, other, "theirs", 3)
	_, err := s.products.AddImages(s.ctx, mine.ID, []string{"mine.jpg"})
	s.Require().NoError(err)
	_, err = s.products.AddImages(s.ctx, theirs.ID, []string{"theirs.jpg"})
	s.Require().NoError(err)

	// An order on the seller's product, and one placed by the seller.
	s.Require().NoError(s.orders.Create(s.ctx, &models.Order{ProductID: mine.ID, UserID: s.buyer.ID, Quantity: 1}))
	s.Require().NoError(s.orders.Create(s.ctx, &models.Order{ProductID: theirs.ID, UserID: s.seller.ID, Quantity: 1}))
	kept := &models.Order{ProductID: theirs.ID, UserID: s.buyer.ID, Quantity: 1}
	s.Require().NoError(s.orders.Create(s.ctx, kept))

	keys, err := s.users.ImageKeysOwnedBy(s.ctx, s.seller.ID)
	s.Require().NoError(err)
	s.Equal([]string{"mine.jpg"}, keys)

	s.ErrorIs(s.users.Delete(s.ctx, s.seller.ID, s.buyer.ID), apperr.ErrForbidden)
	s.Require().NoError(s.users.Delete(s.ctx, s.seller.ID, s.seller.ID))

	_, err = s.users.GetByID(s.ctx, s.seller.ID)
	s.ErrorIs(err, apperr.ErrNotFound)
	_, err = s.products.GetByID(s.ctx, mine.ID)
	s.ErrorIs(err, apperr.ErrNotFound)

	remaining, err := s.orders.List(s.ctx, repositories.Page{Limit: 3})
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(kept.ID, remaining[0].ID)
	s.assertCount(&models.Image{}, 1)
	s.assertCount(&models.Product{}, 1)
}

func (s *RepositoryTestSuite) assertCount(model any, expected int64) {
	var count int64
	require.NoError(s.T(), s.db.Model(model).Count(&count).Error)
	assert.Equal(s.T(), expected, count)
}
