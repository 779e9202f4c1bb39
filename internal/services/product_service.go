package services

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nanafox/tiny-cart/internal/apperr"
	"github.com/nanafox/tiny-cart/internal/models"
	"github.com/nanafox/tiny-cart/internal/repositories"
	"github.com/nanafox/tiny-cart/internal/storage"
	"github.com/nanafox/tiny-cart/pkg/logger"
)

// Upload is an image file submitted with a product.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// ProductCreate is the input for listing a new product. InStock is optional
// and must agree with NumberInStock when given.
type ProductCreate struct {
	Name          string
	Description   string
	UnitPrice     decimal.Decimal
	InStock       *bool
	NumberInStock int
}

// ProductUpdate carries the product fields to change. Nil fields are left alone.
type ProductUpdate struct {
	Name          *string
	Description   *string
	UnitPrice     *decimal.Decimal
	InStock       *bool
	NumberInStock *int
}

// ProductService handles business logic related to products.
type ProductService struct {
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	tx       repositories.Transactor
	blobs    storage.BlobStore
}

// NewProductService creates a new ProductService.
func NewProductService(
	products repositories.ProductRepository,
	orders repositories.OrderRepository,
	tx repositories.Transactor,
	blobs storage.BlobStore,
) *ProductService {
	return &ProductService{products: products, orders: orders, tx: tx, blobs: blobs}
}

// Create stores a product owned by ownerID, then attaches the uploaded images.
// The caller must already have checked that the owner may sell.
func (s *ProductService) Create(ctx context.Context, ownerID uuid.UUID, in ProductCreate, uploads []Upload) (*models.Product, error) {
	if err := validateProductFields(&in.Name, in.UnitPrice, in.NumberInStock); err != nil {
		return nil, err
	}
	if err := checkStockFlag(in.InStock, in.NumberInStock); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:          in.Name,
		Description:   in.Description,
		UnitPrice:     in.UnitPrice,
		NumberInStock: in.NumberInStock,
		OwnerID:       ownerID,
	}
	product.SyncStockFlag()

	var keys []string
	err := s.tx.RunAtomic(ctx, func(ctx context.Context) error {
		if err := s.products.Create(ctx, product); err != nil {
			return err
		}
		var err error
		keys, err = s.attachImages(ctx, product.ID, uploads)
		return err
	})
	if err != nil {
		removeBlobs(ctx, s.blobs, keys)
		return nil, err
	}

	logger.Log.Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.Int("images", len(keys)))
	return s.products.GetByID(ctx, product.ID)
}

// Get retrieves a single product by its ID.
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.products.GetByID(ctx, id)
}

// List retrieves one page of products.
func (s *ProductService) List(ctx context.Context, page repositories.Page) ([]models.Product, error) {
	return s.products.List(ctx, page)
}

// Update applies a partial update on behalf of actor, who must own the
// product. New uploads are appended; existing images are kept.
func (s *ProductService) Update(ctx context.Context, id, actor uuid.UUID, in ProductUpdate, uploads []Upload) (*models.Product, error) {
	var keys []string
	err := s.tx.RunAtomic(ctx, func(ctx context.Context) error {
		current, err := s.products.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.products.Authorize(actor, current, "update"); err != nil {
			logger.Log.Warn("product update rejected",
				zap.String("product_id", id.String()), zap.String("actor", actor.String()))
			return err
		}

		fields, err := productFields(current, in)
		if err != nil {
			return err
		}
		if _, err := s.products.Update(ctx, id, actor, fields); err != nil {
			return err
		}

		keys, err = s.attachImages(ctx, id, uploads)
		return err
	})
	if err != nil {
		removeBlobs(ctx, s.blobs, keys)
		return nil, err
	}
	return s.products.GetByID(ctx, id)
}

// Delete removes a product with its images and the orders placed for it.
func (s *ProductService) Delete(ctx context.Context, id, actor uuid.UUID) error {
	var images []models.Image
	err := s.tx.RunAtomic(ctx, func(ctx context.Context) error {
		var err error
		if images, err = s.products.Images(ctx, id); err != nil {
			return err
		}
		return s.products.Delete(ctx, id, actor)
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.Forbidden {
			logger.Log.Warn("product delete rejected",
				zap.String("product_id", id.String()), zap.String("actor", actor.String()))
		}
		return err
	}

	keys := make([]string, 0, len(images))
	for _, img := range images {
		keys = append(keys, img.FilePath)
	}
	removeBlobs(ctx, s.blobs, keys)
	logger.Log.Info("product deleted", zap.String("product_id", id.String()))
	return nil
}

// Orders lists the order lines placed for product id.
func (s *ProductService) Orders(ctx context.Context, id uuid.UUID, page repositories.Page) ([]models.Order, error) {
	if _, err := s.products.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.orders.List(ctx, page, repositories.ForProduct(id))
}

// attachImages stores each upload as a blob and records it against the
// product. It returns the keys written so far, even on error.
func (s *ProductService) attachImages(ctx context.Context, productID uuid.UUID, uploads []Upload) ([]string, error) {
	keys := make([]string, 0, len(uploads))
	for _, up := range uploads {
		key, err := s.storeUpload(ctx, up)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	if _, err := s.products.AddImages(ctx, productID, keys); err != nil {
		return keys, err
	}
	return keys, nil
}

func (s *ProductService) storeUpload(ctx context.Context, up Upload) (string, error) {
	r, err := up.Open()
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidInput, err, "could not read image %s", up.Filename)
	}
	defer r.Close()

	key, err := s.blobs.Put(ctx, up.Filename, r)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "could not save image %s", up.Filename)
	}
	return key, nil
}

func validateProductFields(name *string, price decimal.Decimal, stock int) error {
	if name != nil && *name == "" {
		return apperr.New(apperr.InvalidInput, "name must not be empty")
	}
	if price.IsNegative() {
		return apperr.New(apperr.InvalidInput, "unit_price must not be negative")
	}
	if stock < 0 {
		return apperr.New(apperr.InvalidInput, "number_in_stock must not be negative")
	}
	return nil
}

// checkStockFlag rejects an explicit in_stock value that contradicts the count.
func checkStockFlag(inStock *bool, stock int) error {
	if inStock != nil && *inStock != (stock > 0) {
		return apperr.New(apperr.InvalidInput,
			"in_stock must be %t when number_in_stock is %d", stock > 0, stock)
	}
	return nil
}

// productFields turns a partial update into column values, deriving in_stock
// from the resulting stock count.
func productFields(current *models.Product, in ProductUpdate) (map[string]any, error) {
	price := current.UnitPrice
	if in.UnitPrice != nil {
		price = *in.UnitPrice
	}
	stock := current.NumberInStock
	if in.NumberInStock != nil {
		stock = *in.NumberInStock
	}
	if err := validateProductFields(in.Name, price, stock); err != nil {
		return nil, err
	}
	if err := checkStockFlag(in.InStock, stock); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Name != nil {
		fields["name"] = *in.Name
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.UnitPrice != nil {
		fields["unit_price"] = *in.UnitPrice
	}
	if in.NumberInStock != nil || in.InStock != nil {
		fields["number_in_stock"] = stock
		fields["in_stock"] = stock > 0
	}
	return fields, nil
}
