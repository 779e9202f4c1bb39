package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nanafox/tiny-cart/internal/apperr"
	"github.com/nanafox/tiny-cart/internal/models"
	"github.com/nanafox/tiny-cart/internal/repositories"
	"github.com/nanafox/tiny-cart/pkg/logger"
)

// OrderService places, changes and removes order lines against product stock.
type OrderService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	tx       repositories.Transactor
}

// NewOrderService creates a new OrderService.
func NewOrderService(orders repositories.OrderRepository, products repositories.ProductRepository, tx repositories.Transactor) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		tx:       tx,
	}
}

// Create places one order line per item for buyerID, in the order given, so
// later items see stock already taken by earlier ones. All lines are created
// in one transaction; any failure leaves stock and orders untouched. Only the
// last line created is returned.
func (s *OrderService) Create(ctx context.Context, buyerID uuid.UUID, items []models.OrderItem) (*models.Order, error) {
	if len(items) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "at least one order item is required")
	}

	var last *models.Order
	err := s.tx.RunAtomic(ctx, func(ctx context.Context) error {
		for _, item := range items {
			if err := s.checkStock(ctx, item); err != nil {
				return err
			}

			order := &models.Order{
				ProductID: item.ProductID,
				UserID:    buyerID,
				Quantity:  item.Quantity,
			}
			if err := s.orders.Create(ctx, order); err != nil {
				return err
			}
			if err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
			last = order
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("order placed",
		zap.String("buyer_id", buyerID.String()),
		zap.Int("lines", len(items)),
		zap.String("last_order_id", last.ID.String()))
	return s.orders.GetByID(ctx, last.ID)
}

// Get retrieves a single order line by its ID.
func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// List retrieves one page of order lines joined with their products.
func (s *OrderService) List(ctx context.Context, page repositories.Page) ([]models.Order, error) {
	page.Join = "product"
	return s.orders.List(ctx, page)
}

// Update re-validates and reserves stock for every item and overwrites the
// existing line with each in turn, so the last item's values are kept.
// Stock taken by the line before the update is not returned.
func (s *OrderService) Update(ctx context.Context, id, buyerID uuid.UUID, items []models.OrderItem) (*models.Order, error) {
	if len(items) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "at least one order item is required")
	}

	err := s.tx.RunAtomic(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.orders.Authorize(buyerID, order, "update"); err != nil {
			logger.Log.Warn("order update rejected",
				zap.String("order_id", id.String()), zap.String("actor", buyerID.String()))
			return err
		}

		for _, item := range items {
			if err := s.checkStock(ctx, item); err != nil {
				return err
			}

			order.ProductID = item.ProductID
			order.Quantity = item.Quantity
			order.Product = nil
			if err := s.orders.Save(ctx, order); err != nil {
				return err
			}
			if err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, id)
}

// Delete removes an order line placed by buyerID. The product is not restocked.
func (s *OrderService) Delete(ctx context.Context, id, buyerID uuid.UUID) error {
	if err := s.orders.Delete(ctx, id, buyerID); err != nil {
		if apperr.KindOf(err) == apperr.Forbidden {
			logger.Log.Warn("order delete rejected",
				zap.String("order_id", id.String()), zap.String("actor", buyerID.String()))
		}
		return err
	}
	return nil
}

// checkStock locks the item's product row and verifies the quantity can be taken.
func (s *OrderService) checkStock(ctx context.Context, item models.OrderItem) error {
	product, err := s.products.GetForUpdate(ctx, item.ProductID)
	if err != nil {
		return err
	}
	available := product.NumberInStock
	if err := product.Reserve(item.Quantity); err != nil {
		logger.Log.Warn("order item rejected",
			zap.String("product_id", product.ID.String()),
			zap.Int("requested", item.Quantity),
			zap.Int("available", available),
			zap.Error(err))
		return err
	}
	logger.Log.Debug("stock reserved",
		zap.String("product_id", product.ID.String()),
		zap.Int("requested", item.Quantity),
		zap.Int("remaining", product.NumberInStock))
	return nil
}
