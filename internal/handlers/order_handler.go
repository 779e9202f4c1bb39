package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/nanafox/tiny-cart/internal/middleware"
	"github.com/nanafox/tiny-cart/internal/models"
	"github.com/nanafox/tiny-cart/internal/services"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes, all behind auth.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	orderRoutes := router.Group("/orders", auth)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Put("/:id", h.HandleUpdateOrder)
	orderRoutes.Delete("/:id", h.HandleDeleteOrder)
}

// OrderRequest is the body of order creation and update.
type OrderRequest struct {
	Orders []models.OrderItem `json:"orders" validate:"required,min=1,dive"`
}

// HandleGetOrders retrieves one page of order lines with their products.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}
	orders, err := h.service.List(c.UserContext(), page)
	if err != nil {
		return err
	}
	return respondList(c, orders)
}

// HandleGetOrderByID retrieves a single order line by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", order)
}

// HandleCreateOrder places one order line per item and returns the last one.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req OrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	order, err := h.service.Create(c.UserContext(), middleware.CurrentUser(c).ID, req.Orders)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "Order created successfully", order)
}

// HandleUpdateOrder rewrites an order line placed by the current user.
func (h *OrderHandler) HandleUpdateOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req OrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	order, err := h.service.Update(c.UserContext(), id, middleware.CurrentUser(c).ID, req.Orders)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Order updated successfully", order)
}

// HandleDeleteOrder removes an order line placed by the current user.
func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id, middleware.CurrentUser(c).ID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
