package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nanafox/tiny-cart/internal/middleware"
	"github.com/nanafox/tiny-cart/internal/services"
)

// UserHandler handles HTTP requests for users.
type UserHandler struct {
	service  *services.UserService
	validate *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the user routes. Signing up is public; every other
// route runs behind auth.
func (h *UserHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	userRoutes := router.Group("/users")
	userRoutes.Post("/", h.HandleCreateUser)

	userRoutes.Get("/", auth, h.HandleGetUsers)

	// "/me" routes are registered before "/:id" so they are not shadowed.
	userRoutes.Get("/me", auth, h.HandleGetMe)
	userRoutes.Put("/me", auth, h.HandleUpdateMe)
	userRoutes.Delete("/me", auth, h.HandleDeleteMe)
	userRoutes.Put("/me/password", auth, h.HandleChangePassword)
	userRoutes.Get("/me/orders", auth, h.HandleGetMyOrders)
	userRoutes.Get("/me/products", auth, h.HandleGetMyProducts)

	userRoutes.Get("/:id", auth, h.HandleGetUser)
	userRoutes.Put("/:id", auth, h.HandleUpdateUser)
	userRoutes.Delete("/:id", auth, h.HandleDeleteUser)
	userRoutes.Get("/:id/orders", auth, h.HandleGetUserOrders)
	userRoutes.Get("/:id/products", auth, h.HandleGetUserProducts)
}

// HandleCreateUser signs up a buyer or a seller.
func (h *UserHandler) HandleCreateUser(c *fiber.Ctx) error {
	var req services.UserCreate
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	user, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "User created successfully", user)
}

// HandleGetUsers lists users, or returns the single user matching the
// username or email query parameter.
func (h *UserHandler) HandleGetUsers(c *fiber.Ctx) error {
	if username := c.Query("username"); username != "" {
		user, err := h.service.GetByUsername(c.UserContext(), username)
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, "", user)
	}
	if email := c.Query("email"); email != "" {
		user, err := h.service.GetByEmail(c.UserContext(), email)
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, "", user)
	}

	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}
	users, err := h.service.List(c.UserContext(), page)
	if err != nil {
		return err
	}
	return respondList(c, users)
}

// HandleGetMe returns the authenticated user.
func (h *UserHandler) HandleGetMe(c *fiber.Ctx) error {
	return respond(c, fiber.StatusOK, "", middleware.CurrentUser(c))
}

// HandleGetUser retrieves a single user by their ID.
func (h *UserHandler) HandleGetUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", user)
}

// HandleUpdateMe updates the authenticated user.
func (h *UserHandler) HandleUpdateMe(c *fiber.Ctx) error {
	return h.update(c, middleware.CurrentUser(c).ID)
}

// HandleUpdateUser updates a user by id. Only the user themselves may do so.
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	return h.update(c, id)
}

func (h *UserHandler) update(c *fiber.Ctx, id uuid.UUID) error {
	var req services.UserUpdate
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	user, err := h.service.Update(c.UserContext(), id, middleware.CurrentUser(c).ID, req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "User updated successfully", user)
}

// HandleChangePassword replaces the current user's password.
func (h *UserHandler) HandleChangePassword(c *fiber.Ctx) error {
	var req services.PasswordChange
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	if err := h.service.ChangePassword(c.UserContext(), middleware.CurrentUser(c).ID, req); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Password updated successfully", nil)
}

// HandleDeleteMe deletes the authenticated user with everything they own.
func (h *UserHandler) HandleDeleteMe(c *fiber.Ctx) error {
	return h.delete(c, middleware.CurrentUser(c).ID)
}

// HandleDeleteUser deletes a user by id. Only the user themselves may do so.
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	return h.delete(c, id)
}

func (h *UserHandler) delete(c *fiber.Ctx, id uuid.UUID) error {
	if err := h.service.Delete(c.UserContext(), id, middleware.CurrentUser(c).ID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleGetMyOrders lists the order lines placed by the authenticated user.
func (h *UserHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	return h.orders(c, middleware.CurrentUser(c).ID)
}

// HandleGetUserOrders lists the order lines placed by a user.
func (h *UserHandler) HandleGetUserOrders(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	return h.orders(c, id)
}

func (h *UserHandler) orders(c *fiber.Ctx, id uuid.UUID) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}
	orders, err := h.service.Orders(c.UserContext(), id, page)
	if err != nil {
		return err
	}
	return respondList(c, orders)
}

// HandleGetMyProducts lists the products listed by the authenticated user.
func (h *UserHandler) HandleGetMyProducts(c *fiber.Ctx) error {
	return h.products(c, middleware.CurrentUser(c).ID)
}

// HandleGetUserProducts lists the products listed by a user.
func (h *UserHandler) HandleGetUserProducts(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	return h.products(c, id)
}

func (h *UserHandler) products(c *fiber.Ctx, id uuid.UUID) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}
	products, err := h.service.Products(c.UserContext(), id, page)
	if err != nil {
		return err
	}
	return respondList(c, products)
}
