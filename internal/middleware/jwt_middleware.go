package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nanafox/tiny-cart/internal/apperr"
	"github.com/nanafox/tiny-cart/internal/models"
	"github.com/nanafox/tiny-cart/internal/services"
	"github.com/nanafox/tiny-cart/pkg/logger"
)

const userKey = "user"

// AuthRequired is a Fiber middleware that resolves the bearer token to an
// active user and stores it in the request locals.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return apperr.New(apperr.Unauthorized, "Not authenticated")
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && strings.EqualFold(parts[0], "Bearer")) {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return apperr.New(apperr.Unauthorized, "Authorization header format must be 'Bearer <token>'")
		}

		user, err := authService.Authenticate(c.UserContext(), strings.TrimSpace(parts[1]))
		if err != nil {
			logger.Log.Warn("token rejected", zap.String("path", c.Path()), zap.Error(err))
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return err
		}

		c.Locals(userKey, user)
		return c.Next()
	}
}

// RequireSeller rejects users whose role may not list products. It must run
// after AuthRequired.
func RequireSeller() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return apperr.New(apperr.Unauthorized, "Not authenticated")
		}
		if !user.Role.CanSell() {
			logger.Log.Warn("seller route rejected", zap.String("user_id", user.ID.String()))
			return apperr.New(apperr.Forbidden, "You are not authorized to perform this action.")
		}
		return c.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}
