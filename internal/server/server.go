// Package server assembles the Fiber application from its repositories,
// services and handlers.
package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/nanafox/tiny-cart/internal/config"
	"github.com/nanafox/tiny-cart/internal/handlers"
	"github.com/nanafox/tiny-cart/internal/middleware"
	"github.com/nanafox/tiny-cart/internal/repositories"
	"github.com/nanafox/tiny-cart/internal/services"
	"github.com/nanafox/tiny-cart/internal/storage"
)

const (
	Title   = "Tiny Cart API"
	Version = "1.0.0"
)

// Deps are the external resources the application runs on. Redis is optional;
// without it logins are not rate limited.
type Deps struct {
	DB    *gorm.DB
	Blobs *storage.DiskStore
	Redis redis.Cmdable
	// AccessLog enables per-request access logging.
	AccessLog bool
}

// New builds the Fiber application with every route mounted.
func New(cfg *config.Config, deps Deps) *fiber.App {
	paging := repositories.Paging{
		DefaultLimit: cfg.PaginationDefaultPage,
		MaxLimit:     cfg.PaginationLimit,
	}

	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(deps.DB, paging)
	productRepo := repositories.NewGORMProductRepository(deps.DB, paging)
	orderRepo := repositories.NewGORMOrderRepository(deps.DB, paging)
	tx := repositories.NewGORMTransactor(deps.DB)

	// --- Services ---
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenExpiry)
	userService := services.NewUserService(userRepo, productRepo, orderRepo, tx, deps.Blobs)
	productService := services.NewProductService(productRepo, orderRepo, tx, deps.Blobs)
	orderService := services.NewOrderService(orderRepo, productRepo, tx)

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(orderService)

	app := fiber.New(fiber.Config{
		AppName:      Title,
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    cfg.MaxUploadSizeMB * 1024 * 1024,
	})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(cors.New())
	if deps.AccessLog {
		app.Use(fiberlogger.New())
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	app.Use("/uploads", filesystem.New(filesystem.Config{
		Root:   deps.Blobs.HTTPFileSystem(),
		MaxAge: 3600,
	}))

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": Version,
			"title":   Title,
		})
	})

	var loginGuards []fiber.Handler
	if deps.Redis != nil {
		limiter := middleware.NewRateLimiter(deps.Redis, middleware.RateLimiterConfig{
			MaxRequests: cfg.LoginRateLimit,
			Window:      cfg.LoginRateWindow,
			Prefix:      "ratelimit:login",
		})
		loginGuards = append(loginGuards, limiter.Middleware())
	}

	auth := middleware.AuthRequired(authService)
	authHandler.RegisterRoutes(apiV1, loginGuards...)
	userHandler.RegisterRoutes(apiV1, auth)
	productHandler.RegisterRoutes(apiV1, auth)
	orderHandler.RegisterRoutes(apiV1, auth)

	return app
}
