package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nanafox/tiny-cart/internal/config"
	"github.com/nanafox/tiny-cart/internal/database"
	"github.com/nanafox/tiny-cart/internal/server"
	"github.com/nanafox/tiny-cart/internal/storage"
	"github.com/nanafox/tiny-cart/pkg/logger"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(!cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// --- Database ---
	logLevel := gormlogger.Warn
	if cfg.IsProduction() {
		logLevel = gormlogger.Error
	}
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, logLevel)
	if err != nil {
		logger.Log.Fatal("Failed to open database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Log.Fatal("Failed to get database handle", zap.Error(err))
	}
	defer sqlDB.Close()

	// --- Image storage ---
	blobs, err := storage.NewOSDiskStore(cfg.UploadDir)
	if err != nil {
		logger.Log.Fatal("Failed to prepare upload directory", zap.Error(err))
	}

	// --- Redis (optional, login rate limiting) ---
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Log.Fatal("Invalid REDIS_URL", zap.Error(err))
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The limiter fails open, so the API still serves without Redis.
			logger.Log.Warn("Redis is not reachable", zap.Error(err))
		}
		cancel()
	}

	deps := server.Deps{DB: db, Blobs: blobs, AccessLog: true}
	if rdb != nil {
		deps.Redis = rdb
	}
	app := server.New(cfg, deps)

	// --- Start HTTP Server ---
	logger.Log.Info("Starting server",
		zap.String("port", cfg.AppPort),
		zap.String("environment", cfg.Environment),
		zap.String("database", cfg.DatabaseDriver),
		zap.String("uploads", blobs.Root()))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			logger.Log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	logger.Log.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Log.Error("Error during Fiber shutdown", zap.Error(err))
	}

	logger.Log.Info("Server gracefully stopped")
}
