package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting of the API.
type Config struct {
	AppPort     string
	Environment string

	DatabaseDriver string
	DatabaseDSN    string

	JWTSecret   string
	TokenExpiry time.Duration

	PaginationLimit       int
	PaginationDefaultPage int

	UploadDir       string
	MaxUploadSizeMB int
	RedisURL        string
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

// IsProduction reports whether the API runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "tinycart.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 3600)
	v.SetDefault("PAGINATION_LIMIT", 100)
	v.SetDefault("PAGINATION_DEFAULT_PAGE", 10)
	v.SetDefault("UPLOAD_DIR", "uploaded_images")
	v.SetDefault("MAX_UPLOAD_SIZE_MB", 10)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOGIN_RATE_LIMIT_MAX", 10)
	v.SetDefault("LOGIN_RATE_LIMIT_WINDOW", "1m")
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	// Containers pass variables directly, so a missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper builds and validates a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:               v.GetString("APP_PORT"),
		Environment:           v.GetString("ENVIRONMENT"),
		DatabaseDriver:        v.GetString("DATABASE_DRIVER"),
		DatabaseDSN:           v.GetString("DATABASE_DSN"),
		JWTSecret:             v.GetString("JWT_SECRET"),
		TokenExpiry:           time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute,
		PaginationLimit:       v.GetInt("PAGINATION_LIMIT"),
		PaginationDefaultPage: v.GetInt("PAGINATION_DEFAULT_PAGE"),
		UploadDir:             v.GetString("UPLOAD_DIR"),
		MaxUploadSizeMB:       v.GetInt("MAX_UPLOAD_SIZE_MB"),
		RedisURL:              v.GetString("REDIS_URL"),
		LoginRateLimit:        v.GetInt("LOGIN_RATE_LIMIT_MAX"),
		LoginRateWindow:       v.GetDuration("LOGIN_RATE_LIMIT_WINDOW"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN must be set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.TokenExpiry <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.PaginationDefaultPage <= 0 || c.PaginationLimit <= 0 {
		return fmt.Errorf("pagination settings must be positive")
	}
	if c.PaginationLimit < c.PaginationDefaultPage {
		return fmt.Errorf("PAGINATION_LIMIT (%d) must not be lower than PAGINATION_DEFAULT_PAGE (%d)",
			c.PaginationLimit, c.PaginationDefaultPage)
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR must be set")
	}
	if c.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.RedisURL != "" && (c.LoginRateLimit <= 0 || c.LoginRateWindow <= 0) {
		return fmt.Errorf("login rate limit settings must be positive when REDIS_URL is set")
	}
	return nil
}
