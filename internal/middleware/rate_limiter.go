package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nanafox/tiny-cart/pkg/logger"
)

// RateLimiterConfig defines rate limiting rules
type RateLimiterConfig struct {
	MaxRequests int           // Maximum requests allowed in the window
	Window      time.Duration // Time window (e.g., 1 minute)
	// Prefix namespaces the counters, e.g. "ratelimit:login".
	Prefix string
	// KeyFunc picks the client identity. Defaults to the client IP.
	KeyFunc func(c *fiber.Ctx) string
}

// RateLimiter is a fixed-window request counter kept in Redis.
type RateLimiter struct {
	redis  redis.Cmdable
	config RateLimiterConfig
}

// NewRateLimiter creates a new rate limiter instance
func NewRateLimiter(client redis.Cmdable, config RateLimiterConfig) *RateLimiter {
	if config.Prefix == "" {
		config.Prefix = "ratelimit"
	}
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *fiber.Ctx) string { return c.IP() }
	}
	return &RateLimiter{redis: client, config: config}
}

// Middleware returns a Fiber handler that answers 429 once a client exceeds
// the limit. Redis failures let the request through.
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client := rl.config.KeyFunc(c)

		allowed, retryAfter, err := rl.CheckLimit(c.UserContext(), client)
		if err != nil {
			logger.Log.Error("rate limiter unavailable", zap.Error(err))
			return c.Next()
		}

		if !allowed {
			seconds := int(retryAfter.Round(time.Second).Seconds())
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
			logger.Log.Warn("rate limit exceeded", zap.String("client", client), zap.String("path", c.Path()))
			return fiber.NewError(fiber.StatusTooManyRequests,
				fmt.Sprintf("Too many requests. Please try again in %d seconds.", seconds))
		}

		return c.Next()
	}
}

// CheckLimit counts a request for client and reports whether it is within the
// limit, and if not, how long until the window resets.
func (rl *RateLimiter) CheckLimit(ctx context.Context, client string) (bool, time.Duration, error) {
	key := fmt.Sprintf("%s:%s", rl.config.Prefix, client)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rl.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return false, 0, err
	}

	// A counter without expiry starts its window now. This also repairs a
	// counter whose earlier EXPIRE failed.
	remaining := ttl.Val()
	if remaining <= 0 {
		if err := rl.redis.Expire(ctx, key, rl.config.Window).Err(); err != nil {
			return false, 0, err
		}
		remaining = rl.config.Window
	}

	if incr.Val() > int64(rl.config.MaxRequests) {
		return false, remaining, nil
	}

	return true, 0, nil
}
