package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP) for all API endpoints
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Sync trigger limits (per IP). Each trigger can fan out into source
	// API calls, so it is throttled much harder than reads.
	SyncTriggerMax        int
	SyncTriggerExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// Global: 200/min is generous for a read-mostly mirror API
		GlobalAPIMax:        200,
		GlobalAPIExpiration: 1 * time.Minute,

		// Sync triggers: 6/min, the reentrancy guard absorbs the rest
		SyncTriggerMax:        6,
		SyncTriggerExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	if v := os.Getenv("RATE_LIMIT_GLOBAL_API"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.GlobalAPIMax = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_SYNC_TRIGGER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.SyncTriggerMax = n
		}
	}

	if os.Getenv("ENVIRONMENT") == "development" {
		config.GlobalAPIMax = 1000
		config.SyncTriggerMax = 100
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

// GlobalAPIRateLimiter limits all /api routes per client IP. Health checks
// and metrics are excluded.
func GlobalAPIRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.GlobalAPIMax,
		Expiration: config.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, slow down",
			})
		},
		Next: func(c *fiber.Ctx) bool {
			path := c.Path()
			return path == "/health" || path == "/metrics"
		},
	})
}

// SyncTriggerRateLimiter throttles manual sync triggers per client IP
func SyncTriggerRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.SyncTriggerMax,
		Expiration: config.SyncTriggerExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many sync requests",
			})
		},
	})
}
