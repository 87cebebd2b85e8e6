package limiter

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Limiter types accepted by NewLimiter.
const (
	TypeNone   = "none"
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// LimiterConfig holds configuration for creating a rate limiter
type LimiterConfig struct {
	Type   string // none, memory or redis
	Limit  int    // requests allowed per window
	Window time.Duration

	// Redis-specific config
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewLimiter creates a rate limiter based on the configuration.
// A non-positive limit disables limiting regardless of type.
func NewLimiter(ctx context.Context, cfg LimiterConfig) (Limiter, error) {
	limiterType := strings.ToLower(strings.TrimSpace(cfg.Type))
	rate := Rate{Limit: cfg.Limit, Window: cfg.Window}
	if rate.Window <= 0 {
		rate.Window = time.Second
	}

	switch limiterType {
	case TypeNone, "":
		return Unlimited{}, nil

	case TypeMemory:
		if rate.Limit <= 0 {
			return Unlimited{}, nil
		}
		return NewMemoryLimiter(rate), nil

	case TypeRedis:
		if rate.Limit <= 0 {
			return Unlimited{}, nil
		}
		l, err := NewRedisLimiter(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, rate)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis limiter: %w", err)
		}
		return l, nil

	default:
		return nil, fmt.Errorf("unknown rate limiter type: %s (supported: 'none', 'memory', 'redis')", cfg.Type)
	}
}
