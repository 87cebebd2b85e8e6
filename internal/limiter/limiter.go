package limiter

import (
	"context"
	"time"
)

// Limiter decides whether a request from a client key may proceed.
// Keys are client addresses as resolved by the clientip package.
type Limiter interface {
	// Allow reports whether one more request for key fits in the budget.
	Allow(ctx context.Context, key string) bool

	// Close releases connections and background state.
	Close() error
}

// Rate is a request budget: Limit requests per Window.
type Rate struct {
	Limit  int
	Window time.Duration
}

// PerSecond returns the sustained refill rate in requests per second.
func (r Rate) PerSecond() float64 {
	if r.Window <= 0 {
		return float64(r.Limit)
	}
	return float64(r.Limit) / r.Window.Seconds()
}

// Unlimited allows every request.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) bool { return true }

func (Unlimited) Close() error { return nil }
