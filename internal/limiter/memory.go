package limiter

import (
	"context"
	"sync"
	"time"
)

// idleTTL is how long an untouched bucket survives before it is swept.
const idleTTL = 5 * time.Minute

// tokenBucket holds the budget for a single client. It starts full,
// refills continuously and allows bursts up to its capacity.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(rate, capacity float64, now time.Time) *tokenBucket {
	capacity = max(capacity, 1)
	return &tokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: rate,
		lastRefill: now,
	}
}

func (b *tokenBucket) take(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.tokens+elapsed*b.refillRate, b.capacity)
		b.lastRefill = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (b *tokenBucket) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRefill
}

// MemoryLimiter keeps one token bucket per client in process memory.
// Suitable for a single instance; use RedisLimiter when several instances
// must share the budget.
type MemoryLimiter struct {
	rate    Rate
	buckets sync.Map // client key -> *tokenBucket
	now     func() time.Time

	sweepMu   sync.Mutex
	lastSweep time.Time
}

// NewMemoryLimiter creates an in-memory limiter allowing rate.Limit
// requests per rate.Window for each client.
func NewMemoryLimiter(rate Rate) *MemoryLimiter {
	return newMemoryLimiter(rate, time.Now)
}

func newMemoryLimiter(rate Rate, now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{
		rate:      rate,
		now:       now,
		lastSweep: now(),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) bool {
	now := l.now()
	allowed := l.bucket(key, now).take(now)
	l.sweep(now)
	return allowed
}

func (l *MemoryLimiter) bucket(key string, now time.Time) *tokenBucket {
	if b, ok := l.buckets.Load(key); ok {
		return b.(*tokenBucket)
	}
	b, _ := l.buckets.LoadOrStore(key, newTokenBucket(l.rate.PerSecond(), float64(l.rate.Limit), now))
	return b.(*tokenBucket)
}

// sweep drops idle buckets at most once per idleTTL.
func (l *MemoryLimiter) sweep(now time.Time) {
	l.sweepMu.Lock()
	defer l.sweepMu.Unlock()

	if now.Sub(l.lastSweep) < idleTTL {
		return
	}

	threshold := now.Add(-idleTTL)
	l.buckets.Range(func(key, value any) bool {
		if value.(*tokenBucket).idleSince().Before(threshold) {
			l.buckets.Delete(key)
		}
		return true
	})
	l.lastSweep = now
}

// Len returns the number of tracked clients.
func (l *MemoryLimiter) Len() int {
	n := 0
	l.buckets.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

func (l *MemoryLimiter) Close() error {
	l.buckets.Clear()
	return nil
}
