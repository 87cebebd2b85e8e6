package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// fixedWindow increments the counter for the current window and sets its
// expiry on the first hit. Returns the count after the increment.
var fixedWindow = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter counts requests per client in fixed windows stored in Redis,
// so every instance pointed at the same Redis shares one budget.
//
// Keys look like ratelimit:<client>:<window index> and expire on their own.
type RedisLimiter struct {
	client *redis.Client
	rate   Rate
	now    func() time.Time
	onErr  func(error)
}

// NewRedisLimiter connects to Redis and verifies the connection.
func NewRedisLimiter(ctx context.Context, addr, password string, db int, rate Rate) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis for rate limiting: %w", err)
	}

	return NewRedisLimiterWithClient(client, rate), nil
}

// NewRedisLimiterWithClient wraps an existing client. The limiter owns it
// afterwards and closes it on Close.
func NewRedisLimiterWithClient(client *redis.Client, rate Rate) *RedisLimiter {
	if rate.Window <= 0 {
		rate.Window = time.Second
	}
	return &RedisLimiter{
		client: client,
		rate:   rate,
		now:    time.Now,
	}
}

// OnError registers a callback for Redis failures. Allow fails open.
func (l *RedisLimiter) OnError(fn func(error)) {
	l.onErr = fn
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	window := l.now().UnixMilli() / l.rate.Window.Milliseconds()
	redisKey := fmt.Sprintf("%s%s:%d", keyPrefix, key, window)

	count, err := fixedWindow.Run(ctx, l.client, []string{redisKey}, (2 * l.rate.Window).Milliseconds()).Int64()
	if err != nil {
		if l.onErr != nil {
			l.onErr(err)
		}
		return true
	}

	return count <= int64(l.rate.Limit)
}

func (l *RedisLimiter) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
