package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/evyataryagoni/ipgeo/internal/geo"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "geo:"

// RedisBackend keeps one JSON-encoded geo.RawRecord per address.
// Key format: geo:<ip>
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to Redis and verifies the connection
func NewRedisBackend(ctx context.Context, addr, password string, db int) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, geo.Upstream("failed to connect to Redis", err)
	}

	return &RedisBackend{client: client}, nil
}

func (b *RedisBackend) Name() string {
	return NameRedis
}

func (b *RedisBackend) Lookup(ctx context.Context, ip string) (*geo.RawRecord, error) {
	val, err := b.client.Get(ctx, redisKeyPrefix+ip).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, geo.ErrNotFound
		}
		return nil, geo.Upstream("Redis query failed", err)
	}

	var raw geo.RawRecord
	if err := json.Unmarshal(val, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode geo record: %w", err)
	}

	return &raw, nil
}

// Set stores or replaces the record for ip (no expiration)
func (b *RedisBackend) Set(ctx context.Context, ip string, raw *geo.RawRecord) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode geo record: %w", err)
	}

	if err := b.client.Set(ctx, redisKeyPrefix+ip, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store in Redis: %w", err)
	}

	return nil
}

// LoadFromCSV copies every row of a CSV dataset into Redis and returns the
// number of rows written
func (b *RedisBackend) LoadFromCSV(ctx context.Context, csvPath string) (int, error) {
	dataset, err := NewCSVBackend(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to load CSV: %w", err)
	}
	defer dataset.Close()

	count := 0
	err = dataset.Each(func(ip string, raw *geo.RawRecord) error {
		if err := b.Set(ctx, ip, raw); err != nil {
			return fmt.Errorf("failed to store IP %s: %w", ip, err)
		}
		count++
		return nil
	})

	return count, err
}

// IsEmpty reports whether no geo:* keys exist
func (b *RedisBackend) IsEmpty(ctx context.Context) (bool, error) {
	iter := b.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	if iter.Next(ctx) {
		return false, nil
	}
	if err := iter.Err(); err != nil {
		return false, fmt.Errorf("failed to scan Redis keys: %w", err)
	}
	return true, nil
}

func (b *RedisBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}
