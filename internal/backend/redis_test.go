package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/evyataryagoni/ipgeo/internal/geo"
)

func newTestRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	b, err := NewRedisBackend(context.Background(), mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("failed to connect to Redis: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	return b, mr
}

// TestRedisBackend_ConnectionFailure tests connection errors
func TestRedisBackend_ConnectionFailure(t *testing.T) {
	_, err := NewRedisBackend(context.Background(), "invalid:9999", "", 0)

	var upstream *geo.UpstreamError
	if !errors.As(err, &upstream) {
		t.Errorf("expected UpstreamError, got %v", err)
	}
}

// TestRedisBackend_Lookup_Success tests a stored record round trip
func TestRedisBackend_Lookup_Success(t *testing.T) {
	b, _ := newTestRedisBackend(t)
	ctx := context.Background()

	lat, lon := 40.7128, -74.006
	err := b.Set(ctx, "8.8.8.8", &geo.RawRecord{
		CountryCode:  "US",
		CountryName:  "United States",
		City:         "New York",
		Latitude:     &lat,
		Longitude:    &lon,
		TimeZone:     "America/New_York",
		Subdivisions: []string{"NY"},
	})
	if err != nil {
		t.Fatalf("failed to set data: %v", err)
	}

	raw, err := b.Lookup(ctx, "8.8.8.8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.CountryName != "United States" {
		t.Errorf("expected 'United States', got '%s'", raw.CountryName)
	}
	if raw.Latitude == nil || *raw.Latitude != lat {
		t.Errorf("expected latitude %v, got %v", lat, raw.Latitude)
	}
	if raw.Region() != "NY" {
		t.Errorf("expected region 'NY', got '%s'", raw.Region())
	}
}

// TestRedisBackend_Lookup_NotFound tests IP not found
func TestRedisBackend_Lookup_NotFound(t *testing.T) {
	b, _ := newTestRedisBackend(t)

	raw, err := b.Lookup(context.Background(), "192.168.1.1")
	if !errors.Is(err, geo.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if raw != nil {
		t.Error("expected nil record")
	}
}

// TestRedisBackend_Lookup_CorruptValue tests undecodable values
func TestRedisBackend_Lookup_CorruptValue(t *testing.T) {
	b, mr := newTestRedisBackend(t)

	mr.Set("geo:8.8.8.8", "{not json")

	if _, err := b.Lookup(context.Background(), "8.8.8.8"); err == nil {
		t.Error("expected decode error, got nil")
	}
}

// TestRedisBackend_KeyFormat tests the Redis key format
func TestRedisBackend_KeyFormat(t *testing.T) {
	b, mr := newTestRedisBackend(t)

	b.Set(context.Background(), "8.8.8.8", &geo.RawRecord{CountryCode: "US"})

	val, err := mr.Get("geo:8.8.8.8")
	if err != nil {
		t.Fatalf("expected key 'geo:8.8.8.8' to exist, got error: %v", err)
	}
	if val == "" {
		t.Error("expected key to have value")
	}
}

// TestRedisBackend_IsEmpty tests the empty check
func TestRedisBackend_IsEmpty(t *testing.T) {
	b, mr := newTestRedisBackend(t)
	ctx := context.Background()

	isEmpty, err := b.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isEmpty {
		t.Error("expected backend to be empty")
	}

	// keys of other components do not count
	mr.Set("ratelimit:1.2.3.4:1", "1")
	isEmpty, _ = b.IsEmpty(ctx)
	if !isEmpty {
		t.Error("expected backend to ignore foreign keys")
	}

	b.Set(ctx, "8.8.8.8", &geo.RawRecord{CountryCode: "US"})

	isEmpty, err = b.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isEmpty {
		t.Error("expected backend to not be empty")
	}
}

// TestRedisBackend_LoadFromCSV tests seeding from a dataset
func TestRedisBackend_LoadFromCSV(t *testing.T) {
	b, _ := newTestRedisBackend(t)
	ctx := context.Background()

	count, err := b.LoadFromCSV(ctx, writeDataset(t, testDataset))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 rows loaded, got %d", count)
	}

	raw, err := b.Lookup(ctx, "2.2.2.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.City != "Paris" {
		t.Errorf("expected 'Paris', got '%s'", raw.City)
	}
}

// TestRedisBackend_LoadFromCSV_MissingFile tests loader errors
func TestRedisBackend_LoadFromCSV_MissingFile(t *testing.T) {
	b, _ := newTestRedisBackend(t)

	if _, err := b.LoadFromCSV(context.Background(), "/nonexistent/geo.csv"); err == nil {
		t.Error("expected error, got nil")
	}
}

// TestRedisBackend_Close_NilClient tests close with nil client
func TestRedisBackend_Close_NilClient(t *testing.T) {
	b := &RedisBackend{client: nil}

	if err := b.Close(); err != nil {
		t.Errorf("expected no error for nil client, got: %v", err)
	}
}
