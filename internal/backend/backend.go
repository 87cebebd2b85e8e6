package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/evyataryagoni/ipgeo/internal/geo"
)

// ErrInvalidIP is returned by backends that parse the address themselves
var ErrInvalidIP = errors.New("invalid IP address")

// Backend is a source of raw geolocation records.
// Implementations map their native result into a geo.RawRecord, return
// geo.ErrNotFound when they have no record and wrap I/O failures into
// *geo.UpstreamError.
type Backend interface {
	// Name identifies the backend in logs and metrics
	Name() string

	// Lookup returns the record for ip
	Lookup(ctx context.Context, ip string) (*geo.RawRecord, error)

	// Close releases file handles and connections
	Close() error
}

// Handle is the shared backend reference used by request handlers.
// It starts Uninitialized and becomes Ready exactly when a backend is
// attached; lookups on an Uninitialized handle fail with
// geo.ErrNotInitialized.
type Handle struct {
	ready atomic.Pointer[readyState]
}

type readyState struct {
	backend Backend
}

// NewHandle returns an Uninitialized handle
func NewHandle() *Handle {
	return &Handle{}
}

// NewReadyHandle returns a handle that is already Ready with b
func NewReadyHandle(b Backend) *Handle {
	h := NewHandle()
	h.Ready(b)
	return h
}

// Ready attaches b and moves the handle to the Ready state
func (h *Handle) Ready(b Backend) {
	h.ready.Store(&readyState{backend: b})
}

// IsReady reports whether a backend is attached
func (h *Handle) IsReady() bool {
	return h.ready.Load() != nil
}

// Name returns the attached backend's name, or "uninitialized"
func (h *Handle) Name() string {
	state := h.ready.Load()
	if state == nil {
		return "uninitialized"
	}
	return state.backend.Name()
}

// Lookup delegates to the attached backend
func (h *Handle) Lookup(ctx context.Context, ip string) (*geo.RawRecord, error) {
	state := h.ready.Load()
	if state == nil {
		return nil, geo.ErrNotInitialized
	}
	return state.backend.Lookup(ctx, ip)
}

// Close closes the attached backend and returns the handle to the
// Uninitialized state
func (h *Handle) Close() error {
	state := h.ready.Swap(nil)
	if state == nil {
		return nil
	}
	return state.backend.Close()
}

// Config selects and configures a backend
type Config struct {
	Type string // "maxmind", "ip2location", "ipapi", "mysql", "redis" or "csv"

	MaxMindPath     string
	IP2LocationPath string
	IPAPIURL        string
	HTTPClient      *http.Client
	CSVPath         string
	MySQLDSN        string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New opens the backend named by cfg.Type (factory pattern)
func New(ctx context.Context, cfg Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case NameMaxMind, "":
		return OpenMaxMind(cfg.MaxMindPath)

	case NameIP2Location:
		return OpenIP2Location(cfg.IP2LocationPath)

	case NameIPAPI:
		return NewIPAPIBackend(cfg.IPAPIURL, cfg.HTTPClient), nil

	case NameMySQL:
		return NewMySQLBackend(ctx, cfg.MySQLDSN)

	case NameRedis:
		return NewRedisBackend(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	case NameCSV:
		return NewCSVBackend(cfg.CSVPath)

	default:
		return nil, fmt.Errorf("unknown geo backend type: %s (supported: %s)", cfg.Type,
			strings.Join([]string{NameMaxMind, NameIP2Location, NameIPAPI, NameMySQL, NameRedis, NameCSV}, ", "))
	}
}

// Backend names
const (
	NameMaxMind     = "maxmind"
	NameIP2Location = "ip2location"
	NameIPAPI       = "ipapi"
	NameMySQL       = "mysql"
	NameRedis       = "redis"
	NameCSV         = "csv"
)
