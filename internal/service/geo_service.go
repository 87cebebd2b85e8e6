package service

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/evyataryagoni/ipgeo/internal/backend"
	"github.com/evyataryagoni/ipgeo/internal/clientip"
	"github.com/evyataryagoni/ipgeo/internal/geo"
	"github.com/evyataryagoni/ipgeo/internal/logger"
	"github.com/evyataryagoni/ipgeo/internal/metrics"
	"github.com/evyataryagoni/ipgeo/internal/models"
	"github.com/go-playground/validator/v10"
)

// Client-facing error messages.
const (
	MsgUndeterminedIP  = "Unable to determine client IP address"
	MsgAddressRequired = "IP address parameter is required"
	MsgInvalidAddress  = "Invalid IP address format"
)

// ipv4QuadTag is the validator tag for a strict dotted-quad IPv4 address.
const ipv4QuadTag = "ipv4quad"

var ipv4Quad = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

// GeoService resolves requests and addresses into GeoLocationInfo records.
// It sits between the HTTP handlers and the backend handle.
//
// Responsibilities:
//   - Validate path-supplied addresses
//   - Prefer edge headers when the request carries them
//   - Query the backend and normalize its record
type GeoService struct {
	backend   *backend.Handle
	validator *validator.Validate
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewGeoService creates a new geolocation service.
// m and log are optional.
func NewGeoService(handle *backend.Handle, m *metrics.Metrics, log *logger.Logger) *GeoService {
	if log == nil {
		log = logger.NewDefault()
	}

	v := validator.New()
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation(ipv4QuadTag, func(fl validator.FieldLevel) bool {
		return IsIPv4Quad(fl.Field().String())
	})

	return &GeoService{
		backend:   handle,
		validator: v,
		metrics:   m,
		logger:    log.WithComponent("GeoService"),
	}
}

// IsIPv4Quad reports whether s is a dotted-quad IPv4 address with every
// octet in 0-255. Leading zeros up to three digits are accepted.
func IsIPv4Quad(s string) bool {
	return ipv4Quad.MatchString(s)
}

// ResolveRequest geolocates the client that sent r.
//
// Flow:
//  1. Resolve the client address; empty or loopback is a client error
//  2. Build the record from edge headers when present
//  3. Otherwise look the address up in the backend
func (s *GeoService) ResolveRequest(r *http.Request) (*models.GeoLocationInfo, error) {
	ip := clientip.Resolve(r)
	if ip == "" || clientip.IsLoopbackLiteral(ip) {
		s.logger.Warn().Str("ip", ip).Msg("Client IP address could not be determined")
		s.metrics.ObserveLookup(metrics.SourceDatabase, metrics.ResultInvalid)
		return nil, geo.NewClientInputError(MsgUndeterminedIP)
	}

	if info := geo.FromEdgeHeaders(r); info != nil {
		s.logger.Debug().Str("ip", info.IPv4).Msg("Resolved from edge headers")
		s.metrics.ObserveLookup(metrics.SourceEdge, metrics.ResultSuccess)
		return info, nil
	}

	return s.lookup(r.Context(), ip)
}

// LookupAddress geolocates a caller-supplied IPv4 address. Edge headers
// are never consulted.
func (s *GeoService) LookupAddress(ctx context.Context, address string) (*models.GeoLocationInfo, error) {
	if err := s.validator.Var(address, "required"); err != nil {
		s.metrics.ObserveLookup(metrics.SourceDatabase, metrics.ResultInvalid)
		return nil, geo.NewClientInputError(MsgAddressRequired)
	}

	if err := s.validator.Var(address, ipv4QuadTag); err != nil {
		s.logger.Warn().Str("ip", address).Msg("Invalid IP address format")
		s.metrics.ObserveLookup(metrics.SourceDatabase, metrics.ResultInvalid)
		return nil, geo.NewClientInputError(MsgInvalidAddress)
	}

	return s.lookup(ctx, address)
}

// Ready reports whether the backend handle has a backend attached.
func (s *GeoService) Ready() bool {
	return s.backend.IsReady()
}

// Close releases the backend.
func (s *GeoService) Close() error {
	s.metrics.SetBackendReady(false)
	return s.backend.Close()
}

func (s *GeoService) lookup(ctx context.Context, ip string) (*models.GeoLocationInfo, error) {
	name := s.backend.Name()
	log := s.logger.WithIP(ip).WithBackend(name)

	start := time.Now()
	raw, err := s.backend.Lookup(ctx, ip)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		result := lookupResult(err)
		s.metrics.ObserveBackendQuery(name, result, elapsed)
		s.metrics.ObserveLookup(metrics.SourceDatabase, result)

		if result == metrics.ResultNotFound {
			log.Debug().Msg("IP address not found")
		} else {
			log.Error().Err(err).Msg("Backend lookup failed")
		}
		return nil, err
	}

	s.metrics.ObserveBackendQuery(name, metrics.ResultSuccess, elapsed)
	s.metrics.ObserveLookup(metrics.SourceDatabase, metrics.ResultSuccess)

	info := geo.Normalize(ip, raw)
	log.Info().
		Str("country", raw.CountryCode).
		Str("city", raw.City).
		Msg("IP lookup successful")

	return info, nil
}

func lookupResult(err error) string {
	switch {
	case errors.Is(err, geo.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, geo.ErrNotInitialized):
		return metrics.ResultNotInitialized
	case errors.Is(err, backend.ErrInvalidIP):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}
