package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/evyataryagoni/ipgeo/internal/geo"
	"github.com/evyataryagoni/ipgeo/internal/logger"
	"github.com/evyataryagoni/ipgeo/internal/models"
	"github.com/evyataryagoni/ipgeo/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
)

// TimestampFormat is RFC 3339 in UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// GeoHandler handles HTTP requests for geolocation lookups.
// It deals with HTTP concerns only; resolution lives in the service layer.
type GeoHandler struct {
	service *service.GeoService
	logger  *logger.Logger
	now     func() time.Time
}

// NewGeoHandler creates a new handler backed by svc
func NewGeoHandler(svc *service.GeoService, log *logger.Logger) *GeoHandler {
	if log == nil {
		log = logger.NewDefault()
	}
	return &GeoHandler{
		service: svc,
		logger:  log.WithComponent("GeoHandler"),
		now:     time.Now,
	}
}

// GetIP handles GET /ip
// @Summary      Geolocate the caller
// @Description  Resolve the client address from edge or proxy headers and return its location
// @Tags         Geolocation
// @Produce      json
// @Success      200  {object}  models.GeoLocationInfo
// @Failure      400  {object}  models.ErrorResponse  "Client IP could not be determined"
// @Failure      429  {object}  models.ErrorResponse  "Rate limit exceeded"
// @Failure      500  {object}  models.ErrorResponse  "Lookup failed"
// @Router       /ip [get]
func (h *GeoHandler) GetIP(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.ResolveRequest(r)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, info)
}

// GetIPAddress handles GET /ip/{address}
// @Summary      Geolocate an IPv4 address
// @Description  Look up the location of a dotted-quad IPv4 address in the local database
// @Tags         Geolocation
// @Produce      json
// @Param        address  path      string  true  "IPv4 address"  example(8.8.8.8)
// @Success      200      {object}  models.GeoLocationInfo
// @Failure      400      {object}  models.ErrorResponse  "Missing or invalid address"
// @Failure      429      {object}  models.ErrorResponse  "Rate limit exceeded"
// @Failure      500      {object}  models.ErrorResponse  "Lookup failed"
// @Router       /ip/{address} [get]
func (h *GeoHandler) GetIPAddress(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	info, err := h.service.LookupAddress(r.Context(), address)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, info)
}

// Health handles GET /health
// @Summary      Liveness probe
// @Tags         Health
// @Produce      json
// @Success      200  {object}  models.HealthResponse
// @Router       /health [get]
func (h *GeoHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(TimestampFormat),
	})
}

// respondLookupError maps client input errors to 400 and everything else
// to 500, passing the message through unchanged.
func (h *GeoHandler) respondLookupError(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *geo.ClientInputError
	if errors.As(err, &inputErr) {
		h.respondError(w, http.StatusBadRequest, inputErr.Message)
		return
	}

	h.logger.WithRequestID(middleware.GetReqID(r.Context())).
		Error().
		Err(err).
		Str("path", r.URL.Path).
		Msg("Lookup failed")
	h.respondError(w, http.StatusInternalServerError, err.Error())
}

// respondJSON writes a JSON response with the given status code
func (h *GeoHandler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// respondError writes an error response with consistent formatting
func (h *GeoHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, models.ErrorResponse{Error: message})
}
