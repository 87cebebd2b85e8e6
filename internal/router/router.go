package router

import (
	"net/http"

	_ "github.com/evyataryagoni/ipgeo/docs" // Swagger docs
	"github.com/evyataryagoni/ipgeo/internal/handler"
	"github.com/evyataryagoni/ipgeo/internal/limiter"
	"github.com/evyataryagoni/ipgeo/internal/logger"
	"github.com/evyataryagoni/ipgeo/internal/metrics"
	custommiddleware "github.com/evyataryagoni/ipgeo/internal/middleware"
	"github.com/evyataryagoni/ipgeo/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Options carries everything SetupRouter wires together.
type Options struct {
	Handler *handler.GeoHandler
	Limiter limiter.Limiter  // nil disables rate limiting
	Metrics *metrics.Metrics // nil disables HTTP metrics
	// Gatherer backs /metrics; defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Logger   *logger.Logger
}

// SetupRouter creates the chi router with middleware and routes.
//
// chi's RealIP middleware is not used: clientip reads forwarding headers
// itself and needs RemoteAddr to stay the transport peer.
func SetupRouter(opts Options) chi.Router {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault()
	}
	lim := opts.Limiter
	if lim == nil {
		lim = limiter.Unlimited{}
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(custommiddleware.LoggingMiddleware(log.WithComponent("http")))
	r.Use(middleware.Recoverer)
	r.Use(custommiddleware.MetricsMiddleware(opts.Metrics))

	r.NotFound(jsonError(http.StatusNotFound, "Not found"))
	r.MethodNotAllowed(jsonError(http.StatusMethodNotAllowed, "Method not allowed"))

	// Lookups are rate limited; probes and docs are not.
	r.Route("/ip", func(r chi.Router) {
		r.Use(custommiddleware.RateLimitMiddleware(lim, opts.Metrics))
		r.Get("/", opts.Handler.GetIP)
		r.Get("/{address}", opts.Handler.GetIPAddress)
	})

	r.Get("/health", opts.Handler.Health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}

func jsonError(status int, message string) http.HandlerFunc {
	body, _ := json.Marshal(models.ErrorResponse{Error: message})
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}
}
