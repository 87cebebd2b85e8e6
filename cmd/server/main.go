package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/evyataryagoni/ipgeo/internal/backend"
	"github.com/evyataryagoni/ipgeo/internal/config"
	"github.com/evyataryagoni/ipgeo/internal/geodb"
	"github.com/evyataryagoni/ipgeo/internal/handler"
	"github.com/evyataryagoni/ipgeo/internal/limiter"
	"github.com/evyataryagoni/ipgeo/internal/logger"
	"github.com/evyataryagoni/ipgeo/internal/metrics"
	"github.com/evyataryagoni/ipgeo/internal/router"
	"github.com/evyataryagoni/ipgeo/internal/service"
)

// @title           ipgeo API
// @version         1.0
// @description     Geolocation of the calling client or a given IPv4 address.

// @license.name  MIT
// @license.url   http://opensource.org/licenses/MIT

// @host      localhost:7755
// @BasePath  /
func main() {
	appConfig := config.Load()
	appLogger := setupLogger(appConfig)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsCollector := metrics.New()

	// The backend is ready before the listener binds; requests never see
	// the uninitialized handle in normal operation.
	handle := setupBackend(ctx, appConfig, appLogger)
	metricsCollector.SetBackendReady(true)

	geoService := service.NewGeoService(handle, metricsCollector, appLogger)
	defer geoService.Close()

	rateLimiter := setupRateLimiter(ctx, appConfig, appLogger)
	defer rateLimiter.Close()

	appRouter := router.SetupRouter(router.Options{
		Handler: handler.NewGeoHandler(geoService, appLogger),
		Limiter: rateLimiter,
		Metrics: metricsCollector,
		Logger:  appLogger,
	})

	startServer(ctx, appConfig, appRouter, appLogger)
}

// setupLogger initializes the structured logger
func setupLogger(appConfig *config.Config) *logger.Logger {
	appLogger := logger.New(logger.Config{
		Level:      appConfig.LogLevel,
		Pretty:     appConfig.LogPretty,
		OutputFile: appConfig.LogFile,
	})
	logger.SetGlobal(appLogger)

	if !appConfig.DotEnvLoaded {
		appLogger.Debug().Msg("No .env file found, using environment variables or defaults")
	}

	appLogger.Info().
		Str("port", appConfig.Port).
		Str("geo_backend", appConfig.GeoBackend).
		Str("rate_limiter_type", appConfig.RateLimitType).
		Int("rate_limit", appConfig.RateLimit).
		Int("rate_limit_window", appConfig.RateLimitWindow).
		Msg("Configuration loaded")

	return appLogger
}

// setupBackend opens the configured geolocation backend. Any failure is
// fatal: the service does not start without a database.
func setupBackend(ctx context.Context, appConfig *config.Config, log *logger.Logger) *backend.Handle {
	if appConfig.GeoBackend == backend.NameMaxMind {
		downloader := geodb.NewDownloader(log)
		downloader.MaxRedirects = appConfig.GeoDBMaxRedirects

		if err := downloader.Ensure(ctx, appConfig.GeoDBURL, appConfig.GeoDBPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to download geolocation database")
		}
	}

	b, err := backend.New(ctx, backend.Config{
		Type:            appConfig.GeoBackend,
		MaxMindPath:     appConfig.GeoDBPath,
		IP2LocationPath: appConfig.IP2LocationPath,
		IPAPIURL:        appConfig.IPAPIURL,
		CSVPath:         appConfig.DatastorePath,
		MySQLDSN:        appConfig.MySQLDSN,
		RedisAddr:       appConfig.RedisAddr,
		RedisPassword:   appConfig.RedisPassword,
		RedisDB:         appConfig.RedisDB,
	})
	if err != nil {
		log.Fatal().Err(err).Str("backend", appConfig.GeoBackend).Msg("Failed to initialize geolocation backend")
	}

	if redisBackend, ok := b.(*backend.RedisBackend); ok {
		seedRedisIfEmpty(ctx, redisBackend, appConfig.DatastorePath, log)
	}

	handle := backend.NewHandle()
	handle.Ready(b)

	log.Info().Str("backend", b.Name()).Msg("Geolocation backend initialized")
	return handle
}

// seedRedisIfEmpty loads the CSV dataset into an empty Redis backend
func seedRedisIfEmpty(ctx context.Context, b *backend.RedisBackend, csvPath string, log *logger.Logger) {
	empty, err := b.IsEmpty(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to check if Redis is empty")
		return
	}
	if !empty {
		return
	}

	log.Info().Str("path", csvPath).Msg("Redis is empty, loading dataset from CSV")
	n, err := b.LoadFromCSV(ctx, csvPath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load dataset")
		return
	}
	log.Info().Int("records", n).Msg("Dataset loaded into Redis")
}

// setupRateLimiter initializes the rate limiter
func setupRateLimiter(ctx context.Context, appConfig *config.Config, log *logger.Logger) limiter.Limiter {
	rateLimiter, err := limiter.NewLimiter(ctx, limiter.LimiterConfig{
		Type:          appConfig.RateLimitType,
		Limit:         appConfig.RateLimit,
		Window:        time.Duration(appConfig.RateLimitWindow) * time.Second,
		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize rate limiter")
	}

	if redisLimiter, ok := rateLimiter.(*limiter.RedisLimiter); ok {
		limiterLog := log.WithComponent("RedisLimiter")
		redisLimiter.OnError(func(err error) {
			limiterLog.Warn().Err(err).Msg("Rate limiter unavailable, allowing request")
		})
	}

	log.Info().
		Str("type", appConfig.RateLimitType).
		Int("limit", appConfig.RateLimit).
		Int("window_seconds", appConfig.RateLimitWindow).
		Msg("Rate limiter initialized")

	return rateLimiter
}

// startServer serves until ctx is cancelled, then drains connections
func startServer(ctx context.Context, appConfig *config.Config, appRouter http.Handler, log *logger.Logger) {
	server := &http.Server{
		Addr:              appConfig.Addr(),
		Handler:           appRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	log.Info().
		Str("port", appConfig.Port).
		Str("lookup", "http://localhost:"+appConfig.Port+"/ip").
		Str("health_check", "http://localhost:"+appConfig.Port+"/health").
		Str("metrics", "http://localhost:"+appConfig.Port+"/metrics").
		Str("swagger", "http://localhost:"+appConfig.Port+"/swagger/index.html").
		Msg("Server is running")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}
