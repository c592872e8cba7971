package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/flight-risk-service/internal/cache"
	"github.com/kjstillabower/flight-risk-service/internal/circuitbreaker"
	"github.com/kjstillabower/flight-risk-service/internal/client"
	"github.com/kjstillabower/flight-risk-service/internal/config"
	httphandler "github.com/kjstillabower/flight-risk-service/internal/http"
	"github.com/kjstillabower/flight-risk-service/internal/lifecycle"
	"github.com/kjstillabower/flight-risk-service/internal/observability"
	"github.com/kjstillabower/flight-risk-service/internal/service"
	"github.com/kjstillabower/flight-risk-service/internal/store"
)

const drainCheckInterval = 50 * time.Millisecond

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	lifecycle.SetReadyAfter(cfg.ReadyDelay)

	db, err := openStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	weatherClient, err := client.NewOpenMeteoClient(cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	var breaker *circuitbreaker.CircuitBreaker
	if cfg.CircuitBreakerEnabled {
		breaker = circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			OpenTimeout:      cfg.CircuitBreakerOpenTimeout,
			Component:        "weather_api",
			OnStateChange: func(component string, from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition(component, from.String(), to.String(), int(to))
				logger.Warn("circuit breaker state change",
					zap.String("component", component),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		weatherClient.SetCircuitBreaker(breaker)
		observability.CircuitBreakerState.WithLabelValues("weather_api").Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("open_timeout", cfg.CircuitBreakerOpenTimeout))
	}

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache(cfg.CacheTTL)
		logger.Info("cache backend: in_memory")
	}

	flights := service.NewFlightService(db, db)
	airports := service.NewAirportService(db, cacheSvc, cfg.CacheTTL)
	assessments := service.NewAssessmentService(db, service.NewWeatherGateway(weatherClient, logger))

	observability.SetTrackedAirports(cfg.TrackedAirports)
	observability.RegisterTrafficGauges(cfg.OverloadWindow)

	warmCtx, stopWarming := context.WithCancel(context.Background())
	defer stopWarming()
	if len(cfg.TrackedAirports) > 0 {
		warmer := cache.NewWarmer(airports, logger)
		ctx, cancel := context.WithTimeout(warmCtx, 30*time.Second)
		if err := warmer.Warm(ctx, cfg.TrackedAirports); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		cancel()
		if cfg.CacheWarmInterval > 0 {
			go func() {
				if err := warmer.WarmPeriodic(warmCtx, cfg.TrackedAirports, cfg.CacheWarmInterval); err != nil && err != context.Canceled {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
			}()
		}
	}

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:         cfg.OverloadWindow,
		OverloadThresholdPct:   cfg.OverloadThresholdPct,
		RateLimitRPS:           cfg.RateLimitRPS,
		DegradedWindow:         cfg.DegradedWindow,
		DegradedUnavailablePct: cfg.DegradedUnavailablePct,
		DegradedMinSamples:     cfg.DegradedMinSamples,
		DatabasePing:           db.Ping,
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}
	if breaker != nil {
		healthConfig.BreakerState = func() string { return breaker.State().String() }
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(flights, airports, assessments, healthConfig, logger)
	router := httphandler.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	stopWarming()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	if err := httphandler.DrainInFlight(shutdownCtx, drainCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// openStore opens the database, seeds the demo network when configured and the database is
// empty, and imports the airports CSV when one is configured.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store.SQLStore, error) {
	db, err := store.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if cfg.AirportsCSV != "" {
		f, err := os.Open(cfg.AirportsCSV)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("open airports csv: %w", err)
		}
		_, err = db.ImportAirportsCSV(ctx, f, logger.With(zap.String("file", cfg.AirportsCSV)))
		_ = f.Close()
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("import airports: %w", err)
		}
	}
	if cfg.SeedDemoData {
		seeded, err := db.SeedDemoData(ctx, time.Now())
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		if seeded {
			logger.Info("demo data seeded")
		}
	}
	return db, nil
}
