package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/flight-risk-service/internal/models"
	"github.com/kjstillabower/flight-risk-service/internal/observability"
)

// AirportLoader is implemented by the service layer; a successful lookup populates the cache.
// Defined here to avoid a circular dependency on the service package.
type AirportLoader interface {
	GetAirport(ctx context.Context, code string) (models.Airport, error)
}

// Warmer preloads airport reference data for a list of codes.
type Warmer struct {
	loader AirportLoader
	logger *zap.Logger
}

// NewWarmer creates a Warmer that uses the given loader and logger.
func NewWarmer(loader AirportLoader, logger *zap.Logger) *Warmer {
	return &Warmer{loader: loader, logger: logger}
}

// Warm loads each airport concurrently. Returns the joined errors of any codes that failed.
func (w *Warmer) Warm(ctx context.Context, codes []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming airport cache", zap.Int("airports", len(codes)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(codes))
	for _, code := range codes {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			if _, err := w.loader.GetAirport(ctx, code); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", code, err)
			}
		}(code)
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("airport cache warming complete",
			zap.Int("airports", len(codes)),
			zap.Int("errors", len(errs)),
			zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval until ctx is done.
func (w *Warmer) WarmPeriodic(ctx context.Context, codes []string, interval time.Duration) error {
	if err := w.Warm(ctx, codes); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, codes); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
