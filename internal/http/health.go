package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/flight-risk-service/internal/lifecycle"
	"github.com/kjstillabower/flight-risk-service/internal/observability"
	"github.com/kjstillabower/flight-risk-service/internal/traffic"
)

// HealthConfig holds lifecycle thresholds and dependency probes for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int // 0 when rate limiter disabled

	DegradedWindow         time.Duration
	DegradedUnavailablePct int
	DegradedMinSamples     int

	// DatabasePing reports store reachability. Nil skips the check.
	DatabasePing func(ctx context.Context) error
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
	// BreakerState, when set, reports the weather circuit breaker state.
	BreakerState func() string
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result, checks := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > database unreachable > overloaded > degraded > healthy.
// Degraded answers 200 because weather is advisory; every other non-healthy state answers 503.
func (h *Handler) computeHealthStatus(ctx context.Context) (healthResult, map[string]string) {
	checks := map[string]string{}
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}, checks
	}
	if !lifecycle.IsReady() {
		return healthResult{"starting", http.StatusServiceUnavailable, "ready_delay"}, checks
	}
	cfg := h.healthConfig
	if cfg == nil {
		return healthResult{"healthy", http.StatusOK, ""}, checks
	}

	if cfg.CachePing != nil {
		checks["cache"] = checkStatus(cfg.CachePing() == nil)
	}
	if cfg.BreakerState != nil {
		checks["weatherCircuit"] = cfg.BreakerState()
	}
	if cfg.DatabasePing != nil {
		err := cfg.DatabasePing(ctx)
		checks["database"] = checkStatus(err == nil)
		if err != nil {
			h.logger.Warn("database ping failed", zap.Error(err))
			return healthResult{"unhealthy", http.StatusServiceUnavailable, "database_unreachable"}, checks
		}
	}

	if cfg.RateLimitRPS > 0 && cfg.OverloadWindow > 0 {
		threshold := float64(cfg.RateLimitRPS) * cfg.OverloadWindow.Seconds() * float64(cfg.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(cfg.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}, checks
		}
	}

	checks["weatherApi"] = checkStatus(true)
	if cfg.DegradedWindow > 0 && cfg.DegradedUnavailablePct > 0 {
		unavailable, total := traffic.UnavailableRate(cfg.DegradedWindow)
		if total > 0 && total >= cfg.DegradedMinSamples {
			pct := float64(unavailable) * 100 / float64(total)
			if pct >= float64(cfg.DegradedUnavailablePct) {
				checks["weatherApi"] = checkStatus(false)
				return healthResult{"degraded", http.StatusOK, "weather_unavailable"}, checks
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}, checks
}

func checkStatus(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}
