package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/flight-risk-service/internal/client"
	"github.com/kjstillabower/flight-risk-service/internal/models"
	"github.com/kjstillabower/flight-risk-service/internal/observability"
	"github.com/kjstillabower/flight-risk-service/internal/traffic"
)

// WeatherGateway turns every weather lookup into a WeatherOutcome. Failures of any kind,
// including a panic inside the client, become Unavailable and never reach the caller.
type WeatherGateway struct {
	client client.WeatherClient
	logger *zap.Logger
}

func NewWeatherGateway(c client.WeatherClient, logger *zap.Logger) *WeatherGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherGateway{client: c, logger: logger}
}

// Fetch returns the current weather at airport. An airport without both coordinates
// is answered as unavailable without an outbound call.
func (g *WeatherGateway) Fetch(ctx context.Context, airport models.Airport) (outcome models.WeatherOutcome) {
	logger := loggerFromContext(ctx)
	if logger == nil {
		logger = g.logger
	}
	observability.RecordWeatherLookup(airport.Code)

	if !airport.HasCoordinates() {
		observability.WeatherUnavailableTotal.WithLabelValues(string(client.ErrorCategoryNoCoordinates)).Inc()
		logger.Info("weather skipped, airport has no coordinates",
			zap.Int64("airport_id", airport.ID), zap.String("airport", airport.Code))
		return models.Unavailable()
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = g.unavailable(logger, airport, client.ErrorCategoryPanic, fmt.Errorf("panic: %v", r))
		}
		traffic.RecordWeather(outcome.Available())
	}()

	obs, err := g.client.GetCurrentWeather(ctx, *airport.Latitude, *airport.Longitude)
	if err != nil {
		return g.unavailable(logger, airport, client.CategorizeError(err), err)
	}
	return models.Observed(obs)
}

func (g *WeatherGateway) unavailable(logger *zap.Logger, airport models.Airport, reason client.ErrorCategory, err error) models.WeatherOutcome {
	observability.WeatherUnavailableTotal.WithLabelValues(string(reason)).Inc()
	logger.Warn("weather unavailable",
		zap.Int64("airport_id", airport.ID),
		zap.String("airport", airport.Code),
		zap.String("reason", string(reason)),
		zap.Error(err))
	return models.Unavailable()
}
