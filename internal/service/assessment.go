package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/flight-risk-service/internal/models"
	"github.com/kjstillabower/flight-risk-service/internal/observability"
	"github.com/kjstillabower/flight-risk-service/internal/risk"
	"github.com/kjstillabower/flight-risk-service/internal/store"
)

// WeatherFetcher is satisfied by WeatherGateway. Fetch never fails; problems surface as Unavailable.
type WeatherFetcher interface {
	Fetch(ctx context.Context, airport models.Airport) models.WeatherOutcome
}

// AssessmentService reports the weather at both ends of a flight and scores its delay risk.
// It does not look at the flight status: cancelled or departed flights are scored like any other.
type AssessmentService struct {
	flights store.FlightStore
	weather WeatherFetcher
}

func NewAssessmentService(flights store.FlightStore, weather WeatherFetcher) *AssessmentService {
	return &AssessmentService{flights: flights, weather: weather}
}

// GetWeather fetches departure and arrival weather concurrently. One side failing
// does not affect the other.
func (s *AssessmentService) GetWeather(ctx context.Context, flightID int64) (models.FlightWeather, error) {
	f, err := s.flight(ctx, flightID)
	if err != nil {
		return models.FlightWeather{}, err
	}

	var (
		wg     sync.WaitGroup
		result models.FlightWeather
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		result.Departure = s.weather.Fetch(ctx, f.Departure)
	}()
	go func() {
		defer wg.Done()
		result.Arrival = s.weather.Fetch(ctx, f.Arrival)
	}()
	wg.Wait()
	return result, nil
}

// GetDelayRisk classifies the current weather at the departure airport.
func (s *AssessmentService) GetDelayRisk(ctx context.Context, flightID int64) (models.RiskLevel, error) {
	f, err := s.flight(ctx, flightID)
	if err != nil {
		return models.RiskLow, err
	}

	outcome := s.weather.Fetch(ctx, f.Departure)
	level := risk.Classify(outcome)
	observability.RiskAssessmentsTotal.WithLabelValues(level.String()).Inc()

	if logger := loggerFromContext(ctx); logger != nil {
		fields := []zap.Field{
			zap.Int64("flight_id", f.ID),
			zap.String("departure", f.Departure.Code),
			zap.String("risk_level", level.String()),
			zap.Bool("weather_available", outcome.Available()),
		}
		if obs, ok := outcome.Observation(); ok {
			fields = append(fields, zap.Float64("wind_speed", obs.WindSpeed), zap.Int("weather_code", obs.WeatherCode))
		}
		logger.Debug("delay risk assessed", fields...)
	}
	return level, nil
}

func (s *AssessmentService) flight(ctx context.Context, id int64) (models.Flight, error) {
	f, err := s.flights.FindFlightByID(ctx, id)
	if err != nil {
		return models.Flight{}, translateStoreError(fmt.Sprintf("flight %d", id), err)
	}
	return f, nil
}
