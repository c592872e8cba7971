package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/flight-risk-service/internal/models"
	"github.com/kjstillabower/flight-risk-service/internal/observability"
	"github.com/kjstillabower/flight-risk-service/internal/store"
	"github.com/kjstillabower/flight-risk-service/internal/validation"
)

// FlightService answers flight queries and applies administrative changes.
type FlightService struct {
	flights  store.FlightStore
	airports store.AirportStore
}

func NewFlightService(flights store.FlightStore, airports store.AirportStore) *FlightService {
	return &FlightService{flights: flights, airports: airports}
}

// Search returns flights from origin to destination departing on day (yyyy-MM-dd),
// ordered by departure time. Codes are matched exactly. No match is an empty slice.
func (s *FlightService) Search(ctx context.Context, origin, destination, day string) ([]models.Flight, error) {
	from, err := validation.ValidateAirportCode(origin)
	if err != nil {
		observability.FlightSearchesTotal.WithLabelValues("invalid").Inc()
		return nil, invalidArgument("origin", err)
	}
	to, err := validation.ValidateAirportCode(destination)
	if err != nil {
		observability.FlightSearchesTotal.WithLabelValues("invalid").Inc()
		return nil, invalidArgument("destination", err)
	}
	d, err := validation.ParseTravelDate(day)
	if err != nil {
		observability.FlightSearchesTotal.WithLabelValues("invalid").Inc()
		return nil, invalidArgument("date", err)
	}

	start, end := validation.DayWindow(d)
	flights, err := s.flights.FindFlightsByRouteAndWindow(ctx, from, to, start, end)
	if err != nil {
		observability.FlightSearchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("search flights %s-%s on %s: %w", from, to, d, err)
	}
	if len(flights) == 0 {
		observability.FlightSearchesTotal.WithLabelValues("empty").Inc()
	} else {
		observability.FlightSearchesTotal.WithLabelValues("found").Inc()
	}
	if logger := loggerFromContext(ctx); logger != nil {
		logger.Debug("flight search",
			zap.String("origin", from),
			zap.String("destination", to),
			zap.String("date", d.String()),
			zap.Int("results", len(flights)))
	}
	return flights, nil
}

// Get returns one flight by id.
func (s *FlightService) Get(ctx context.Context, id int64) (models.Flight, error) {
	f, err := s.flights.FindFlightByID(ctx, id)
	if err != nil {
		return models.Flight{}, translateStoreError(fmt.Sprintf("flight %d", id), err)
	}
	return f, nil
}

// List returns every flight ordered by departure time.
func (s *FlightService) List(ctx context.Context) ([]models.Flight, error) {
	return s.flights.ListFlights(ctx)
}

// CreateFlightInput names the airports by code; the service resolves them.
type CreateFlightInput struct {
	FlightNumber  string
	DepartureCode string
	ArrivalCode   string
	DepartureTime time.Time
	ArrivalTime   time.Time
	AircraftID    *int64
	BaseFare      float64
}

// Create stores a new SCHEDULED flight after resolving its airports and checking its invariants.
func (s *FlightService) Create(ctx context.Context, in CreateFlightInput) (models.Flight, error) {
	dep, err := s.resolveAirport(ctx, "departure", in.DepartureCode)
	if err != nil {
		return models.Flight{}, err
	}
	arr, err := s.resolveAirport(ctx, "arrival", in.ArrivalCode)
	if err != nil {
		return models.Flight{}, err
	}

	f := models.Flight{
		FlightNumber:  strings.TrimSpace(in.FlightNumber),
		Departure:     dep,
		Arrival:       arr,
		DepartureTime: store.Naive(in.DepartureTime),
		ArrivalTime:   store.Naive(in.ArrivalTime),
		Status:        models.StatusScheduled,
		BaseFare:      in.BaseFare,
	}
	if in.AircraftID != nil {
		f.Aircraft = &models.Aircraft{ID: *in.AircraftID}
	}
	if err := f.Validate(); err != nil {
		return models.Flight{}, invalidArgument("flight", err)
	}

	created, err := s.flights.CreateFlight(ctx, f)
	if err != nil {
		return models.Flight{}, translateStoreError("flight "+f.FlightNumber, err)
	}
	if logger := loggerFromContext(ctx); logger != nil {
		logger.Info("flight created", zap.Int64("flight_id", created.ID), zap.String("flight_number", created.FlightNumber))
	}
	return created, nil
}

func (s *FlightService) resolveAirport(ctx context.Context, field, code string) (models.Airport, error) {
	c, err := validation.ValidateAirportCode(code)
	if err != nil {
		return models.Airport{}, invalidArgument(field, err)
	}
	a, err := s.airports.FindAirportByCode(ctx, c)
	if errors.Is(err, store.ErrNotFound) {
		return models.Airport{}, fmt.Errorf("%w: %s airport %q is unknown", ErrInvalidArgument, field, c)
	}
	if err != nil {
		return models.Airport{}, err
	}
	return a, nil
}

// UpdateStatus moves a flight through its status state machine.
func (s *FlightService) UpdateStatus(ctx context.Context, id int64, next models.FlightStatus) (models.Flight, error) {
	if !next.Valid() {
		return models.Flight{}, invalidArgument("status", fmt.Errorf("unknown status %q", next))
	}
	f, err := s.flights.UpdateFlightStatus(ctx, id, next)
	if err != nil {
		return models.Flight{}, translateStoreError(fmt.Sprintf("flight %d", id), err)
	}
	if logger := loggerFromContext(ctx); logger != nil {
		logger.Info("flight status changed", zap.Int64("flight_id", id), zap.String("status", string(next)))
	}
	return f, nil
}
