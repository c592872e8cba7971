package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/flight-risk-service/internal/cache"
	"github.com/kjstillabower/flight-risk-service/internal/models"
	"github.com/kjstillabower/flight-risk-service/internal/observability"
	"github.com/kjstillabower/flight-risk-service/internal/store"
	"github.com/kjstillabower/flight-risk-service/internal/validation"
)

const (
	// SearchLimit caps airport search results.
	SearchLimit = 10

	maxSearchQueryLen = 100
)

// AirportService serves airport reference data using cache-aside over the store.
type AirportService struct {
	store store.AirportStore
	cache cache.Cache
	ttl   time.Duration
}

// NewAirportService creates an AirportService. A nil cache disables caching.
func NewAirportService(s store.AirportStore, c cache.Cache, ttl time.Duration) *AirportService {
	return &AirportService{store: s, cache: c, ttl: ttl}
}

// GetAirport returns the airport with exactly this code. A successful store read populates the cache.
func (s *AirportService) GetAirport(ctx context.Context, code string) (models.Airport, error) {
	c, err := validation.ValidateAirportCode(code)
	if err != nil {
		return models.Airport{}, invalidArgument("code", err)
	}
	logger := loggerFromContext(ctx)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, c)
		switch {
		case err != nil:
			observability.AirportCacheLookupsTotal.WithLabelValues("error").Inc()
			if logger != nil {
				logger.Warn("airport cache get failed", zap.String("airport", c), zap.Error(err))
			}
		case ok:
			observability.AirportCacheLookupsTotal.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			observability.AirportCacheLookupsTotal.WithLabelValues("miss").Inc()
		}
	}

	a, err := s.store.FindAirportByCode(ctx, c)
	if err != nil {
		return models.Airport{}, translateStoreError("airport "+c, err)
	}
	s.remember(ctx, logger, a)
	return a, nil
}

func (s *AirportService) remember(ctx context.Context, logger *zap.Logger, a models.Airport) {
	if s.cache == nil || a.Code == "" {
		return
	}
	if err := s.cache.Set(ctx, a.Code, a, s.ttl); err != nil && logger != nil {
		logger.Warn("airport cache set failed", zap.String("airport", a.Code), zap.Error(err))
	}
}

// List returns every airport ordered by code.
func (s *AirportService) List(ctx context.Context) ([]models.Airport, error) {
	return s.store.ListAirports(ctx)
}

// Search returns up to SearchLimit airports whose name, city or code contains query,
// ignoring case.
func (s *AirportService) Search(ctx context.Context, query string) ([]models.Airport, error) {
	q, err := validation.ValidateSearchQuery(query, maxSearchQueryLen)
	if err != nil {
		return nil, invalidArgument("q", err)
	}
	return s.store.SearchAirports(ctx, q, SearchLimit)
}

// Create adds an airport. The code, when present, must be three uppercase letters and unique.
func (s *AirportService) Create(ctx context.Context, a models.Airport) (models.Airport, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.City = strings.TrimSpace(a.City)
	a.Country = strings.TrimSpace(a.Country)
	a.Code = strings.TrimSpace(a.Code)
	if err := validateAirport(a); err != nil {
		return models.Airport{}, err
	}
	created, err := s.store.CreateAirport(ctx, a)
	if err != nil {
		return models.Airport{}, translateStoreError(fmt.Sprintf("airport %q", a.Code), err)
	}
	logger := loggerFromContext(ctx)
	if logger != nil {
		logger.Info("airport created", zap.Int64("airport_id", created.ID), zap.String("airport", created.Code))
	}
	s.remember(ctx, logger, created)
	return created, nil
}

func validateAirport(a models.Airport) error {
	if a.Name == "" {
		return invalidArgument("name", errors.New("is required"))
	}
	if a.Code != "" {
		if _, err := validation.ValidateAirportCode(a.Code); err != nil {
			return invalidArgument("code", err)
		}
		if a.Code != strings.ToUpper(a.Code) {
			return invalidArgument("code", errors.New("must be uppercase"))
		}
	}
	if (a.Latitude == nil) != (a.Longitude == nil) {
		return invalidArgument("coordinates", errors.New("latitude and longitude must be given together"))
	}
	if a.Latitude != nil {
		lat, lon := *a.Latitude, *a.Longitude
		if math.IsNaN(lat) || lat < -90 || lat > 90 {
			return invalidArgument("latitude", fmt.Errorf("%v out of range", lat))
		}
		if math.IsNaN(lon) || lon < -180 || lon > 180 {
			return invalidArgument("longitude", fmt.Errorf("%v out of range", lon))
		}
	}
	return nil
}
