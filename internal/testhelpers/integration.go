//go:build integration
// +build integration

// Package testhelpers builds a full service stack against the live forecast API for
// integration tests.
package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/flight-risk-service/internal/cache"
	"github.com/kjstillabower/flight-risk-service/internal/client"
	"github.com/kjstillabower/flight-risk-service/internal/service"
	"github.com/kjstillabower/flight-risk-service/internal/store"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIURL        string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test unless WEATHER_LIVE_TESTS is set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	if os.Getenv("WEATHER_LIVE_TESTS") == "" {
		t.Skip("WEATHER_LIVE_TESTS not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultForecastURL
	}
	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}
	return IntegrationTestConfig{
		APIURL:        apiURL,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// Stack is a wired set of services over a seeded in-memory store.
type Stack struct {
	Store       *store.SQLStore
	Flights     *service.FlightService
	Airports    *service.AirportService
	Assessments *service.AssessmentService
	Cache       cache.Cache
}

// SetupStack seeds the demo network relative to now and wires services to the live client.
// Falls back to the in-memory cache when memcached is requested but unreachable.
func SetupStack(t *testing.T, cfg IntegrationTestConfig, logger *zap.Logger) *Stack {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if _, err := s.SeedDemoData(ctx, time.Now()); err != nil {
		t.Fatalf("SeedDemoData() error = %v", err)
	}

	weatherClient, err := client.NewOpenMeteoClient(cfg.APIURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}

	var cacheSvc cache.Cache = cache.NewInMemoryCache(time.Minute)
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil && mc.Ping() == nil {
			cacheSvc = mc
			t.Cleanup(func() { _ = mc.Close() })
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("Memcached not available, using in-memory cache")
		}
	}

	gateway := service.NewWeatherGateway(weatherClient, logger)
	return &Stack{
		Store:       s,
		Flights:     service.NewFlightService(s, s),
		Airports:    service.NewAirportService(s, cacheSvc, 5*time.Minute),
		Assessments: service.NewAssessmentService(s, gateway),
		Cache:       cacheSvc,
	}
}
