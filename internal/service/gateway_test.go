package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/flight-risk-service/internal/circuitbreaker"
	"github.com/kjstillabower/flight-risk-service/internal/client"
	"github.com/kjstillabower/flight-risk-service/internal/models"
)

func coords(lat, lon float64) (*float64, *float64) { return &lat, &lon }

func airportAt(code string, lat, lon float64) models.Airport {
	la, lo := coords(lat, lon)
	return models.Airport{ID: 1, Code: code, Latitude: la, Longitude: lo}
}

// TestWeatherGateway_Fetch_Success verifies an observation is passed through unchanged.
func TestWeatherGateway_Fetch_Success(t *testing.T) {
	obs := models.WeatherObservation{WindSpeed: 18.5, WeatherCode: 3, Time: time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)}
	gw := NewWeatherGateway(&mockWeatherClient{obs: obs}, nil)

	got := gw.Fetch(context.Background(), airportAt("DEL", 28.5562, 77.1))
	o, ok := got.Observation()
	if !ok {
		t.Fatal("Fetch() unavailable, want observation")
	}
	if o != obs {
		t.Errorf("Fetch() = %+v, want %+v", o, obs)
	}
}

// TestWeatherGateway_Fetch_NoCoordinates verifies no outbound call is made when either
// coordinate is missing.
func TestWeatherGateway_Fetch_NoCoordinates(t *testing.T) {
	lat := 10.0
	tests := []struct {
		name    string
		airport models.Airport
	}{
		{"both missing", models.Airport{ID: 5, Code: "XXA"}},
		{"longitude missing", models.Airport{ID: 6, Code: "XXB", Latitude: &lat}},
		{"latitude missing", models.Airport{ID: 7, Code: "XXC", Longitude: &lat}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := &mockWeatherClient{obs: models.WeatherObservation{WindSpeed: 50}}
			gw := NewWeatherGateway(mc, nil)
			if got := gw.Fetch(context.Background(), tt.airport); got.Available() {
				t.Errorf("Fetch() = %+v, want unavailable", got)
			}
			if mc.callCount() != 0 {
				t.Errorf("client called %d times, want 0", mc.callCount())
			}
		})
	}
}

// TestWeatherGateway_Fetch_FailureIsUnavailable verifies every client error becomes
// unavailable and is logged at warn level with a categorised reason.
func TestWeatherGateway_Fetch_FailureIsUnavailable(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason string
	}{
		{"upstream", client.ErrUpstreamFailure, "upstream_error"},
		{"malformed", client.ErrMalformedResponse, "parsing"},
		{"timeout", context.DeadlineExceeded, "timeout"},
		{"circuit open", circuitbreaker.ErrOpen, "circuit_open"},
		{"rate limited", client.ErrRateLimited, "rate_limited"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			logger := zap.New(core)
			ctx := context.WithValue(context.Background(), "logger", logger)

			gw := NewWeatherGateway(&mockWeatherClient{err: tt.err}, nil)
			if got := gw.Fetch(ctx, airportAt("BOM", 19.0896, 72.8656)); got.Available() {
				t.Fatalf("Fetch() = %+v, want unavailable", got)
			}

			entries := logs.FilterMessage("weather unavailable").All()
			if len(entries) != 1 {
				t.Fatalf("expected 1 warn log, got %d", len(entries))
			}
			if reason := entries[0].ContextMap()["reason"]; reason != tt.wantReason {
				t.Errorf("reason = %v, want %q", reason, tt.wantReason)
			}
			if code := entries[0].ContextMap()["airport"]; code != "BOM" {
				t.Errorf("airport = %v, want BOM", code)
			}
		})
	}
}

// TestWeatherGateway_Fetch_RecoversPanic verifies a panicking client is contained.
func TestWeatherGateway_Fetch_RecoversPanic(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	gw := NewWeatherGateway(&mockWeatherClient{panic: true}, zap.New(core))

	got := gw.Fetch(context.Background(), airportAt("LHR", 51.47, -0.4543))
	if got.Available() {
		t.Fatalf("Fetch() = %+v, want unavailable", got)
	}
	entries := logs.All()
	if len(entries) != 1 || entries[0].ContextMap()["reason"] != "panic" {
		t.Errorf("expected one panic warn log, got %+v", entries)
	}
}

// TestWeatherGateway_Fetch_CancelledCaller verifies a cancelled request yields unavailable
// without blocking.
func TestWeatherGateway_Fetch_CancelledCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw := NewWeatherGateway(&mockWeatherClient{err: errors.New("request timeout: context canceled")}, nil)

	if got := gw.Fetch(ctx, airportAt("DXB", 25.2532, 55.3657)); got.Available() {
		t.Errorf("Fetch() = %+v, want unavailable", got)
	}
}
