package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/flight-risk-service/internal/circuitbreaker"
)

func newTestClient(t *testing.T, url string) *OpenMeteoClient {
	t.Helper()
	c, err := NewOpenMeteoClient(url, 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}
	c.now = func() time.Time { return time.Date(2025, 3, 14, 8, 17, 42, 0, time.UTC) }
	return c
}

func jsonServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewOpenMeteoClient(t *testing.T) {
	tests := []struct {
		name    string
		apiURL  string
		timeout time.Duration
		wantErr bool
		wantURL string
	}{
		{"explicit URL", "http://localhost:9999/v1/forecast", time.Second, false, "http://localhost:9999/v1/forecast"},
		{"default URL", "", time.Second, false, DefaultForecastURL},
		{"zero timeout", "http://x", 0, true, ""},
		{"bad URL", "http://[::1", time.Second, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewOpenMeteoClient(tt.apiURL, tt.timeout)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewOpenMeteoClient() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOpenMeteoClient() unexpected error: %v", err)
			}
			if c.apiURL != tt.wantURL {
				t.Errorf("apiURL = %q, want %q", c.apiURL, tt.wantURL)
			}
			if c.client.Timeout != tt.timeout {
				t.Errorf("client timeout = %v, want %v", c.client.Timeout, tt.timeout)
			}
		})
	}
}

// TestGetCurrentWeather_Success verifies the request shape and the mapping of current_weather.
func TestGetCurrentWeather_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		q := r.URL.Query()
		if q.Get("latitude") != "28.5562" || q.Get("longitude") != "77.1" {
			t.Errorf("unexpected coordinates in query %q", r.URL.RawQuery)
		}
		if q.Get("current_weather") != "true" {
			t.Errorf("expected current_weather=true, got %q", r.URL.RawQuery)
		}
		if got := r.Header.Get("X-Correlation-ID"); got != "corr-123" {
			t.Errorf("X-Correlation-ID = %q, want corr-123", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"latitude":28.56,"longitude":77.1,"current_weather":{"temperature":31.2,"windspeed":42.0,"winddirection":270,"weathercode":2,"time":"2025-03-14T08:00"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	ctx := context.WithValue(context.Background(), "correlation_id", "corr-123")
	got, err := c.GetCurrentWeather(ctx, 28.5562, 77.1)
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
	if got.WindSpeed != 42.0 {
		t.Errorf("WindSpeed = %v, want 42", got.WindSpeed)
	}
	if got.WeatherCode != 2 {
		t.Errorf("WeatherCode = %d, want 2", got.WeatherCode)
	}
	want := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)
	if !got.Time.Equal(want) {
		t.Errorf("Time = %v, want %v", got.Time, want)
	}
}

// TestGetCurrentWeather_LenientFields verifies absent or mistyped scalar fields default to zero.
func TestGetCurrentWeather_LenientFields(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantWind float64
		wantCode int
	}{
		{"missing windspeed", `{"current_weather":{"weathercode":61,"time":"2025-03-14T08:00"}}`, 0, 61},
		{"missing weathercode", `{"current_weather":{"windspeed":12.5}}`, 12.5, 0},
		{"null fields", `{"current_weather":{"windspeed":null,"weathercode":null}}`, 0, 0},
		{"string windspeed", `{"current_weather":{"windspeed":"fast","weathercode":95}}`, 0, 95},
		{"empty object", `{"current_weather":{}}`, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := jsonServer(t, http.StatusOK, tt.body)
			c := newTestClient(t, server.URL)
			got, err := c.GetCurrentWeather(context.Background(), 1, 2)
			if err != nil {
				t.Fatalf("GetCurrentWeather() error = %v", err)
			}
			if got.WindSpeed != tt.wantWind || got.WeatherCode != tt.wantCode {
				t.Errorf("got wind=%v code=%d, want wind=%v code=%d", got.WindSpeed, got.WeatherCode, tt.wantWind, tt.wantCode)
			}
			if got.Time.IsZero() {
				t.Errorf("Time should fall back to fetch time, got zero")
			}
		})
	}
}

// TestGetCurrentWeather_Errors verifies every failure mode maps to the expected sentinel.
func TestGetCurrentWeather_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrRateLimited},
		{"server error", http.StatusInternalServerError, `{}`, ErrUpstreamFailure},
		{"bad request", http.StatusBadRequest, `{"error":true,"reason":"bad latitude"}`, ErrUpstreamFailure},
		{"not json", http.StatusOK, `<html>oops</html>`, ErrMalformedResponse},
		{"missing current_weather", http.StatusOK, `{"latitude":1}`, ErrMalformedResponse},
		{"null current_weather", http.StatusOK, `{"current_weather":null}`, ErrMalformedResponse},
		{"current_weather not object", http.StatusOK, `{"current_weather":[1,2]}`, ErrMalformedResponse},
		{"negative windspeed", http.StatusOK, `{"current_weather":{"windspeed":-3}}`, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := jsonServer(t, tt.status, tt.body)
			c := newTestClient(t, server.URL)
			_, err := c.GetCurrentWeather(context.Background(), 1, 2)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetCurrentWeather() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestGetCurrentWeather_SingleAttempt verifies failures are not retried.
func TestGetCurrentWeather_SingleAttempt(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	if _, err := c.GetCurrentWeather(context.Background(), 1, 2); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

// TestGetCurrentWeather_Timeout verifies a slow upstream is abandoned at the client timeout.
func TestGetCurrentWeather_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c, err := NewOpenMeteoClient(server.URL, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}
	start := time.Now()
	_, err = c.GetCurrentWeather(context.Background(), 1, 2)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if CategorizeError(err) != ErrorCategoryTimeout {
		t.Errorf("CategorizeError() = %v, want timeout (err=%v)", CategorizeError(err), err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("call took %v, expected to stop near 50ms", elapsed)
	}
}

// TestGetCurrentWeather_CallerCancellation verifies a cancelled caller context abandons the call.
func TestGetCurrentWeather_CallerCancellation(t *testing.T) {
	server := jsonServer(t, http.StatusOK, `{"current_weather":{"windspeed":1}}`)
	c := newTestClient(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetCurrentWeather(ctx, 1, 2)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("GetCurrentWeather() error = %v, want context.Canceled", err)
	}
}

// TestGetCurrentWeather_CircuitBreaker verifies the breaker opens after repeated failures
// and then short-circuits without calling upstream.
func TestGetCurrentWeather_CircuitBreaker(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	c.SetCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
		Component:        "weather_api",
	}))

	for i := 0; i < 2; i++ {
		if _, err := c.GetCurrentWeather(context.Background(), 1, 2); !errors.Is(err, ErrUpstreamFailure) {
			t.Fatalf("call %d error = %v, want ErrUpstreamFailure", i, err)
		}
	}
	_, err := c.GetCurrentWeather(context.Background(), 1, 2)
	if !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Fatalf("error = %v, want circuitbreaker.ErrOpen", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "success"},
		{204, "success"},
		{429, "rate_limited"},
		{404, "client_error"},
		{503, "server_error"},
		{101, "error"},
	}
	for _, tt := range tests {
		if got := statusLabel(tt.code); got != tt.want {
			t.Errorf("statusLabel(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestBuildRequest_KeepsExistingQuery(t *testing.T) {
	c := newTestClient(t, "http://example.test/v1/forecast?timezone=auto")
	req, err := c.buildRequest(context.Background(), -33.9399, 151.1753)
	if err != nil {
		t.Fatalf("buildRequest() error = %v", err)
	}
	q := req.URL.RawQuery
	for _, want := range []string{"timezone=auto", "latitude=-33.9399", "longitude=151.1753", "current_weather=true"} {
		if !strings.Contains(q, want) {
			t.Errorf("query %q missing %q", q, want)
		}
	}
}
