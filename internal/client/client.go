package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kjstillabower/flight-risk-service/internal/circuitbreaker"
	"github.com/kjstillabower/flight-risk-service/internal/models"
	"github.com/kjstillabower/flight-risk-service/internal/observability"
)

// WeatherClient fetches current conditions for a coordinate pair.
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, latitude, longitude float64) (models.WeatherObservation, error)
}

var (
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
)

// DefaultForecastURL is the public Open-Meteo forecast endpoint.
const DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"

// openMeteoTimeLayout is the minute-resolution ISO layout Open-Meteo uses for current_weather.time.
const openMeteoTimeLayout = "2006-01-02T15:04"

const maxBodyBytes = 1 << 20

// OpenMeteoClient calls the Open-Meteo forecast API once per lookup. No retries.
type OpenMeteoClient struct {
	apiURL  string
	timeout time.Duration
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	now     func() time.Time
}

func NewOpenMeteoClient(apiURL string, timeout time.Duration) (*OpenMeteoClient, error) {
	if apiURL == "" {
		apiURL = DefaultForecastURL
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0, got %v", timeout)
	}
	return &OpenMeteoClient{
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}, nil
}

// SetCircuitBreaker routes every call through cb. A nil cb disables the breaker.
func (c *OpenMeteoClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// GetCurrentWeather returns the current observation at (latitude, longitude).
func (c *OpenMeteoClient) GetCurrentWeather(ctx context.Context, latitude, longitude float64) (models.WeatherObservation, error) {
	if c.breaker == nil {
		return c.callAPI(ctx, latitude, longitude)
	}
	var obs models.WeatherObservation
	err := c.breaker.Call(ctx, func() error {
		var callErr error
		obs, callErr = c.callAPI(ctx, latitude, longitude)
		return callErr
	})
	if err != nil {
		return models.WeatherObservation{}, err
	}
	return obs, nil
}

func (c *OpenMeteoClient) callAPI(ctx context.Context, latitude, longitude float64) (models.WeatherObservation, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, latitude, longitude)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.WeatherObservation{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.WeatherObservation{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.WeatherObservation{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	if err := handleErrorResponse(resp); err != nil {
		return models.WeatherObservation{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.WeatherObservation{}, fmt.Errorf("read response body: %w", err)
	}
	return c.parseResponse(body)
}

func (c *OpenMeteoClient) buildRequest(ctx context.Context, latitude, longitude float64) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := baseURL.Query()
	params.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	params.Set("current_weather", "true")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

type openMeteoResponse struct {
	CurrentWeather json.RawMessage `json:"current_weather"`
}

// currentWeather fields are decoded individually so a missing, null or mistyped
// windspeed or weathercode falls back to zero instead of failing the lookup.
type currentWeather struct {
	WindSpeed   json.RawMessage `json:"windspeed"`
	WeatherCode json.RawMessage `json:"weathercode"`
	Time        json.RawMessage `json:"time"`
}

func (c *OpenMeteoClient) parseResponse(body []byte) (models.WeatherObservation, error) {
	var apiResp openMeteoResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.WeatherObservation{}, fmt.Errorf("%w: parse response: %v", ErrMalformedResponse, err)
	}
	if len(apiResp.CurrentWeather) == 0 || string(apiResp.CurrentWeather) == "null" {
		return models.WeatherObservation{}, fmt.Errorf("%w: current_weather missing", ErrMalformedResponse)
	}
	var cw currentWeather
	if err := json.Unmarshal(apiResp.CurrentWeather, &cw); err != nil {
		return models.WeatherObservation{}, fmt.Errorf("%w: parse current_weather: %v", ErrMalformedResponse, err)
	}

	obs := models.WeatherObservation{
		WindSpeed:   decodeFloat(cw.WindSpeed),
		WeatherCode: int(decodeFloat(cw.WeatherCode)),
		Time:        c.decodeTime(cw.Time),
	}
	if obs.WindSpeed < 0 || math.IsNaN(obs.WindSpeed) || math.IsInf(obs.WindSpeed, 0) {
		return models.WeatherObservation{}, fmt.Errorf("%w: windspeed %v", ErrMalformedResponse, obs.WindSpeed)
	}
	return obs, nil
}

func decodeFloat(raw json.RawMessage) float64 {
	var v float64
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return 0
	}
	return v
}

// decodeTime reads the provider's wall-clock time; an absent or unreadable value
// falls back to the local fetch time.
func (c *OpenMeteoClient) decodeTime(raw json.RawMessage) time.Time {
	var s string
	if len(raw) > 0 && json.Unmarshal(raw, &s) == nil {
		for _, layout := range []string{openMeteoTimeLayout, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	n := c.now()
	return time.Date(n.Year(), n.Month(), n.Day(), n.Hour(), n.Minute(), 0, 0, time.UTC)
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
