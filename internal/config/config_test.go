package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalEnvYAML = `
server:
  port: "8080"
weather_api:
  url: "https://api.example.com/v1/forecast"
  timeout: "2s"
request:
  timeout: "5s"
database:
  dsn: "file::memory:?cache=shared"
cache:
  ttl: "5m"
reliability:
  rate_limit_rps: 5
  rate_limit_burst: 10
shutdown:
  timeout: "10s"
`

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

// loadFrom writes content as config/dev.yaml in a temp dir, clears the env overrides
// and runs Load from there.
func loadFrom(t *testing.T, content string) (*Config, error) {
	t.Helper()
	for _, k := range []string{"ENV_NAME", "DATABASE_DSN", "CACHE_BACKEND", "MEMCACHED_ADDRS", "WEATHER_API_URL"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	writeEnvFile(t, dir, content)
	t.Chdir(dir)
	return Load()
}

func TestLoad_Minimal(t *testing.T) {
	cfg, err := loadFrom(t, minimalEnvYAML)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.WeatherAPIURL != "https://api.example.com/v1/forecast" {
		t.Errorf("WeatherAPIURL = %q", cfg.WeatherAPIURL)
	}
	if cfg.WeatherAPITimeout != 2*time.Second || cfg.RequestTimeout != 5*time.Second {
		t.Errorf("timeouts = %v / %v, want 2s / 5s", cfg.WeatherAPITimeout, cfg.RequestTimeout)
	}
	if cfg.DatabaseDSN != "file::memory:?cache=shared" {
		t.Errorf("DatabaseDSN = %q", cfg.DatabaseDSN)
	}
	if !cfg.SeedDemoData {
		t.Error("SeedDemoData = false, want true by default")
	}
	if cfg.CacheBackend != "in_memory" || cfg.CacheTTL != 5*time.Minute {
		t.Errorf("cache = %q %v", cfg.CacheBackend, cfg.CacheTTL)
	}
	if cfg.MemcachedAddrs != "localhost:11211" {
		t.Errorf("MemcachedAddrs = %q, want default", cfg.MemcachedAddrs)
	}
	if cfg.RateLimitRPS != 5 || cfg.RateLimitBurst != 10 {
		t.Errorf("rate limit = %d/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if !cfg.CircuitBreakerEnabled || cfg.CircuitBreakerFailureThreshold != 5 || cfg.CircuitBreakerOpenTimeout != 30*time.Second {
		t.Errorf("circuit breaker defaults = %v %d %v", cfg.CircuitBreakerEnabled, cfg.CircuitBreakerFailureThreshold, cfg.CircuitBreakerOpenTimeout)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	t.Setenv("ENV_NAME", "nonexistent")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing env file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "nonexistent.yaml") {
		t.Errorf("Load() error = %v, want path of missing file", err)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	_, err := loadFrom(t, "server: [unterminated\n")
	if err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_NAME", "")
	t.Setenv("DATABASE_DSN", "file:/tmp/override.db")
	t.Setenv("CACHE_BACKEND", "MEMCACHED")
	t.Setenv("MEMCACHED_ADDRS", "cache1:11211,cache2:11211")
	t.Setenv("WEATHER_API_URL", "http://localhost:9999/v1/forecast")
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	t.Chdir(dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabaseDSN != "file:/tmp/override.db" {
		t.Errorf("DatabaseDSN = %q", cfg.DatabaseDSN)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "cache1:11211,cache2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.WeatherAPIURL != "http://localhost:9999/v1/forecast" {
		t.Errorf("WeatherAPIURL = %q", cfg.WeatherAPIURL)
	}
}

// TestLoad_EmptyDurationFallsBackToDefault verifies omitted durations use defaults.
func TestLoad_EmptyDurationFallsBackToDefault(t *testing.T) {
	cfg, err := loadFrom(t, "server:\n  port: \"9090\"\n")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPITimeout != 3*time.Second {
		t.Errorf("WeatherAPITimeout = %v, want 3s", cfg.WeatherAPITimeout)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h", cfg.CacheTTL)
	}
	if cfg.WeatherAPIURL != "https://api.open-meteo.com/v1/forecast" {
		t.Errorf("WeatherAPIURL = %q, want Open-Meteo default", cfg.WeatherAPIURL)
	}
	if cfg.CacheWarmInterval != 0 {
		t.Errorf("CacheWarmInterval = %v, want 0 (disabled)", cfg.CacheWarmInterval)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	cfg, err := loadFrom(t, minimalEnvYAML+"lifecycle:\n  overload_window: \"soon\"\n")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OverloadWindow != 60*time.Second {
		t.Errorf("OverloadWindow = %v, want 60s", cfg.OverloadWindow)
	}
}

// TestLoad_RequestTimeoutRaisedAboveWeatherTimeout verifies the request deadline always
// leaves room for the forecast call.
func TestLoad_RequestTimeoutRaisedAboveWeatherTimeout(t *testing.T) {
	yml := `
weather_api:
  timeout: "4s"
request:
  timeout: "2s"
`
	cfg, err := loadFrom(t, yml)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yml  string
		want string
	}{
		{"zero weather timeout", "weather_api:\n  timeout: \"0s\"\n", "weather_api.timeout"},
		{"unknown cache backend", "cache:\n  backend: redis\n", "cache.backend"},
		{"negative ready delay", "lifecycle:\n  ready_delay: \"-1s\"\n", "ready_delay"},
		{"percentage above 100", "lifecycle:\n  degraded_unavailable_pct: 150\n", "at most 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadFrom(t, tt.yml)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want message containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_DatabaseLifecycleAndMetrics(t *testing.T) {
	yml := `
weather_api:
  timeout: "2s"
database:
  dsn: "file:flights.db"
  seed_demo_data: false
  airports_csv: "data/airports.csv"
cache:
  backend: memcached
  warm_interval: "10m"
  memcached:
    addrs: "mc:11211"
    timeout: "250ms"
    max_idle_conns: 8
lifecycle:
  ready_delay: "2s"
  overload_window: "30s"
  overload_threshold_pct: 90
  degraded_window: "2m"
  degraded_unavailable_pct: 40
  degraded_min_samples: 10
metrics:
  tracked_airports: [" del", "LHR", ""]
`
	cfg, err := loadFrom(t, yml)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SeedDemoData {
		t.Error("SeedDemoData = true, want false")
	}
	if cfg.AirportsCSV != "data/airports.csv" {
		t.Errorf("AirportsCSV = %q", cfg.AirportsCSV)
	}
	if cfg.CacheBackend != "memcached" || cfg.MemcachedAddrs != "mc:11211" || cfg.MemcachedTimeout != 250*time.Millisecond || cfg.MemcachedMaxIdleConns != 8 {
		t.Errorf("memcached config = %q %q %v %d", cfg.CacheBackend, cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
	}
	if cfg.CacheWarmInterval != 10*time.Minute {
		t.Errorf("CacheWarmInterval = %v", cfg.CacheWarmInterval)
	}
	if cfg.ReadyDelay != 2*time.Second || cfg.OverloadWindow != 30*time.Second || cfg.OverloadThresholdPct != 90 {
		t.Errorf("lifecycle = %v %v %d", cfg.ReadyDelay, cfg.OverloadWindow, cfg.OverloadThresholdPct)
	}
	if cfg.DegradedWindow != 2*time.Minute || cfg.DegradedUnavailablePct != 40 || cfg.DegradedMinSamples != 10 {
		t.Errorf("degraded = %v %d %d", cfg.DegradedWindow, cfg.DegradedUnavailablePct, cfg.DegradedMinSamples)
	}
	if len(cfg.TrackedAirports) != 2 || cfg.TrackedAirports[0] != "DEL" || cfg.TrackedAirports[1] != "LHR" {
		t.Errorf("TrackedAirports = %v, want [DEL LHR]", cfg.TrackedAirports)
	}
}

// TestLoad_RepoDevConfig verifies the checked-in config/dev.yaml loads.
func TestLoad_RepoDevConfig(t *testing.T) {
	root := findProjectRoot(t)
	for _, k := range []string{"ENV_NAME", "DATABASE_DSN", "CACHE_BACKEND", "MEMCACHED_ADDRS", "WEATHER_API_URL"} {
		t.Setenv(k, "")
	}
	t.Chdir(root)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIURL == "" || cfg.ServerPort == "" || cfg.DatabaseDSN == "" {
		t.Errorf("Load() did not populate config from config/dev.yaml: %+v", cfg)
	}
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Skip("go.mod not found")
		}
		dir = parent
	}
}
