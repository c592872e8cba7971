// Package risk scores delay risk from a single weather outcome.
package risk

import "github.com/kjstillabower/flight-risk-service/internal/models"

// Thresholds in km/h.
const (
	HighWindKmh   = 40.0
	MediumWindKmh = 25.0
)

// Classify maps a weather outcome to a risk level. Rules are evaluated in order and
// the first match wins; an unavailable outcome is LOW.
func Classify(outcome models.WeatherOutcome) models.RiskLevel {
	obs, ok := outcome.Observation()
	if !ok {
		return models.RiskLow
	}
	switch {
	case obs.WindSpeed > HighWindKmh:
		return models.RiskHigh
	case IsThunderstorm(obs.WeatherCode):
		return models.RiskHigh
	case obs.WindSpeed >= MediumWindKmh:
		return models.RiskMedium
	case IsRain(obs.WeatherCode):
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// IsThunderstorm reports WMO codes 95 (thunderstorm) and 96, 99 (thunderstorm with hail).
func IsThunderstorm(code int) bool {
	return code == 95 || code == 96 || code == 99
}

// IsRain reports drizzle, rain and freezing rain (51-67) and rain showers (80-82).
func IsRain(code int) bool {
	return (code >= 51 && code <= 67) || (code >= 80 && code <= 82)
}
