package models

import (
	"encoding/json"
	"time"
)

// WeatherObservation is a current-conditions reading at one point.
// WindSpeed is in km/h; WeatherCode follows the WMO interpretation codes.
type WeatherObservation struct {
	WindSpeed   float64   `json:"windSpeed"`
	WeatherCode int       `json:"weatherCode"`
	Time        time.Time `json:"time"`
}

// WeatherOutcome is either an observation or unavailable. The zero value is unavailable.
type WeatherOutcome struct {
	obs *WeatherObservation
}

// Observed wraps a successful observation.
func Observed(o WeatherObservation) WeatherOutcome {
	return WeatherOutcome{obs: &o}
}

// Unavailable returns the outcome used when no observation could be obtained.
func Unavailable() WeatherOutcome {
	return WeatherOutcome{}
}

// Observation returns the observation and true, or the zero value and false when unavailable.
func (w WeatherOutcome) Observation() (WeatherObservation, bool) {
	if w.obs == nil {
		return WeatherObservation{}, false
	}
	return *w.obs, true
}

// Available reports whether an observation is present.
func (w WeatherOutcome) Available() bool {
	return w.obs != nil
}

type weatherOutcomeJSON struct {
	Available   bool       `json:"available"`
	WindSpeed   *float64   `json:"windSpeed,omitempty"`
	WeatherCode *int       `json:"weatherCode,omitempty"`
	Time        *time.Time `json:"time,omitempty"`
}

// MarshalJSON renders {"available":false} or the observation fields with available=true.
func (w WeatherOutcome) MarshalJSON() ([]byte, error) {
	if w.obs == nil {
		return json.Marshal(weatherOutcomeJSON{})
	}
	o := *w.obs
	return json.Marshal(weatherOutcomeJSON{
		Available:   true,
		WindSpeed:   &o.WindSpeed,
		WeatherCode: &o.WeatherCode,
		Time:        &o.Time,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (w *WeatherOutcome) UnmarshalJSON(b []byte) error {
	var raw weatherOutcomeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if !raw.Available {
		*w = Unavailable()
		return nil
	}
	var o WeatherObservation
	if raw.WindSpeed != nil {
		o.WindSpeed = *raw.WindSpeed
	}
	if raw.WeatherCode != nil {
		o.WeatherCode = *raw.WeatherCode
	}
	if raw.Time != nil {
		o.Time = *raw.Time
	}
	*w = Observed(o)
	return nil
}

// FlightWeather labels the outcome at each end of a flight.
type FlightWeather struct {
	Departure WeatherOutcome `json:"departure"`
	Arrival   WeatherOutcome `json:"arrival"`
}
