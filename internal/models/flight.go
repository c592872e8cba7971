package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// FlightStatus is the operational state of a flight.
type FlightStatus string

const (
	StatusScheduled FlightStatus = "SCHEDULED"
	StatusDelayed   FlightStatus = "DELAYED"
	StatusCancelled FlightStatus = "CANCELLED"
	StatusDeparted  FlightStatus = "DEPARTED"
	StatusArrived   FlightStatus = "ARRIVED"
)

// ErrInvalidTransition is returned when a status change is not allowed by the state machine.
var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[FlightStatus][]FlightStatus{
	StatusScheduled: {StatusDelayed, StatusCancelled, StatusDeparted},
	StatusDelayed:   {StatusDeparted, StatusCancelled},
	StatusDeparted:  {StatusArrived},
}

// Valid reports whether s is one of the known statuses.
func (s FlightStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusDelayed, StatusCancelled, StatusDeparted, StatusArrived:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s FlightStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusArrived
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s FlightStatus) CanTransitionTo(next FlightStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Flight is a scheduled flight with its endpoint airports resolved.
// DepartureTime and ArrivalTime are naive wall-clock values; their Location is ignored.
type Flight struct {
	ID            int64        `json:"id"`
	FlightNumber  string       `json:"flightNumber"`
	Departure     Airport      `json:"departureAirport"`
	Arrival       Airport      `json:"arrivalAirport"`
	DepartureTime time.Time    `json:"departureTime"`
	ArrivalTime   time.Time    `json:"arrivalTime"`
	Aircraft      *Aircraft    `json:"aircraft,omitempty"`
	Status        FlightStatus `json:"status"`
	BaseFare      float64      `json:"baseFare"`
}

// Validate checks the invariants every stored flight must satisfy.
func (f Flight) Validate() error {
	if f.FlightNumber == "" {
		return errors.New("flight number is required")
	}
	if f.Departure.ID == 0 || f.Arrival.ID == 0 {
		return errors.New("departure and arrival airports are required")
	}
	if f.Departure.ID == f.Arrival.ID {
		return errors.New("departure and arrival airports must differ")
	}
	if f.ArrivalTime.Before(f.DepartureTime) {
		return errors.New("arrival time must not be before departure time")
	}
	if f.BaseFare < 0 {
		return fmt.Errorf("base fare must be non-negative, got %v", f.BaseFare)
	}
	if !f.Status.Valid() {
		return fmt.Errorf("unknown status %q", f.Status)
	}
	return nil
}

// LocalTimeLayout renders naive wall-clock timestamps without a zone designator.
const LocalTimeLayout = "2006-01-02T15:04:05"

var localTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// ParseLocalTime reads a wall-clock timestamp. A zone offset, if present, is dropped
// without converting: "10:00+05:30" becomes 10:00.
func ParseLocalTime(s string) (time.Time, error) {
	for _, layout := range localTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q, want yyyy-MM-ddTHH:mm:ss", s)
}

type flightJSON struct {
	ID            int64        `json:"id"`
	FlightNumber  string       `json:"flightNumber"`
	Departure     Airport      `json:"departureAirport"`
	Arrival       Airport      `json:"arrivalAirport"`
	DepartureTime string       `json:"departureTime"`
	ArrivalTime   string       `json:"arrivalTime"`
	Aircraft      *Aircraft    `json:"aircraft,omitempty"`
	Status        FlightStatus `json:"status"`
	BaseFare      float64      `json:"baseFare"`
}

// MarshalJSON writes departure and arrival times in LocalTimeLayout.
func (f Flight) MarshalJSON() ([]byte, error) {
	return json.Marshal(flightJSON{
		ID:            f.ID,
		FlightNumber:  f.FlightNumber,
		Departure:     f.Departure,
		Arrival:       f.Arrival,
		DepartureTime: formatLocal(f.DepartureTime),
		ArrivalTime:   formatLocal(f.ArrivalTime),
		Aircraft:      f.Aircraft,
		Status:        f.Status,
		BaseFare:      f.BaseFare,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (f *Flight) UnmarshalJSON(b []byte) error {
	var raw flightJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	dep, err := ParseLocalTime(raw.DepartureTime)
	if err != nil {
		return err
	}
	arr, err := ParseLocalTime(raw.ArrivalTime)
	if err != nil {
		return err
	}
	*f = Flight{
		ID:            raw.ID,
		FlightNumber:  raw.FlightNumber,
		Departure:     raw.Departure,
		Arrival:       raw.Arrival,
		DepartureTime: dep,
		ArrivalTime:   arr,
		Aircraft:      raw.Aircraft,
		Status:        raw.Status,
		BaseFare:      raw.BaseFare,
	}
	return nil
}

func formatLocal(t time.Time) string {
	if t.Nanosecond() == 0 {
		return t.Format(LocalTimeLayout)
	}
	return t.Format("2006-01-02T15:04:05.999999999")
}
