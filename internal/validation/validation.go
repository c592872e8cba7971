package validation

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rickb777/date"
)

// ErrCodeEmpty is returned when an airport code is empty or whitespace-only.
var ErrCodeEmpty = errors.New("airport code is required")

// ErrCodeFormat is returned when an airport code is not three ASCII letters.
var ErrCodeFormat = errors.New("airport code must be three letters")

// ErrDateEmpty is returned when the travel date is missing.
var ErrDateEmpty = errors.New("date is required")

// ErrDateFormat is returned when the travel date is not a valid yyyy-MM-dd calendar day.
var ErrDateFormat = errors.New("date must be a calendar day in yyyy-MM-dd form")

// ErrQueryTooLong is returned when a free-text search exceeds the maximum length.
var ErrQueryTooLong = errors.New("search query too long")

var isoDay = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidateAirportCode trims the input and checks it is three ASCII letters.
// Case is preserved: codes are matched exactly against stored uppercase values.
func ValidateAirportCode(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrCodeEmpty
	}
	if len(s) != 3 {
		return "", ErrCodeFormat
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= 'a' && c <= 'z') {
			return "", ErrCodeFormat
		}
	}
	return s, nil
}

// ParseTravelDate parses an ISO yyyy-MM-dd literal into a calendar date.
// Impossible days such as 2025-02-30 are rejected.
func ParseTravelDate(input string) (date.Date, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return date.Date{}, ErrDateEmpty
	}
	if !isoDay.MatchString(s) {
		return date.Date{}, ErrDateFormat
	}
	d, err := date.ParseISO(s)
	if err != nil || d.String() != s {
		return date.Date{}, ErrDateFormat
	}
	return d, nil
}

// DayWindow returns the closed interval covering the whole calendar day d as naive
// wall-clock times: [d 00:00:00, d 23:59:59.999999999].
func DayWindow(d date.Date) (start, end time.Time) {
	start = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// ValidateSearchQuery trims a free-text airport search and bounds its length in runes.
// An empty query is allowed and matches everything.
func ValidateSearchQuery(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	if maxLen > 0 && len([]rune(s)) > maxLen {
		return "", ErrQueryTooLong
	}
	return s, nil
}
