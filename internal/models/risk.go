package models

import (
	"encoding/json"
	"fmt"
)

// RiskLevel is an ordinal delay-risk classification. LOW < MEDIUM < HIGH.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("RiskLevel(%d)", int(r))
	}
}

// MarshalJSON encodes the level by name.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes LOW, MEDIUM or HIGH.
func (r *RiskLevel) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "LOW":
		*r = RiskLow
	case "MEDIUM":
		*r = RiskMedium
	case "HIGH":
		*r = RiskHigh
	default:
		return fmt.Errorf("unknown risk level %q", s)
	}
	return nil
}
