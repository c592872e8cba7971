package models

// Airport is airport reference data. Latitude and Longitude are nil when the
// source row carried no coordinates; Code is empty for legacy rows without an
// IATA code.
type Airport struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	City      string   `json:"city"`
	Country   string   `json:"country"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Code      string   `json:"code,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (a Airport) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// Aircraft is a fleet entry assigned to flights.
type Aircraft struct {
	ID            int64  `json:"id"`
	Model         string `json:"model"`
	TotalSeats    int    `json:"totalSeats"`
	EconomySeats  int    `json:"economySeats"`
	BusinessSeats int    `json:"businessSeats"`
}
