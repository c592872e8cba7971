package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kjstillabower/flight-risk-service/internal/models"
)

func coord(v float64) *float64 { return &v }

// SeedDemoData loads a small demo network when the airport table is empty:
// DEL, BOM, DXB and LHR, two aircraft, and flights AI-101 (DEL-BOM, now+2h),
// EK-500 (DXB-LHR, now+1d) and UK-999 (LHR-DEL, now+2d, DELAYED).
// Returns false when data already existed.
func (s *SQLStore) SeedDemoData(ctx context.Context, now time.Time) (bool, error) {
	n, err := s.CountAirports(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	now = Naive(now)

	airports := []models.Airport{
		{Name: "Indira Gandhi International Airport", City: "New Delhi", Country: "India", Latitude: coord(28.5562), Longitude: coord(77.1000), Code: "DEL"},
		{Name: "Chhatrapati Shivaji Maharaj International Airport", City: "Mumbai", Country: "India", Latitude: coord(19.0896), Longitude: coord(72.8656), Code: "BOM"},
		{Name: "Dubai International Airport", City: "Dubai", Country: "UAE", Latitude: coord(25.2532), Longitude: coord(55.3657), Code: "DXB"},
		{Name: "Heathrow Airport", City: "London", Country: "UK", Latitude: coord(51.4700), Longitude: coord(-0.4543), Code: "LHR"},
	}
	byCode := make(map[string]models.Airport, len(airports))
	for _, a := range airports {
		created, err := s.CreateAirport(ctx, a)
		if err != nil {
			return false, fmt.Errorf("seed airport %s: %w", a.Code, err)
		}
		byCode[a.Code] = created
	}

	a320, err := s.CreateAircraft(ctx, models.Aircraft{Model: "Airbus A320", TotalSeats: 180, EconomySeats: 150, BusinessSeats: 30})
	if err != nil {
		return false, fmt.Errorf("seed aircraft: %w", err)
	}
	b777, err := s.CreateAircraft(ctx, models.Aircraft{Model: "Boeing 777", TotalSeats: 300, EconomySeats: 250, BusinessSeats: 50})
	if err != nil {
		return false, fmt.Errorf("seed aircraft: %w", err)
	}

	flights := []models.Flight{
		{FlightNumber: "AI-101", Departure: byCode["DEL"], Arrival: byCode["BOM"],
			DepartureTime: now.Add(2 * time.Hour), ArrivalTime: now.Add(4 * time.Hour),
			Aircraft: &a320, Status: models.StatusScheduled, BaseFare: 150},
		{FlightNumber: "EK-500", Departure: byCode["DXB"], Arrival: byCode["LHR"],
			DepartureTime: now.AddDate(0, 0, 1), ArrivalTime: now.AddDate(0, 0, 1).Add(7 * time.Hour),
			Aircraft: &b777, Status: models.StatusScheduled, BaseFare: 450},
		{FlightNumber: "UK-999", Departure: byCode["LHR"], Arrival: byCode["DEL"],
			DepartureTime: now.AddDate(0, 0, 2), ArrivalTime: now.AddDate(0, 0, 2).Add(8 * time.Hour),
			Aircraft: &b777, Status: models.StatusDelayed, BaseFare: 500},
	}
	for _, f := range flights {
		if _, err := s.CreateFlight(ctx, f); err != nil {
			return false, fmt.Errorf("seed flight %s: %w", f.FlightNumber, err)
		}
	}
	return true, nil
}
