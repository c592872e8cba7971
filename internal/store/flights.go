package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kjstillabower/flight-risk-service/internal/models"
)

// FlightStore is the flight persistence collaborator.
type FlightStore interface {
	FindFlightByID(ctx context.Context, id int64) (models.Flight, error)
	FindFlightsByRouteAndWindow(ctx context.Context, originCode, destCode string, start, end time.Time) ([]models.Flight, error)
	ListFlights(ctx context.Context) ([]models.Flight, error)
	CreateFlight(ctx context.Context, f models.Flight) (models.Flight, error)
	UpdateFlightStatus(ctx context.Context, id int64, next models.FlightStatus) (models.Flight, error)
}

type flightRow struct {
	ID            int64     `db:"id"`
	FlightNumber  string    `db:"flight_number"`
	DepartureTime naiveTime `db:"departure_time"`
	ArrivalTime   naiveTime `db:"arrival_time"`
	Status        string    `db:"status"`
	BaseFare      float64   `db:"base_fare"`

	DepID        int64           `db:"dep_id"`
	DepName      string          `db:"dep_name"`
	DepCity      string          `db:"dep_city"`
	DepCountry   string          `db:"dep_country"`
	DepLatitude  sql.NullFloat64 `db:"dep_latitude"`
	DepLongitude sql.NullFloat64 `db:"dep_longitude"`
	DepCode      sql.NullString  `db:"dep_code"`

	ArrID        int64           `db:"arr_id"`
	ArrName      string          `db:"arr_name"`
	ArrCity      string          `db:"arr_city"`
	ArrCountry   string          `db:"arr_country"`
	ArrLatitude  sql.NullFloat64 `db:"arr_latitude"`
	ArrLongitude sql.NullFloat64 `db:"arr_longitude"`
	ArrCode      sql.NullString  `db:"arr_code"`

	AircraftID    sql.NullInt64  `db:"aircraft_id"`
	AircraftModel sql.NullString `db:"aircraft_model"`
	TotalSeats    sql.NullInt64  `db:"total_seats"`
	EconomySeats  sql.NullInt64  `db:"economy_seats"`
	BusinessSeats sql.NullInt64  `db:"business_seats"`
}

func (r flightRow) model() models.Flight {
	f := models.Flight{
		ID:            r.ID,
		FlightNumber:  r.FlightNumber,
		DepartureTime: time.Time(r.DepartureTime),
		ArrivalTime:   time.Time(r.ArrivalTime),
		Status:        models.FlightStatus(r.Status),
		BaseFare:      r.BaseFare,
		Departure: airportRow{
			ID: r.DepID, Name: r.DepName, City: r.DepCity, Country: r.DepCountry,
			Latitude: r.DepLatitude, Longitude: r.DepLongitude, Code: r.DepCode,
		}.model(),
		Arrival: airportRow{
			ID: r.ArrID, Name: r.ArrName, City: r.ArrCity, Country: r.ArrCountry,
			Latitude: r.ArrLatitude, Longitude: r.ArrLongitude, Code: r.ArrCode,
		}.model(),
	}
	if r.AircraftID.Valid {
		f.Aircraft = &models.Aircraft{
			ID:            r.AircraftID.Int64,
			Model:         r.AircraftModel.String,
			TotalSeats:    int(r.TotalSeats.Int64),
			EconomySeats:  int(r.EconomySeats.Int64),
			BusinessSeats: int(r.BusinessSeats.Int64),
		}
	}
	return f
}

func flightSelect() sq.SelectBuilder {
	return sdb.Select(
		"f.id", "f.flight_number", "f.departure_time", "f.arrival_time", "f.status", "f.base_fare",
		"da.id AS dep_id", "da.name AS dep_name", "da.city AS dep_city", "da.country AS dep_country",
		"da.latitude AS dep_latitude", "da.longitude AS dep_longitude", "da.code AS dep_code",
		"aa.id AS arr_id", "aa.name AS arr_name", "aa.city AS arr_city", "aa.country AS arr_country",
		"aa.latitude AS arr_latitude", "aa.longitude AS arr_longitude", "aa.code AS arr_code",
		"ac.id AS aircraft_id", "ac.model AS aircraft_model", "ac.total_seats", "ac.economy_seats", "ac.business_seats",
	).
		From("flights f").
		Join("airports da ON da.id = f.departure_airport_id").
		Join("airports aa ON aa.id = f.arrival_airport_id").
		LeftJoin("aircraft ac ON ac.id = f.aircraft_id")
}

type queryer interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func selectFlights(ctx context.Context, q queryer, b sq.SelectBuilder) ([]models.Flight, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build flight query: %w", err)
	}
	var rows []flightRow
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select flights: %w", err)
	}
	out := make([]models.Flight, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func findFlight(ctx context.Context, q queryer, id int64) (models.Flight, error) {
	flights, err := selectFlights(ctx, q, flightSelect().Where(sq.Eq{"f.id": id}))
	if err != nil {
		return models.Flight{}, err
	}
	if len(flights) == 0 {
		return models.Flight{}, fmt.Errorf("flight %d: %w", id, ErrNotFound)
	}
	return flights[0], nil
}

// FindFlightByID returns the flight with its airports and aircraft resolved.
func (s *SQLStore) FindFlightByID(ctx context.Context, id int64) (models.Flight, error) {
	return findFlight(ctx, s.db, id)
}

// FindFlightsByRouteAndWindow returns flights from originCode to destCode departing within
// [start, end], both inclusive, ordered by departure time then id.
func (s *SQLStore) FindFlightsByRouteAndWindow(ctx context.Context, originCode, destCode string, start, end time.Time) ([]models.Flight, error) {
	b := flightSelect().
		Where(sq.Eq{"da.code": originCode}).
		Where(sq.Eq{"aa.code": destCode}).
		Where("f.departure_time BETWEEN ? AND ?", formatNaive(start), formatNaive(end)).
		OrderBy("f.departure_time", "f.id")
	return selectFlights(ctx, s.db, b)
}

// ListFlights returns all flights ordered by departure time then id.
func (s *SQLStore) ListFlights(ctx context.Context) ([]models.Flight, error) {
	return selectFlights(ctx, s.db, flightSelect().OrderBy("f.departure_time", "f.id"))
}

// CreateFlight inserts f after checking its invariants and returns the stored flight.
// f.Departure.ID, f.Arrival.ID and f.Aircraft.ID (when set) must reference existing rows.
func (s *SQLStore) CreateFlight(ctx context.Context, f models.Flight) (models.Flight, error) {
	if f.Status == "" {
		f.Status = models.StatusScheduled
	}
	if err := f.Validate(); err != nil {
		return models.Flight{}, err
	}
	var aircraftID sql.NullInt64
	if f.Aircraft != nil {
		aircraftID = sql.NullInt64{Int64: f.Aircraft.ID, Valid: true}
	}
	query, args, err := sdb.Insert("flights").
		Columns("flight_number", "departure_airport_id", "arrival_airport_id",
			"departure_time", "arrival_time", "aircraft_id", "status", "base_fare").
		Values(f.FlightNumber, f.Departure.ID, f.Arrival.ID,
			naiveTime(f.DepartureTime), naiveTime(f.ArrivalTime), aircraftID, string(f.Status), f.BaseFare).
		ToSql()
	if err != nil {
		return models.Flight{}, fmt.Errorf("build flight insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Flight{}, fmt.Errorf("flight %s: %w", f.FlightNumber, ErrInvalidReference)
		}
		return models.Flight{}, fmt.Errorf("insert flight: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Flight{}, fmt.Errorf("flight id: %w", err)
	}
	return s.FindFlightByID(ctx, id)
}

// UpdateFlightStatus moves a flight to next if the state machine allows it.
// Returns models.ErrInvalidTransition otherwise.
func (s *SQLStore) UpdateFlightStatus(ctx context.Context, id int64, next models.FlightStatus) (models.Flight, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Flight{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	current, err := findFlight(ctx, tx, id)
	if err != nil {
		return models.Flight{}, err
	}
	if !current.Status.CanTransitionTo(next) {
		return models.Flight{}, fmt.Errorf("%s -> %s: %w", current.Status, next, models.ErrInvalidTransition)
	}
	query, args, err := sdb.Update("flights").
		Set("status", string(next)).
		Where(sq.Eq{"id": id, "status": string(current.Status)}).
		ToSql()
	if err != nil {
		return models.Flight{}, fmt.Errorf("build status update: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return models.Flight{}, fmt.Errorf("update status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Flight{}, fmt.Errorf("flight %d changed concurrently: %w", id, models.ErrInvalidTransition)
	}
	if err := tx.Commit(); err != nil {
		return models.Flight{}, fmt.Errorf("commit: %w", err)
	}
	current.Status = next
	return current, nil
}

// FindAircraftByID returns one aircraft.
func (s *SQLStore) FindAircraftByID(ctx context.Context, id int64) (models.Aircraft, error) {
	var a models.Aircraft
	err := s.db.QueryRowxContext(ctx,
		`SELECT id, model, total_seats, economy_seats, business_seats FROM aircraft WHERE id = ?`, id).
		Scan(&a.ID, &a.Model, &a.TotalSeats, &a.EconomySeats, &a.BusinessSeats)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Aircraft{}, fmt.Errorf("aircraft %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Aircraft{}, fmt.Errorf("select aircraft: %w", err)
	}
	return a, nil
}

// CreateAircraft inserts an aircraft and returns it with its ID.
func (s *SQLStore) CreateAircraft(ctx context.Context, a models.Aircraft) (models.Aircraft, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO aircraft (model, total_seats, economy_seats, business_seats) VALUES (?, ?, ?, ?)`,
		a.Model, a.TotalSeats, a.EconomySeats, a.BusinessSeats)
	if err != nil {
		return models.Aircraft{}, fmt.Errorf("insert aircraft: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return models.Aircraft{}, fmt.Errorf("aircraft id: %w", err)
	}
	return a, nil
}
