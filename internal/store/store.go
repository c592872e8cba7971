// Package store persists airports, aircraft and flights in SQLite.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// ErrInvalidReference is returned when a row references an airport or aircraft that does not exist.
var ErrInvalidReference = errors.New("invalid reference")

var sdb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

const schema = `
CREATE TABLE IF NOT EXISTS airports (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name      TEXT NOT NULL,
	city      TEXT NOT NULL DEFAULT '',
	country   TEXT NOT NULL DEFAULT '',
	latitude  REAL,
	longitude REAL,
	code      TEXT UNIQUE
);
CREATE TABLE IF NOT EXISTS aircraft (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	model          TEXT NOT NULL,
	total_seats    INTEGER NOT NULL DEFAULT 0,
	economy_seats  INTEGER NOT NULL DEFAULT 0,
	business_seats INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS flights (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	flight_number        TEXT NOT NULL,
	departure_airport_id INTEGER NOT NULL REFERENCES airports(id),
	arrival_airport_id   INTEGER NOT NULL REFERENCES airports(id),
	departure_time       TEXT NOT NULL,
	arrival_time         TEXT NOT NULL,
	aircraft_id          INTEGER REFERENCES aircraft(id),
	status               TEXT NOT NULL DEFAULT 'SCHEDULED',
	base_fare            REAL NOT NULL DEFAULT 0,
	CHECK (departure_airport_id <> arrival_airport_id),
	CHECK (arrival_time >= departure_time),
	CHECK (base_fare >= 0)
);
CREATE INDEX IF NOT EXISTS idx_flights_departure_time ON flights(departure_time);
`

// SQLStore implements FlightStore and AirportStore on a SQLite database.
type SQLStore struct {
	db *sqlx.DB
}

// Open connects to dsn, enables foreign keys and applies the schema.
// In-memory databases are pinned to a single connection so every query sees the same data.
func Open(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks the database is reachable. Used by /health.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// naiveLayout is fixed width so that text comparison in SQL orders chronologically.
const naiveLayout = "2006-01-02T15:04:05.000000000"

// Naive drops the zone of t, keeping its wall-clock reading.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// naiveTime stores a wall-clock timestamp as fixed-width text.
type naiveTime time.Time

func formatNaive(t time.Time) string {
	return Naive(t).Format(naiveLayout)
}

// Value implements driver.Valuer.
func (n naiveTime) Value() (driver.Value, error) {
	return formatNaive(time.Time(n)), nil
}

// Scan implements sql.Scanner.
func (n *naiveTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	case time.Time:
		*n = naiveTime(Naive(v))
		return nil
	default:
		return fmt.Errorf("naiveTime: cannot scan %T", src)
	}
}

func (n *naiveTime) parse(s string) error {
	t, err := time.Parse(naiveLayout, s)
	if err != nil {
		return fmt.Errorf("naiveTime: %w", err)
	}
	*n = naiveTime(t)
	return nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
