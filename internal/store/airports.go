package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/kjstillabower/flight-risk-service/internal/models"
)

// AirportStore is the airport reference-data collaborator.
type AirportStore interface {
	FindAirportByCode(ctx context.Context, code string) (models.Airport, error)
	ListAirports(ctx context.Context) ([]models.Airport, error)
	SearchAirports(ctx context.Context, query string, limit int) ([]models.Airport, error)
	CreateAirport(ctx context.Context, a models.Airport) (models.Airport, error)
}

type airportRow struct {
	ID        int64           `db:"id"`
	Name      string          `db:"name"`
	City      string          `db:"city"`
	Country   string          `db:"country"`
	Latitude  sql.NullFloat64 `db:"latitude"`
	Longitude sql.NullFloat64 `db:"longitude"`
	Code      sql.NullString  `db:"code"`
}

func (r airportRow) model() models.Airport {
	return models.Airport{
		ID:        r.ID,
		Name:      r.Name,
		City:      r.City,
		Country:   r.Country,
		Latitude:  floatPtr(r.Latitude),
		Longitude: floatPtr(r.Longitude),
		Code:      r.Code.String,
	}
}

func airportSelect() sq.SelectBuilder {
	return sdb.Select("id", "name", "city", "country", "latitude", "longitude", "code").From("airports")
}

func (s *SQLStore) selectAirports(ctx context.Context, b sq.SelectBuilder) ([]models.Airport, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build airport query: %w", err)
	}
	var rows []airportRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select airports: %w", err)
	}
	out := make([]models.Airport, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// FindAirportByCode returns the airport with exactly this code.
func (s *SQLStore) FindAirportByCode(ctx context.Context, code string) (models.Airport, error) {
	airports, err := s.selectAirports(ctx, airportSelect().Where(sq.Eq{"code": code}).Limit(1))
	if err != nil {
		return models.Airport{}, err
	}
	if len(airports) == 0 {
		return models.Airport{}, fmt.Errorf("airport %q: %w", code, ErrNotFound)
	}
	return airports[0], nil
}

// ListAirports returns every airport ordered by code, code-less rows last.
func (s *SQLStore) ListAirports(ctx context.Context) ([]models.Airport, error) {
	return s.selectAirports(ctx, airportSelect().OrderBy("code IS NULL", "code", "id"))
}

// SearchAirports returns up to limit airports whose name, city or code contains query,
// case-insensitively.
func (s *SQLStore) SearchAirports(ctx context.Context, query string, limit int) ([]models.Airport, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	b := airportSelect().
		Where(sq.Or{
			sq.Expr(`lower(name) LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`lower(city) LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`lower(code) LIKE ? ESCAPE '\'`, pattern),
		}).
		OrderBy("name", "id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return s.selectAirports(ctx, b)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// CreateAirport inserts a and returns it with its assigned ID. A duplicate code yields ErrConflict.
func (s *SQLStore) CreateAirport(ctx context.Context, a models.Airport) (models.Airport, error) {
	query, args, err := sdb.Insert("airports").
		Columns("name", "city", "country", "latitude", "longitude", "code").
		Values(a.Name, a.City, a.Country, nullFloat(a.Latitude), nullFloat(a.Longitude), nullString(a.Code)).
		ToSql()
	if err != nil {
		return models.Airport{}, fmt.Errorf("build airport insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Airport{}, fmt.Errorf("airport %q: %w", a.Code, ErrConflict)
		}
		return models.Airport{}, fmt.Errorf("insert airport: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Airport{}, fmt.Errorf("airport id: %w", err)
	}
	a.ID = id
	return a, nil
}

// AirportCodes returns every non-null airport code.
func (s *SQLStore) AirportCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := s.db.SelectContext(ctx, &codes, `SELECT code FROM airports WHERE code IS NOT NULL`); err != nil {
		return nil, fmt.Errorf("select airport codes: %w", err)
	}
	return codes, nil
}

// CountAirports returns the number of airport rows.
func (s *SQLStore) CountAirports(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM airports`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("count airports: %w", err)
	}
	return n, nil
}
