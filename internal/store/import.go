package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Column positions in the OurAirports airports.csv layout.
const (
	colType         = 2
	colName         = 3
	colLatitude     = 4
	colLongitude    = 5
	colCountry      = 8
	colMunicipality = 10
	colIATA         = 13
	minColumns      = 14

	importBatchSize = 1000
)

// ImportStats summarises one CSV import.
type ImportStats struct {
	Rows       int
	Inserted   int
	Duplicates int
	Skipped    int
}

type importRow struct {
	name, city, country, code string
	lat, lon                  float64
}

// ImportAirportsCSV adds airports from an OurAirports-style CSV. The header row is skipped,
// closed and balloonport entries are ignored, and rows missing a name, municipality, country
// or IATA code are skipped. Codes already stored, or repeated within the file, are not
// inserted again. Rows with unparsable coordinates are skipped with a warning.
func (s *SQLStore) ImportAirportsCSV(ctx context.Context, r io.Reader, logger *zap.Logger) (ImportStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	existing, err := s.AirportCodes(ctx)
	if err != nil {
		return ImportStats{}, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		seen[c] = struct{}{}
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	var stats ImportStats
	batch := make([]importRow, 0, importBatchSize)
	header := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Skipped++
				continue
			}
			return stats, fmt.Errorf("read csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		stats.Rows++
		if len(record) < minColumns {
			stats.Skipped++
			continue
		}
		kind := clean(record[colType])
		if strings.EqualFold(kind, "closed") || strings.EqualFold(kind, "balloonport") {
			stats.Skipped++
			continue
		}
		row := importRow{
			name:    clean(record[colName]),
			city:    clean(record[colMunicipality]),
			country: clean(record[colCountry]),
			code:    clean(record[colIATA]),
		}
		if row.name == "" || row.city == "" || row.country == "" || row.code == "" {
			stats.Skipped++
			continue
		}
		if _, dup := seen[row.code]; dup {
			stats.Duplicates++
			continue
		}
		lat, latErr := strconv.ParseFloat(clean(record[colLatitude]), 64)
		lon, lonErr := strconv.ParseFloat(clean(record[colLongitude]), 64)
		if latErr != nil || lonErr != nil {
			logger.Warn("skipping airport with invalid coordinates", zap.String("name", row.name), zap.String("code", row.code))
			stats.Skipped++
			continue
		}
		row.lat, row.lon = lat, lon
		seen[row.code] = struct{}{}
		batch = append(batch, row)

		if len(batch) >= importBatchSize {
			if err := s.insertAirportBatch(ctx, batch); err != nil {
				return stats, err
			}
			stats.Inserted += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := s.insertAirportBatch(ctx, batch); err != nil {
			return stats, err
		}
		stats.Inserted += len(batch)
	}
	logger.Info("airport import complete",
		zap.Int("rows", stats.Rows),
		zap.Int("inserted", stats.Inserted),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

func (s *SQLStore) insertAirportBatch(ctx context.Context, batch []importRow) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO airports (name, city, country, latitude, longitude, code) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare import batch: %w", err)
	}
	defer stmt.Close()

	for _, a := range batch {
		if _, err := stmt.ExecContext(ctx, a.name, a.city, a.country, a.lat, a.lon, a.code); err != nil {
			return fmt.Errorf("insert airport %s: %w", a.code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import batch: %w", err)
	}
	return nil
}

// clean trims whitespace and one pair of surrounding double quotes.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
