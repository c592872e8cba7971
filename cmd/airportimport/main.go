// Command airportimport loads OurAirports-style airport reference data into the flight database.
//
//	airportimport -csv airports.csv -dsn "file:flights.db?_pragma=foreign_keys(1)"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kjstillabower/flight-risk-service/internal/config"
	"github.com/kjstillabower/flight-risk-service/internal/observability"
	"github.com/kjstillabower/flight-risk-service/internal/store"
)

func main() {
	csvPath := flag.String("csv", "", "path to the airports CSV (required)")
	dsn := flag.String("dsn", "", "database DSN (default: database.dsn from config)")
	flag.Parse()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := run(ctx, *csvPath, *dsn, logger)
	if err != nil {
		logger.Fatal("airport import failed", zap.Error(err))
	}
	fmt.Printf("rows=%d inserted=%d duplicates=%d skipped=%d\n", stats.Rows, stats.Inserted, stats.Duplicates, stats.Skipped)
}

func run(ctx context.Context, csvPath, dsn string, logger *zap.Logger) (store.ImportStats, error) {
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return store.ImportStats{}, fmt.Errorf("config: %w", err)
		}
		dsn = cfg.DatabaseDSN
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return store.ImportStats{}, err
	}
	defer f.Close()

	db, err := store.Open(ctx, dsn)
	if err != nil {
		return store.ImportStats{}, err
	}
	defer db.Close()

	return db.ImportAirportsCSV(ctx, f, logger)
}
