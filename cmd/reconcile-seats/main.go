package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"ticketshow/internal/config"
	"ticketshow/internal/database"
	"ticketshow/internal/logger"
	"ticketshow/internal/repository"
)

// reconcile-seats rebuilds a show's seat ledger from the bookings that
// still hold seats. Used after a release job has ended up failed.
func main() {
	var showID string
	var timeout time.Duration
	flag.StringVar(&showID, "show-id", "", "Show ID to reconcile")
	flag.DurationVar(&timeout, "timeout", time.Minute, "Overall timeout")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if showID == "" {
		logger.Fatal("Missing -show-id")
	}

	if err := run(cfg, showID, timeout); err != nil {
		logger.Fatal("Seat reconciliation failed", "show_id", showID, "error", err)
	}
}

func run(cfg *config.Config, showID string, timeout time.Duration) error {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	shows := repository.NewShowRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	before, err := shows.OccupiedSeats(ctx, showID)
	if err != nil {
		return fmt.Errorf("failed to read current ledger: %w", err)
	}

	start := time.Now()
	total, err := shows.RebuildLedger(ctx, showID)
	if err != nil {
		return err
	}

	logger.WithFields("show_id", showID).Info("Seat reconciliation completed",
		"seats_before", len(before),
		"seats_after", total,
		"duration", time.Since(start).String())
	return nil
}
