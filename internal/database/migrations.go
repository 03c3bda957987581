package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createUsersTable,
		createShowsTable,
		createBookingsTable,
		createDelayedJobsTable,
		createShowsDateIndex,
		createBookingsCreatedIndex,
		createDelayedJobsDueIndex,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

// users is a read-only mirror of identity provider profiles
const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(255) PRIMARY KEY,
    email VARCHAR(255) NOT NULL DEFAULT '',
    first_name VARCHAR(100) NOT NULL DEFAULT '',
    last_name VARCHAR(100) NOT NULL DEFAULT '',
    username VARCHAR(100) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// occupied_seats maps seat id to the id of the booking that owns it
const createShowsTable = `
CREATE TABLE IF NOT EXISTS shows (
    id VARCHAR(64) PRIMARY KEY,
    movie_id VARCHAR(64) NOT NULL,
    show_date_time TIMESTAMPTZ NOT NULL,
    price BIGINT NOT NULL CHECK (price >= 0),
    occupied_seats JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id UUID PRIMARY KEY,
    show_id VARCHAR(64) NOT NULL REFERENCES shows(id) ON DELETE CASCADE,
    user_id VARCHAR(255) NOT NULL,
    seats TEXT[] NOT NULL,
    amount BIGINT NOT NULL,
    paid BOOLEAN NOT NULL DEFAULT FALSE,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    order_id VARCHAR(255),
    payment_id VARCHAR(255),
    email VARCHAR(255) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('pending', 'paid', 'expired'))
);`

const createDelayedJobsTable = `
CREATE TABLE IF NOT EXISTS delayed_jobs (
    id UUID PRIMARY KEY,
    kind VARCHAR(64) NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}'::jsonb,
    run_at TIMESTAMPTZ NOT NULL,
    cron_expr VARCHAR(128) NOT NULL DEFAULT '',
    unique_key VARCHAR(255) UNIQUE,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    attempts INTEGER NOT NULL DEFAULT 0,
    locked_until TIMESTAMPTZ,
    last_error TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('pending', 'done', 'failed'))
);`

const createShowsDateIndex = `
CREATE INDEX IF NOT EXISTS shows_show_date_time_idx ON shows (show_date_time);`

const createBookingsCreatedIndex = `
CREATE INDEX IF NOT EXISTS bookings_created_at_idx ON bookings (created_at);`

const createDelayedJobsDueIndex = `
CREATE INDEX IF NOT EXISTS delayed_jobs_due_idx ON delayed_jobs (run_at) WHERE status = 'pending';`
