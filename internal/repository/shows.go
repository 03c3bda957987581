package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ticketshow/internal/database"
	apperrors "ticketshow/internal/errors"
	"ticketshow/internal/models"

	"github.com/lib/pq"
)

// ShowRepository owns the shows table and the per-show seat ledger
// (occupied_seats: seat id -> owning booking id).
type ShowRepository struct {
	db *database.DB
}

func NewShowRepository(db *database.DB) *ShowRepository {
	return &ShowRepository{db: db}
}

func (r *ShowRepository) GetByID(ctx context.Context, id string) (*models.Show, error) {
	show := &models.Show{}
	var occupied []byte
	query := `
		SELECT id, movie_id, show_date_time, price, occupied_seats, created_at, updated_at
		FROM shows
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&show.ID,
		&show.MovieID,
		&show.ShowDateTime,
		&show.Price,
		&occupied,
		&show.CreatedAt,
		&show.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(occupied, &show.OccupiedSeats); err != nil {
		return nil, fmt.Errorf("failed to decode occupied seats: %w", err)
	}
	return show, nil
}

// IsAvailable reports whether none of seatIDs is occupied
func (r *ShowRepository) IsAvailable(ctx context.Context, showID string, seatIDs []string) (bool, error) {
	var available bool
	err := r.db.QueryRowContext(ctx,
		`SELECT NOT (occupied_seats ?| $2::text[]) FROM shows WHERE id = $1`,
		showID, pq.Array(seatIDs),
	).Scan(&available)
	if err == sql.ErrNoRows {
		return false, apperrors.ErrShowNotFound
	}
	return available, err
}

// CommitSeats marks every seat as owned by bookingID, or none of them.
// The availability check and the write are one statement, so two
// concurrent commits over intersecting seats cannot both succeed.
func (r *ShowRepository) CommitSeats(ctx context.Context, showID, bookingID string, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return apperrors.ErrInvalidRequest
	}

	entries := make(map[string]string, len(seatIDs))
	for _, seat := range seatIDs {
		entries[seat] = bookingID
	}
	patch, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode seats: %w", err)
	}

	query := `
		UPDATE shows
		SET occupied_seats = occupied_seats || $2::jsonb, updated_at = NOW()
		WHERE id = $1 AND NOT (occupied_seats ?| $3::text[])`

	result, err := r.db.ExecContext(ctx, query, showID, string(patch), pq.Array(seatIDs))
	if err != nil {
		return fmt.Errorf("failed to commit seats: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	exists, err := r.exists(ctx, showID)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.ErrShowNotFound
	}
	return apperrors.ErrSeatsUnavailable
}

// ReleaseSeats removes the seats still owned by bookingID and returns how
// many were removed. Seats re-taken by another booking are left alone.
func (r *ShowRepository) ReleaseSeats(ctx context.Context, showID, bookingID string, seatIDs []string) (int, error) {
	released := 0
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var raw []byte
		err := tx.QueryRowContext(ctx,
			`SELECT occupied_seats FROM shows WHERE id = $1 FOR UPDATE`, showID,
		).Scan(&raw)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}

		var occupied map[string]string
		if err := json.Unmarshal(raw, &occupied); err != nil {
			return fmt.Errorf("failed to decode occupied seats: %w", err)
		}

		owned := make([]string, 0, len(seatIDs))
		for _, seat := range seatIDs {
			if occupied[seat] == bookingID {
				owned = append(owned, seat)
			}
		}
		if len(owned) == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE shows SET occupied_seats = occupied_seats - $2::text[], updated_at = NOW() WHERE id = $1`,
			showID, pq.Array(owned))
		if err != nil {
			return err
		}
		released = len(owned)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to release seats: %w", err)
	}
	return released, nil
}

// OccupiedSeats returns the sorted ids of every held or booked seat
func (r *ShowRepository) OccupiedSeats(ctx context.Context, showID string) ([]string, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT occupied_seats FROM shows WHERE id = $1`, showID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrShowNotFound
	}
	if err != nil {
		return nil, err
	}

	var occupied map[string]string
	if err := json.Unmarshal(raw, &occupied); err != nil {
		return nil, fmt.Errorf("failed to decode occupied seats: %w", err)
	}

	seats := make([]string, 0, len(occupied))
	for seat := range occupied {
		seats = append(seats, seat)
	}
	sort.Strings(seats)
	return seats, nil
}

// RebuildLedger replaces a show's ledger with the seats of its pending and
// paid bookings. Returns the number of seats in the rebuilt ledger.
func (r *ShowRepository) RebuildLedger(ctx context.Context, showID string) (int, error) {
	total := 0
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `SELECT id FROM shows WHERE id = $1 FOR UPDATE`, showID).Scan(&id)
		if err == sql.ErrNoRows {
			return apperrors.ErrShowNotFound
		}
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, seats FROM bookings
			WHERE show_id = $1 AND status IN ('pending', 'paid')
			ORDER BY created_at`, showID)
		if err != nil {
			return err
		}
		defer rows.Close()

		ledger := make(map[string]string)
		for rows.Next() {
			var bookingID string
			var seats []string
			if err := rows.Scan(&bookingID, pq.Array(&seats)); err != nil {
				return err
			}
			for _, seat := range seats {
				if _, taken := ledger[seat]; !taken {
					ledger[seat] = bookingID
				}
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}

		payload, err := json.Marshal(ledger)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE shows SET occupied_seats = $2::jsonb, updated_at = NOW() WHERE id = $1`,
			showID, string(payload)); err != nil {
			return err
		}
		total = len(ledger)
		return nil
	})
	return total, err
}

// DeleteBefore removes shows that started before cutoff
func (r *ShowRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM shows WHERE show_date_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old shows: %w", err)
	}
	return result.RowsAffected()
}

func (r *ShowRepository) exists(ctx context.Context, showID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM shows WHERE id = $1)`, showID).Scan(&exists)
	return exists, err
}
