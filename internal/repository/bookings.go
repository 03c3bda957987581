package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ticketshow/internal/database"
	apperrors "ticketshow/internal/errors"
	"ticketshow/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, show_id, user_id, seats, amount, paid, status, order_id, payment_id, email, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }, booking *models.Booking) error {
	return row.Scan(
		&booking.ID,
		&booking.ShowID,
		&booking.UserID,
		pq.Array(&booking.Seats),
		&booking.Amount,
		&booking.Paid,
		&booking.Status,
		&booking.OrderID,
		&booking.PaymentID,
		&booking.Email,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
}

func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (id, show_id, user_id, seats, amount, paid, status, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		booking.ID,
		booking.ShowID,
		booking.UserID,
		pq.Array(booking.Seats),
		booking.Amount,
		booking.Paid,
		booking.Status,
		booking.Email,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
}

// GetByID returns nil when the booking does not exist or id is not a UUID
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	booking := &models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	err := scanBooking(r.db.QueryRowContext(ctx, query, id), booking)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return booking, err
}

func (r *BookingRepository) SetOrderID(ctx context.Context, id, orderID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET order_id = $2, updated_at = NOW() WHERE id = $1`, id, orderID)
	return err
}

// MarkPaid moves a pending booking to paid. A booking that is already paid
// is left unchanged and reported with wasPaid = true. Expired or missing
// bookings yield ErrBookingExpired.
func (r *BookingRepository) MarkPaid(ctx context.Context, id, paymentID string) (wasPaid bool, err error) {
	query := `
		WITH prev AS (
			SELECT paid FROM bookings WHERE id = $1 FOR UPDATE
		)
		UPDATE bookings b
		SET paid = TRUE,
		    status = 'paid',
		    payment_id = COALESCE(b.payment_id, $2),
		    updated_at = NOW()
		FROM prev
		WHERE b.id = $1 AND b.status IN ('pending', 'paid')
		RETURNING prev.paid`

	err = r.db.QueryRowContext(ctx, query, id, paymentID).Scan(&wasPaid)
	if err == sql.ErrNoRows {
		return false, apperrors.ErrBookingExpired
	}
	if err != nil {
		return false, fmt.Errorf("failed to mark booking paid: %w", err)
	}
	return wasPaid, nil
}

// ClaimForExpiry flips an unpaid booking to expired and returns it.
// Returns nil when the booking is paid or gone.
func (r *BookingRepository) ClaimForExpiry(ctx context.Context, id string) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `
		UPDATE bookings
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND paid = FALSE AND status IN ('pending', 'expired')
		RETURNING ` + bookingColumns

	err := scanBooking(r.db.QueryRowContext(ctx, query, id), booking)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim booking for expiry: %w", err)
	}
	return booking, nil
}

// Delete removes an unpaid booking. Paid bookings are never deleted here.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1 AND paid = FALSE`, id)
	return err
}

// DeleteCreatedBefore removes bookings created before cutoff
func (r *BookingRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old bookings: %w", err)
	}
	return result.RowsAffected()
}
