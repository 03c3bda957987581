package service

import (
	"context"
	"time"

	"ticketshow/internal/external"
	"ticketshow/internal/models"
)

// ShowStore is the seat ledger plus show lookups
type ShowStore interface {
	GetByID(ctx context.Context, id string) (*models.Show, error)
	IsAvailable(ctx context.Context, showID string, seatIDs []string) (bool, error)
	CommitSeats(ctx context.Context, showID, bookingID string, seatIDs []string) error
	ReleaseSeats(ctx context.Context, showID, bookingID string, seatIDs []string) (int, error)
	OccupiedSeats(ctx context.Context, showID string) ([]string, error)
}

type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	SetOrderID(ctx context.Context, id, orderID string) error
	MarkPaid(ctx context.Context, id, paymentID string) (bool, error)
	ClaimForExpiry(ctx context.Context, id string) (*models.Booking, error)
	Delete(ctx context.Context, id string) error
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*external.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
}

type JobScheduler interface {
	ScheduleAt(ctx context.Context, kind string, payload any, fireTime time.Time, uniqueKey string) (string, error)
}

type EventPublisher interface {
	Publish(subject string, data any) error
}

type MovieFinder interface {
	GetByID(ctx context.Context, id string) (*models.Movie, error)
}

type Services struct {
	Bookings *BookingService
	Profiles *ProfileService
}
