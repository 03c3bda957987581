package models

import "time"

// NATS Event Types
const (
	EventBookingConfirmed = "booking.confirmed"
	EventShowAdded        = "show.added"
	EventUserUpserted     = "identity.user.upserted"
	EventUserDeleted      = "identity.user.deleted"
)

// BookingConfirmedEvent is published after a payment has been verified.
// Every field except BookingID is best-effort; consumers resolve the rest.
type BookingConfirmedEvent struct {
	BookingID    string    `json:"booking_id"`
	ShowID       string    `json:"show_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name,omitempty"`
	MovieTitle   string    `json:"movie_title,omitempty"`
	PrimaryImage string    `json:"primary_image,omitempty"`
	Seats        []string  `json:"seats,omitempty"`
	ShowDateTime time.Time `json:"show_date_time,omitempty"`
	Amount       int64     `json:"amount,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ShowAddedEvent is published by the catalog service when new shows go on sale
type ShowAddedEvent struct {
	MovieID   string    `json:"movie_id"`
	ShowIDs   []string  `json:"show_ids,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UserSyncEvent mirrors an identity provider profile change into the users table
type UserSyncEvent struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Username  string    `json:"username,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
