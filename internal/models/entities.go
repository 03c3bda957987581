package models

import (
	"encoding/json"
	"time"
)

// Booking statuses
const (
	BookingStatusPending = "pending"
	BookingStatusPaid    = "paid"
	BookingStatusExpired = "expired"
)

// Delayed job statuses
const (
	JobStatusPending = "pending"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// User is the local mirror of an identity provider profile
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Username  string    `json:"username" db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Movie is a catalog document stored in Elasticsearch
type Movie struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	PrimaryImage string    `json:"primary_image,omitempty"`
	ReleaseDate  string    `json:"release_date,omitempty"`
	Genres       []string  `json:"genres,omitempty"`
	Runtime      int       `json:"runtime,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Show is a scheduled screening of a movie with its seat ledger
type Show struct {
	ID            string            `json:"id" db:"id"`
	MovieID       string            `json:"movie_id" db:"movie_id"`
	ShowDateTime  time.Time         `json:"show_date_time" db:"show_date_time"`
	Price         int64             `json:"price" db:"price"`
	OccupiedSeats map[string]string `json:"occupied_seats" db:"occupied_seats"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

// Booking represents a seat reservation and its payment state
type Booking struct {
	ID        string    `json:"id" db:"id"`
	ShowID    string    `json:"show_id" db:"show_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Seats     []string  `json:"seats" db:"seats"`
	Amount    int64     `json:"amount" db:"amount"`
	Paid      bool      `json:"paid" db:"paid"`
	Status    string    `json:"status" db:"status"`
	OrderID   *string   `json:"order_id" db:"order_id"`
	PaymentID *string   `json:"payment_id" db:"payment_id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DelayedJob is a durable unit of deferred work
type DelayedJob struct {
	ID          string          `json:"id" db:"id"`
	Kind        string          `json:"kind" db:"kind"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	RunAt       time.Time       `json:"run_at" db:"run_at"`
	CronExpr    string          `json:"cron_expr,omitempty" db:"cron_expr"`
	UniqueKey   *string         `json:"unique_key,omitempty" db:"unique_key"`
	Status      string          `json:"status" db:"status"`
	Attempts    int             `json:"attempts" db:"attempts"`
	LockedUntil *time.Time      `json:"locked_until,omitempty" db:"locked_until"`
	LastError   *string         `json:"last_error,omitempty" db:"last_error"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Recurring reports whether the job is driven by a cron expression
func (j *DelayedJob) Recurring() bool {
	return j.CronExpr != ""
}
