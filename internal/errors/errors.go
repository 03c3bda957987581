package errors

import "errors"

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")

// Reservation lifecycle errors
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrSeatsUnavailable = errors.New("one or more seats are no longer available")
	ErrShowNotFound     = errors.New("show not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrBookingExpired   = errors.New("booking has expired")
	ErrSignatureInvalid = errors.New("payment signature is invalid")
	ErrGatewayTimeout   = errors.New("payment gateway timed out")
)

// Notification errors
var (
	ErrEmailUnresolved = errors.New("recipient email could not be resolved")
	ErrMovieNotFound   = errors.New("movie not found")
)

// IsNotFound reports whether err means the addressed record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrShowNotFound) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrMovieNotFound)
}

// IsTerminal reports whether a notification failure must not be retried.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrEmailUnresolved) ||
		errors.Is(err, ErrMovieNotFound) ||
		errors.Is(err, ErrBookingNotFound)
}
