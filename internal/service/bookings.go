package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "ticketshow/internal/errors"
	"ticketshow/internal/external"
	"ticketshow/internal/jobs"
	"ticketshow/internal/logger"
	"ticketshow/internal/metrics"
	"ticketshow/internal/models"

	"github.com/google/uuid"
)

type BookingConfig struct {
	HoldDuration   time.Duration
	Currency       string
	GatewayTimeout time.Duration
}

// BookingService drives a booking through pending -> paid | expired
type BookingService struct {
	shows    ShowStore
	bookings BookingStore
	payments PaymentGateway
	jobs     JobScheduler
	events   EventPublisher
	profiles *ProfileService
	movies   MovieFinder
	cfg      BookingConfig
	now      func() time.Time
}

func NewBookingService(shows ShowStore, bookings BookingStore, payments PaymentGateway, jobScheduler JobScheduler, events EventPublisher, profiles *ProfileService, movies MovieFinder, cfg BookingConfig) *BookingService {
	if cfg.HoldDuration <= 0 {
		cfg.HoldDuration = 10 * time.Minute
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}

	return &BookingService{
		shows:    shows,
		bookings: bookings,
		payments: payments,
		jobs:     jobScheduler,
		events:   events,
		profiles: profiles,
		movies:   movies,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CreateHold reserves the seats, records a pending booking, schedules its
// release and opens a payment order. Every step after the seats are taken
// is undone if a later step fails.
func (s *BookingService) CreateHold(ctx context.Context, req *models.CreateHoldRequest) (*models.HoldResult, error) {
	if req.UserID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	showID := strings.TrimSpace(req.ShowID)
	seats := normalizeSeats(req.SeatIDs)
	if showID == "" || len(seats) == 0 {
		metrics.HoldsRejected.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("show id and at least one seat are required: %w", apperrors.ErrInvalidRequest)
	}

	show, err := s.shows.GetByID(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("failed to get show: %w", err)
	}
	if show == nil {
		metrics.HoldsRejected.WithLabelValues("show_not_found").Inc()
		return nil, apperrors.ErrShowNotFound
	}

	// Early rejection skips the identity lookup; CommitSeats still decides
	available, err := s.shows.IsAvailable(ctx, showID, seats)
	if err != nil {
		return nil, fmt.Errorf("failed to check seats: %w", err)
	}
	if !available {
		metrics.HoldsRejected.WithLabelValues("seats_unavailable").Inc()
		return nil, apperrors.ErrSeatsUnavailable
	}

	email := s.resolveEmail(ctx, req)
	amount := show.Price * int64(len(seats))
	bookingID := uuid.New().String()
	log := logger.WithBooking(ctx, bookingID).With("show_id", showID)

	if err := s.shows.CommitSeats(ctx, showID, bookingID, seats); err != nil {
		if errors.Is(err, apperrors.ErrSeatsUnavailable) {
			metrics.HoldsRejected.WithLabelValues("seats_unavailable").Inc()
			return nil, err
		}
		if errors.Is(err, apperrors.ErrShowNotFound) {
			metrics.HoldsRejected.WithLabelValues("show_not_found").Inc()
			return nil, err
		}
		return nil, fmt.Errorf("failed to hold seats: %w", err)
	}

	booking := &models.Booking{
		ID:     bookingID,
		ShowID: showID,
		UserID: req.UserID,
		Seats:  seats,
		Amount: amount,
		Status: models.BookingStatusPending,
		Email:  email,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		s.releaseSeats(ctx, booking)
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	expiresAt := s.now().Add(s.cfg.HoldDuration)
	if _, err := s.jobs.ScheduleAt(ctx, jobs.KindReleaseHold,
		jobs.ReleaseHoldPayload{BookingID: bookingID}, expiresAt, jobs.ReleaseHoldKey(bookingID)); err != nil {
		s.compensate(ctx, booking)
		return nil, fmt.Errorf("failed to schedule hold release: %w", err)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	order, err := s.payments.CreateOrder(gwCtx, amount*external.MinorUnitsPerMajor, s.cfg.Currency, bookingID)
	timedOut := errors.Is(gwCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		s.compensate(ctx, booking)
		if timedOut || errors.Is(err, apperrors.ErrGatewayTimeout) {
			metrics.HoldsRejected.WithLabelValues("gateway_timeout").Inc()
			log.Warn("Payment gateway timed out, hold rolled back", "error", err)
			return nil, apperrors.ErrGatewayTimeout
		}
		metrics.HoldsRejected.WithLabelValues("gateway_error").Inc()
		return nil, fmt.Errorf("failed to create payment order: %w", err)
	}

	if err := s.bookings.SetOrderID(ctx, bookingID, order.ID); err != nil {
		s.compensate(ctx, booking)
		return nil, fmt.Errorf("failed to store payment order: %w", err)
	}

	metrics.HoldsCreated.Inc()
	log.Info("Seats held", "seats", seats, "amount", amount, "order_id", order.ID, "expires_at", expiresAt)

	return &models.HoldResult{
		Success:   true,
		OrderID:   order.ID,
		BookingID: bookingID,
		Amount:    amount,
		Currency:  s.cfg.Currency,
		Key:       s.payments.KeyID(),
	}, nil
}

// ConfirmPayment verifies the provider signature and marks the booking
// paid. Confirming an already paid booking succeeds again.
func (s *BookingService) ConfirmPayment(ctx context.Context, req *models.ConfirmPaymentRequest) (*models.ConfirmResult, error) {
	log := logger.WithBooking(ctx, req.BookingID).With("order_id", req.OrderID, "payment_id", req.PaymentID)

	if !s.payments.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		metrics.PaymentsConfirmed.WithLabelValues("signature_invalid").Inc()
		log.Warn("Payment signature mismatch, booking left pending")
		return nil, apperrors.ErrSignatureInvalid
	}

	if _, err := uuid.Parse(req.BookingID); err != nil {
		log.Warn("Payment references a malformed booking id")
		return nil, apperrors.ErrBookingNotFound
	}

	booking, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		// Expired holds are deleted, so a missing booking means the hold lapsed
		metrics.PaymentsConfirmed.WithLabelValues("expired").Inc()
		log.Warn("Payment arrived for a booking that no longer exists")
		return nil, apperrors.ErrBookingExpired
	}

	if booking.OrderID == nil || *booking.OrderID != req.OrderID {
		metrics.PaymentsConfirmed.WithLabelValues("signature_invalid").Inc()
		log.Warn("Payment order does not belong to booking")
		return nil, apperrors.ErrSignatureInvalid
	}

	wasPaid, err := s.bookings.MarkPaid(ctx, booking.ID, req.PaymentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrBookingExpired) {
			metrics.PaymentsConfirmed.WithLabelValues("expired").Inc()
			log.Warn("Payment arrived after the hold expired")
		}
		return nil, err
	}

	if wasPaid {
		metrics.PaymentsConfirmed.WithLabelValues("already_paid").Inc()
		log.Info("Payment already confirmed")
	} else {
		metrics.PaymentsConfirmed.WithLabelValues("paid").Inc()
		log.Info("Payment confirmed")
	}

	booking.Paid = true
	booking.Status = models.BookingStatusPaid
	s.publishConfirmed(ctx, booking)

	return &models.ConfirmResult{
		Success:     true,
		BookingID:   booking.ID,
		AlreadyPaid: wasPaid,
	}, nil
}

// ExpireHold releases an unpaid booking's seats and deletes it. A booking
// that is paid or already gone is left alone.
func (s *BookingService) ExpireHold(ctx context.Context, bookingID string) (*models.ExpireResult, error) {
	result := &models.ExpireResult{BookingID: bookingID}

	booking, err := s.bookings.ClaimForExpiry(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return result, nil
	}

	released, err := s.shows.ReleaseSeats(ctx, booking.ShowID, booking.ID, booking.Seats)
	if err != nil {
		return nil, err
	}

	if err := s.bookings.Delete(ctx, booking.ID); err != nil {
		return nil, fmt.Errorf("failed to delete expired booking: %w", err)
	}

	metrics.HoldsExpired.Inc()
	result.Released = true
	result.SeatsReleased = released
	return result, nil
}

// OccupiedSeats lists the held and booked seats of a show
func (s *BookingService) OccupiedSeats(ctx context.Context, showID string) ([]string, error) {
	if strings.TrimSpace(showID) == "" {
		return nil, apperrors.ErrInvalidRequest
	}
	return s.shows.OccupiedSeats(ctx, showID)
}

func (s *BookingService) resolveEmail(ctx context.Context, req *models.CreateHoldRequest) string {
	if email := strings.TrimSpace(req.Email); email != "" {
		return email
	}
	if s.profiles == nil {
		return ""
	}

	user, err := s.profiles.Resolve(ctx, req.UserID)
	if err != nil {
		logger.WithContext(ctx).Warn("Could not resolve contact email at hold time", "error", err)
		return ""
	}
	if user == nil {
		return ""
	}
	return user.Email
}

func (s *BookingService) publishConfirmed(ctx context.Context, booking *models.Booking) {
	if s.events == nil {
		return
	}
	log := logger.WithBooking(ctx, booking.ID)

	event := models.BookingConfirmedEvent{
		BookingID: booking.ID,
		ShowID:    booking.ShowID,
		UserID:    booking.UserID,
		Email:     booking.Email,
		Seats:     booking.Seats,
		Amount:    booking.Amount,
		Timestamp: s.now(),
	}

	if show, err := s.shows.GetByID(ctx, booking.ShowID); err != nil {
		log.Warn("Could not load show for confirmation event", "error", err)
	} else if show != nil {
		event.ShowDateTime = show.ShowDateTime
		if s.movies != nil {
			if movie, err := s.movies.GetByID(ctx, show.MovieID); err != nil {
				log.Warn("Could not load movie for confirmation event", "error", err)
			} else if movie != nil {
				event.MovieTitle = movie.Title
				event.PrimaryImage = movie.PrimaryImage
			}
		}
	}

	if s.profiles != nil {
		if user, err := s.profiles.Resolve(ctx, booking.UserID); err != nil {
			log.Warn("Could not resolve profile for confirmation event", "error", err)
		} else if user != nil {
			event.Name = strings.TrimSpace(user.FirstName + " " + user.LastName)
			if event.Email == "" {
				event.Email = user.Email
			}
		}
	}

	if err := s.events.Publish(models.EventBookingConfirmed, event); err != nil {
		// The payment is durable; a lost notification is logged, never rolled back
		log.Error("Failed to publish booking confirmed event", "error", err, "event_type", models.EventBookingConfirmed)
	}
}

// compensate undoes a hold whose later steps failed
func (s *BookingService) compensate(ctx context.Context, booking *models.Booking) {
	ctx = context.WithoutCancel(ctx)
	s.releaseSeats(ctx, booking)
	if err := s.bookings.Delete(ctx, booking.ID); err != nil {
		logger.WithBooking(ctx, booking.ID).Error("Failed to delete rolled back booking", "error", err)
	}
}

func (s *BookingService) releaseSeats(ctx context.Context, booking *models.Booking) {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.shows.ReleaseSeats(ctx, booking.ShowID, booking.ID, booking.Seats); err != nil {
		// Logged with the seats so the ledger can be reconciled by hand
		logger.WithBooking(ctx, booking.ID).Error("Failed to release seats during rollback",
			"error", err, "show_id", booking.ShowID, "seats", booking.Seats)
	}
}

// normalizeSeats trims, drops empties and dedupes, keeping first-seen order
func normalizeSeats(seats []string) []string {
	seen := make(map[string]struct{}, len(seats))
	out := make([]string, 0, len(seats))
	for _, seat := range seats {
		seat = strings.TrimSpace(seat)
		if seat == "" {
			continue
		}
		if _, dup := seen[seat]; dup {
			continue
		}
		seen[seat] = struct{}{}
		out = append(out, seat)
	}
	return out
}
