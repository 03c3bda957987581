package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "ticketshow/internal/errors"
	"ticketshow/internal/logger"
	"ticketshow/internal/models"
)

// errMalformed marks a payload that will never decode, however often it is redelivered
var errMalformed = errors.New("malformed event payload")

type Notifier interface {
	OnBookingConfirmed(ctx context.Context, event *models.BookingConfirmedEvent) error
	OnCatalogItemAdded(ctx context.Context, event *models.ShowAddedEvent) error
}

// UserMirror is the local copy of identity provider profiles
type UserMirror interface {
	Upsert(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

type ProfileEvictor interface {
	DeleteProfile(ctx context.Context, userID string) error
}

type Handlers struct {
	notifier Notifier
	users    UserMirror
	profiles ProfileEvictor
}

// NewHandlers accepts a nil profiles evictor when no cache is configured
func NewHandlers(notifier Notifier, users UserMirror, profiles ProfileEvictor) *Handlers {
	return &Handlers{
		notifier: notifier,
		users:    users,
		profiles: profiles,
	}
}

func (h *Handlers) HandleBookingConfirmed(ctx context.Context, data []byte) error {
	var event models.BookingConfirmedEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	if event.BookingID == "" {
		return fmt.Errorf("booking.confirmed without booking id: %w", errMalformed)
	}

	logger.WithBooking(ctx, event.BookingID).Info("Processing booking confirmed event")
	return h.notifier.OnBookingConfirmed(ctx, &event)
}

func (h *Handlers) HandleShowAdded(ctx context.Context, data []byte) error {
	var event models.ShowAddedEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	if event.MovieID == "" {
		return fmt.Errorf("show.added without movie id: %w", errMalformed)
	}

	logger.WithContext(ctx).Info("Processing show added event", "movie_id", event.MovieID, "shows", len(event.ShowIDs))
	return h.notifier.OnCatalogItemAdded(ctx, &event)
}

func (h *Handlers) HandleUserUpserted(ctx context.Context, data []byte) error {
	var event models.UserSyncEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	if event.ID == "" {
		return fmt.Errorf("user event without id: %w", errMalformed)
	}

	user := &models.User{
		ID:        event.ID,
		Email:     strings.TrimSpace(event.Email),
		FirstName: event.FirstName,
		LastName:  event.LastName,
		Username:  event.Username,
	}
	if err := h.users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("failed to mirror user %s: %w", event.ID, err)
	}

	h.evict(ctx, event.ID)
	logger.WithContext(ctx).Info("User mirrored", "user_id", event.ID)
	return nil
}

func (h *Handlers) HandleUserDeleted(ctx context.Context, data []byte) error {
	var event models.UserSyncEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	if event.ID == "" {
		return fmt.Errorf("user event without id: %w", errMalformed)
	}

	if err := h.users.Delete(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", event.ID, err)
	}

	h.evict(ctx, event.ID)
	logger.WithContext(ctx).Info("User removed from mirror", "user_id", event.ID)
	return nil
}

func (h *Handlers) evict(ctx context.Context, userID string) {
	if h.profiles == nil {
		return
	}
	if err := h.profiles.DeleteProfile(ctx, userID); err != nil {
		logger.WithContext(ctx).Warn("Failed to evict cached profile", "user_id", userID, "error", err)
	}
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

// shouldAck decides whether a delivery is finished. Success, malformed
// payloads and terminal errors are acked; anything else is left for
// redelivery until maxDeliveries attempts have been made.
func shouldAck(err error, redeliveryCount uint32, maxDeliveries int) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, errMalformed) || apperrors.IsTerminal(err) {
		return true
	}
	return maxDeliveries > 0 && int(redeliveryCount)+1 >= maxDeliveries
}
