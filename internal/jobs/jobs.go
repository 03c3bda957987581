package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"ticketshow/internal/logger"
	"ticketshow/internal/models"
	"ticketshow/internal/scheduler"
)

// Job kinds
const (
	KindReleaseHold      = "release-hold"
	KindCleanupRetention = "cleanup-retention"
)

type Config struct {
	CleanupCron     string
	RetentionMonths int
}

// ReleaseHoldPayload is stored with every release-hold job
type ReleaseHoldPayload struct {
	BookingID string `json:"booking_id"`
}

// ReleaseHoldKey dedupes release jobs per booking
func ReleaseHoldKey(bookingID string) string {
	return KindReleaseHold + ":" + bookingID
}

// HoldExpirer releases an unpaid hold; a paid or missing booking is a no-op
type HoldExpirer interface {
	ExpireHold(ctx context.Context, bookingID string) (*models.ExpireResult, error)
}

// ReleaseHold builds the release-hold handler
func ReleaseHold(expirer HoldExpirer) scheduler.Handler {
	return func(ctx context.Context, job *models.DelayedJob) error {
		var payload ReleaseHoldPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.BookingID == "" {
			return fmt.Errorf("bad release-hold payload %s: %w", string(job.Payload), scheduler.ErrPermanent)
		}

		result, err := expirer.ExpireHold(ctx, payload.BookingID)
		if err != nil {
			return fmt.Errorf("failed to expire booking %s: %w", payload.BookingID, err)
		}

		log := logger.WithJob(job.ID, job.Kind).With("booking_id", payload.BookingID)
		if result.Released {
			log.Info("Released unpaid hold", "seats_released", result.SeatsReleased)
		} else {
			log.Debug("Hold already paid or gone, nothing to release")
		}
		return nil
	}
}

// Register binds every job handler and installs the retention cron
func Register(ctx context.Context, s *scheduler.Scheduler, expirer HoldExpirer, cleanup *CleanupJob, cfg Config) error {
	s.Register(KindReleaseHold, ReleaseHold(expirer))
	s.Register(KindCleanupRetention, cleanup.Handle)

	if cfg.CleanupCron == "" {
		return nil
	}
	if _, err := s.ScheduleCron(ctx, KindCleanupRetention, cfg.CleanupCron, struct{}{}); err != nil {
		return fmt.Errorf("failed to register cleanup cron: %w", err)
	}
	return nil
}
