package jobs

import (
	"context"
	"fmt"
	"time"

	"ticketshow/internal/logger"
	"ticketshow/internal/models"
)

type BookingPurger interface {
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ShowPurger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type JobPurger interface {
	DeleteDoneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob deletes bookings, shows and finished jobs older than the
// retention window
type CleanupJob struct {
	bookings BookingPurger
	shows    ShowPurger
	jobs     JobPurger
	months   int
	now      func() time.Time
}

func NewCleanupJob(bookings BookingPurger, shows ShowPurger, jobs JobPurger, retentionMonths int) *CleanupJob {
	if retentionMonths <= 0 {
		retentionMonths = 6
	}
	return &CleanupJob{
		bookings: bookings,
		shows:    shows,
		jobs:     jobs,
		months:   retentionMonths,
		now:      time.Now,
	}
}

// Cutoff is the oldest instant still retained
func (c *CleanupJob) Cutoff() time.Time {
	return c.now().AddDate(0, -c.months, 0)
}

func (c *CleanupJob) Run(ctx context.Context) (*models.CleanupResult, error) {
	cutoff := c.Cutoff()
	result := &models.CleanupResult{}

	var err error
	if result.BookingsDeleted, err = c.bookings.DeleteCreatedBefore(ctx, cutoff); err != nil {
		return result, err
	}
	if result.ShowsDeleted, err = c.shows.DeleteBefore(ctx, cutoff); err != nil {
		return result, err
	}
	if c.jobs != nil {
		if result.JobsDeleted, err = c.jobs.DeleteDoneBefore(ctx, cutoff); err != nil {
			return result, err
		}
	}

	return result, nil
}

// Handle is the scheduler entry point for cleanup-retention
func (c *CleanupJob) Handle(ctx context.Context, job *models.DelayedJob) error {
	result, err := c.Run(ctx)
	if err != nil {
		return fmt.Errorf("retention cleanup failed: %w", err)
	}

	logger.WithJob(job.ID, job.Kind).Info("Deleted old bookings and shows",
		"bookings_deleted", result.BookingsDeleted,
		"shows_deleted", result.ShowsDeleted,
		"jobs_deleted", result.JobsDeleted,
		"cutoff", c.Cutoff())
	return nil
}
