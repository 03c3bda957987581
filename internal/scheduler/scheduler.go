package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ticketshow/internal/logger"
	"ticketshow/internal/metrics"
	"ticketshow/internal/models"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ErrPermanent marks a handler failure that retrying cannot fix
var ErrPermanent = errors.New("permanent job failure")

// Handler runs one delivery of a job. Deliveries are at-least-once, so
// handlers must be idempotent.
type Handler func(ctx context.Context, job *models.DelayedJob) error

// Store persists jobs. JobRepository is the Postgres implementation.
type Store interface {
	Insert(ctx context.Context, job *models.DelayedJob) (string, error)
	UpsertCron(ctx context.Context, job *models.DelayedJob) (string, error)
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.DelayedJob, error)
	MarkDone(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, next time.Time) error
	Retry(ctx context.Context, id string, runAt time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id string, lastErr string) error
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
	Lease        time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 30 * time.Second
	}
	return c
}

// Scheduler is a durable delayed-job runner polling a Store
type Scheduler struct {
	store Store
	cfg   Config
	now   func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(store Store, cfg Config) *Scheduler {
	return &Scheduler{
		store:    store,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}
}

// SetClock replaces the time source
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Register binds a handler to a job kind
func (s *Scheduler) Register(kind string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = handler
}

// ScheduleAt persists a one-shot job that fires no earlier than fireTime.
// A non-empty uniqueKey makes the call idempotent.
func (s *Scheduler) ScheduleAt(ctx context.Context, kind string, payload any, fireTime time.Time, uniqueKey string) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := &models.DelayedJob{
		ID:      uuid.New().String(),
		Kind:    kind,
		Payload: raw,
		RunAt:   fireTime,
		Status:  models.JobStatusPending,
	}
	if uniqueKey != "" {
		job.UniqueKey = &uniqueKey
	}

	id, err := s.store.Insert(ctx, job)
	if err != nil {
		return "", err
	}

	logger.WithJob(id, kind).Debug("Job scheduled", "run_at", fireTime)
	return id, nil
}

// ScheduleCron registers a recurring job keyed by kind
func (s *Scheduler) ScheduleCron(ctx context.Context, kind, cronExpr string, payload any) (string, error) {
	next, err := NextFire(cronExpr, s.now())
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	key := "cron:" + kind
	job := &models.DelayedJob{
		ID:        uuid.New().String(),
		Kind:      kind,
		Payload:   raw,
		RunAt:     next,
		CronExpr:  cronExpr,
		UniqueKey: &key,
		Status:    models.JobStatusPending,
	}

	id, err := s.store.UpsertCron(ctx, job)
	if err != nil {
		return "", err
	}

	slog.Info("Recurring job registered", "job_id", id, "job_kind", kind, "cron", cronExpr, "next_run", next)
	return id, nil
}

// NextFire returns the first fire time of a standard 5-field cron expression after t
func NextFire(cronExpr string, t time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(t), nil
}

// Start begins polling for due jobs until Stop is called or ctx ends
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("Starting job scheduler",
		"poll_interval", s.cfg.PollInterval, "batch_size", s.cfg.BatchSize, "lease", s.cfg.Lease)

	ticker := time.NewTicker(s.cfg.PollInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		for {
			if _, err := s.RunDue(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Failed to run due jobs", "error", err)
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				slog.Info("Job scheduler stopped")
				return
			case <-s.done:
				slog.Info("Job scheduler stopped")
				return
			}
		}
	}()
}

// Stop stops polling and waits for the in-flight batch to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

// RunDue claims and runs one batch of due jobs, returning how many ran.
// Jobs in a batch share one lease and run concurrently.
func (s *Scheduler) RunDue(ctx context.Context) (int, error) {
	now := s.now()
	jobs, err := s.store.ClaimDue(ctx, now, s.cfg.Lease, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		go func(job *models.DelayedJob) {
			defer wg.Done()
			s.process(ctx, job)
		}(&jobs[i])
	}
	wg.Wait()
	return len(jobs), nil
}

func (s *Scheduler) process(ctx context.Context, job *models.DelayedJob) {
	log := logger.WithJob(job.ID, job.Kind).With("attempt", job.Attempts)

	s.mu.RLock()
	handler, ok := s.handlers[job.Kind]
	s.mu.RUnlock()

	if !ok {
		log.Error("No handler registered for job kind")
		metrics.JobsProcessed.WithLabelValues(job.Kind, "unhandled").Inc()
		if err := s.store.MarkFailed(ctx, job.ID, "no handler registered"); err != nil {
			log.Error("Failed to mark job failed", "error", err)
		}
		return
	}

	// The handler must finish inside the lease or another runner may take the job
	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.Lease)
	start := time.Now()
	err := handler(jobCtx, job)
	cancel()
	metrics.JobDuration.WithLabelValues(job.Kind).Observe(time.Since(start).Seconds())

	if err == nil {
		s.complete(ctx, job, log)
		return
	}

	now := s.now()
	switch {
	case errors.Is(err, ErrPermanent):
		s.fail(ctx, job, err, log)
	case job.Attempts >= s.cfg.MaxAttempts:
		if job.Recurring() {
			// A failing recurring job still moves on to its next fire time
			log.Error("Recurring job exhausted retries", "error", err, "payload", string(job.Payload))
			metrics.JobsProcessed.WithLabelValues(job.Kind, "failed").Inc()
			s.reschedule(ctx, job, now, log)
			return
		}
		s.fail(ctx, job, err, log)
	default:
		runAt := now.Add(time.Duration(job.Attempts) * s.cfg.RetryBackoff)
		log.Warn("Job failed, will retry", "error", err, "retry_at", runAt)
		metrics.JobsProcessed.WithLabelValues(job.Kind, "retry").Inc()
		if rerr := s.store.Retry(ctx, job.ID, runAt, err.Error()); rerr != nil {
			log.Error("Failed to schedule job retry", "error", rerr)
		}
	}
}

func (s *Scheduler) complete(ctx context.Context, job *models.DelayedJob, log *slog.Logger) {
	metrics.JobsProcessed.WithLabelValues(job.Kind, "done").Inc()

	if job.Recurring() {
		s.reschedule(ctx, job, s.now(), log)
		return
	}

	if err := s.store.MarkDone(ctx, job.ID); err != nil {
		// The lease will lapse and the job runs again; handlers are idempotent
		log.Error("Failed to mark job done", "error", err)
		return
	}
	log.Debug("Job completed")
}

func (s *Scheduler) reschedule(ctx context.Context, job *models.DelayedJob, after time.Time, log *slog.Logger) {
	next, err := NextFire(job.CronExpr, after)
	if err != nil {
		s.fail(ctx, job, err, log)
		return
	}
	if err := s.store.Reschedule(ctx, job.ID, next); err != nil {
		log.Error("Failed to reschedule recurring job", "error", err)
		return
	}
	log.Info("Recurring job rescheduled", "next_run", next)
}

func (s *Scheduler) fail(ctx context.Context, job *models.DelayedJob, cause error, log *slog.Logger) {
	log.Error("Job failed permanently, manual reconciliation required",
		"error", cause, "payload", string(job.Payload))
	metrics.JobsProcessed.WithLabelValues(job.Kind, "failed").Inc()
	if err := s.store.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		log.Error("Failed to mark job failed", "error", err)
	}
}
