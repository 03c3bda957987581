package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ticketshow/internal/database"
	"ticketshow/internal/models"
)

// JobRepository stores delayed jobs for the scheduler
type JobRepository struct {
	db *database.DB
}

func NewJobRepository(db *database.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, kind, payload, run_at, cron_expr, unique_key, status, attempts, locked_until, last_error, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }, job *models.DelayedJob) error {
	var payload []byte
	err := row.Scan(
		&job.ID,
		&job.Kind,
		&payload,
		&job.RunAt,
		&job.CronExpr,
		&job.UniqueKey,
		&job.Status,
		&job.Attempts,
		&job.LockedUntil,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	job.Payload = payload
	return err
}

// Insert stores a one-shot job. When the unique key is already taken the
// existing job id is returned and nothing is written.
func (r *JobRepository) Insert(ctx context.Context, job *models.DelayedJob) (string, error) {
	query := `
		INSERT INTO delayed_jobs (id, kind, payload, run_at, cron_expr, unique_key, status)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, 'pending')
		ON CONFLICT (unique_key) DO NOTHING
		RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		job.ID, job.Kind, string(job.Payload), job.RunAt, job.CronExpr, job.UniqueKey,
	).Scan(&id)
	if err == sql.ErrNoRows && job.UniqueKey != nil {
		err = r.db.QueryRowContext(ctx,
			`SELECT id FROM delayed_jobs WHERE unique_key = $1`, *job.UniqueKey).Scan(&id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to insert job: %w", err)
	}
	return id, nil
}

// UpsertCron registers a recurring job under its unique key. An unchanged
// registration keeps the stored fire time so a fire missed during downtime
// still runs.
func (r *JobRepository) UpsertCron(ctx context.Context, job *models.DelayedJob) (string, error) {
	query := `
		INSERT INTO delayed_jobs (id, kind, payload, run_at, cron_expr, unique_key, status)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, 'pending')
		ON CONFLICT (unique_key) DO UPDATE
		SET cron_expr = EXCLUDED.cron_expr,
		    payload = EXCLUDED.payload,
		    run_at = CASE
		        WHEN delayed_jobs.cron_expr <> EXCLUDED.cron_expr OR delayed_jobs.status <> 'pending'
		        THEN EXCLUDED.run_at
		        ELSE delayed_jobs.run_at
		    END,
		    status = 'pending',
		    updated_at = NOW()
		RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		job.ID, job.Kind, string(job.Payload), job.RunAt, job.CronExpr, job.UniqueKey,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert cron job: %w", err)
	}
	return id, nil
}

// ClaimDue leases up to limit due jobs until now+lease. Jobs leased by
// another runner are skipped; an expired lease makes a job claimable again.
func (r *JobRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.DelayedJob, error) {
	query := `
		UPDATE delayed_jobs
		SET locked_until = $2, attempts = attempts + 1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM delayed_jobs
			WHERE status = 'pending'
			  AND run_at <= $1
			  AND (locked_until IS NULL OR locked_until < $1)
			ORDER BY run_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	rows, err := r.db.QueryWithRetry(ctx, query, now, now.Add(lease), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.DelayedJob
	for rows.Next() {
		var job models.DelayedJob
		if err := scanJob(rows, &job); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.DelayedJob, error) {
	job := &models.DelayedJob{}
	err := scanJob(r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM delayed_jobs WHERE id = $1`, id), job)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

func (r *JobRepository) MarkDone(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE delayed_jobs
		SET status = 'done', locked_until = NULL, last_error = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

// Reschedule moves a recurring job to its next fire time
func (r *JobRepository) Reschedule(ctx context.Context, id string, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE delayed_jobs
		SET run_at = $2, attempts = 0, locked_until = NULL, last_error = NULL, updated_at = NOW()
		WHERE id = $1`, id, next)
	return err
}

// Retry releases the lease and defers the job after a failed attempt
func (r *JobRepository) Retry(ctx context.Context, id string, runAt time.Time, lastErr string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE delayed_jobs
		SET run_at = $2, locked_until = NULL, last_error = $3, updated_at = NOW()
		WHERE id = $1`, id, runAt, lastErr)
	return err
}

func (r *JobRepository) MarkFailed(ctx context.Context, id string, lastErr string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE delayed_jobs
		SET status = 'failed', locked_until = NULL, last_error = $2, updated_at = NOW()
		WHERE id = $1`, id, lastErr)
	return err
}

// DeleteDoneBefore purges completed one-shot jobs last touched before cutoff.
// Failed jobs are kept for manual reconciliation.
func (r *JobRepository) DeleteDoneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM delayed_jobs WHERE status = 'done' AND cron_expr = '' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete finished jobs: %w", err)
	}
	return result.RowsAffected()
}
