// README: Postgres persistence for AI jobs. Every transition is a
// conditional update so concurrent workers cannot double-write a terminal
// state; callers check the applied flag instead of re-reading first.
package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripgen/internal/types"
)

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const jobColumns = `request_id, job_type, trip_id, status, progress, current_step,
	model_id, estimated_time, request_data, result_data, error_message,
	retryable, retry_count, max_retry, created_at, started_at, completed_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(
		&j.RequestID, &j.Type, &j.TripID, &j.Status, &j.Progress, &j.CurrentStep,
		&j.ModelID, &j.EstimatedTime, &j.RequestData, &j.ResultData, &j.ErrorMessage,
		&j.Retryable, &j.RetryCount, &j.MaxRetry, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

func (s *PGStore) Create(ctx context.Context, j *Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ai_jobs (request_id, job_type, trip_id, status, progress, current_step,
			request_data, retryable, retry_count, max_retry, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		j.RequestID, j.Type, j.TripID, j.Status, j.Progress, j.CurrentStep,
		j.RequestData, j.Retryable, j.RetryCount, j.MaxRetry, j.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateRequest
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, requestID types.ID) (*Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM ai_jobs WHERE request_id = $1`, requestID)
	return scanJob(row)
}

func (s *PGStore) ListByTrip(ctx context.Context, tripID types.ID) ([]*Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM ai_jobs WHERE trip_id = $1 ORDER BY created_at DESC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("query jobs by trip: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Start moves a queued job to processing. Returns false when the job was
// already picked up or cancelled in the meantime.
func (s *PGStore) Start(ctx context.Context, requestID types.ID, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ai_jobs
		SET status = $2, started_at = $3, progress = 0, current_step = 'starting'
		WHERE request_id = $1 AND status = $4`,
		requestID, StatusProcessing, at, StatusQueued,
	)
	if err != nil {
		return false, fmt.Errorf("start job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) BindModel(ctx context.Context, requestID types.ID, modelID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ai_jobs SET model_id = $2 WHERE request_id = $1 AND status = $3`,
		requestID, modelID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("bind model: %w", err)
	}
	return nil
}

// UpdateProgress records reported progress. GREATEST keeps progress monotonic
// even if callbacks land out of order; the status guard makes it a no-op once
// the job leaves processing.
func (s *PGStore) UpdateProgress(ctx context.Context, requestID types.ID, progress int, step string, estimated *int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE ai_jobs
		SET progress = GREATEST(progress, $2), current_step = $3, estimated_time = $4
		WHERE request_id = $1 AND status = $5`,
		requestID, ClampProgress(progress), step, estimated, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// Complete finalizes a processing job with its result. Returns false when the
// job is no longer processing, which means the result must be discarded.
func (s *PGStore) Complete(ctx context.Context, requestID types.ID, resultData string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ai_jobs
		SET status = $2, progress = 100, current_step = 'completed',
			result_data = $3, error_message = NULL, estimated_time = 0, completed_at = $4
		WHERE request_id = $1 AND status = $5`,
		requestID, StatusCompleted, resultData, at, StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Fail finalizes a processing job with an error. Retryable marks whether the
// sweeper may re-queue it later.
func (s *PGStore) Fail(ctx context.Context, requestID types.ID, message string, retryable bool, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ai_jobs
		SET status = $2, error_message = $3, retryable = $4, completed_at = $5
		WHERE request_id = $1 AND status = $6`,
		requestID, StatusFailed, message, retryable, at, StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel aborts a job that has not yet reached a terminal state.
func (s *PGStore) Cancel(ctx context.Context, requestID types.ID, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ai_jobs
		SET status = $2, current_step = 'cancelled', completed_at = $3
		WHERE request_id = $1 AND status IN ($4, $5)`,
		requestID, StatusCancelled, at, StatusQueued, StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Retry re-queues a failed job and consumes one retry. The retry_count guard
// lives in the query so two concurrent retries cannot both succeed past the
// budget.
func (s *PGStore) Retry(ctx context.Context, requestID types.ID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ai_jobs
		SET status = $2, retry_count = retry_count + 1, progress = 0,
			current_step = 'retry queued', error_message = NULL,
			started_at = NULL, completed_at = NULL, estimated_time = NULL
		WHERE request_id = $1 AND status = $3 AND retry_count < max_retry`,
		requestID, StatusQueued, StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("retry job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) FindQueued(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM ai_jobs WHERE status = $1 ORDER BY created_at LIMIT $2`,
		StatusQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("query queued jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// FindFailedRetryable returns failed jobs with retry budget left whose failure
// happened before the cutoff. The sweeper re-queues these.
func (s *PGStore) FindFailedRetryable(ctx context.Context, before time.Time) ([]*Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM ai_jobs
		WHERE status = $1 AND retryable AND retry_count < max_retry AND completed_at < $2
		ORDER BY completed_at`,
		StatusFailed, before)
	if err != nil {
		return nil, fmt.Errorf("query retryable jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// DeleteTerminalOlderThan removes finished jobs created before the cutoff.
func (s *PGStore) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM ai_jobs
		WHERE status IN ($1, $2, $3) AND created_at < $4`,
		StatusCompleted, StatusFailed, StatusCancelled, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_state_events (request_id, from_status, to_status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.RequestID, e.FromStatus, e.ToStatus, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}

func (s *PGStore) EventsFor(ctx context.Context, requestID types.ID) ([]*Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, from_status, to_status, detail, created_at
		FROM job_state_events WHERE request_id = $1 ORDER BY id`,
		requestID)
	if err != nil {
		return nil, fmt.Errorf("query job events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RequestID, &e.FromStatus, &e.ToStatus, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
