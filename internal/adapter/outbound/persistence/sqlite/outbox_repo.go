package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rafaeldc/triagebot/internal/domain/model"
	"github.com/rafaeldc/triagebot/internal/domain/port/outbound"
)

// OutboxRepo implements outbound.TriageJobStore. A job is written before the
// webhook ack, so pending work survives a crash and is replayed on startup.
type OutboxRepo struct {
	db          *sql.DB
	maxAttempts int
}

// NewOutboxRepo creates an OutboxRepo. Jobs failing more than maxAttempts
// times are parked as dead.
func NewOutboxRepo(store *Store, maxAttempts int) *OutboxRepo {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &OutboxRepo{db: store.DB, maxAttempts: maxAttempts}
}

var _ outbound.TriageJobStore = (*OutboxRepo)(nil)

// Enqueue persists a new pending job.
func (r *OutboxRepo) Enqueue(ctx context.Context, sub model.Submission) (outbound.TriageJob, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return outbound.TriageJob{}, fmt.Errorf("marshaling submission: %w", err)
	}

	job := outbound.TriageJob{
		ID:         uuid.NewString(),
		Submission: sub,
		Status:     outbound.JobPending,
		NotBefore:  time.Now().UTC(),
		CreatedAt:  time.Now().UTC(),
	}

	const q = `INSERT INTO triage_jobs (id, payload, status, attempts, last_error, not_before, created_at)
		VALUES (?,?,?,?,?,?,?)`
	_, err = r.db.ExecContext(ctx, q,
		job.ID, string(payload), string(job.Status), job.Attempts, job.LastError,
		job.NotBefore, job.CreatedAt,
	)
	if err != nil {
		return outbound.TriageJob{}, fmt.Errorf("inserting triage job: %w", err)
	}
	return job, nil
}

// Due returns pending jobs whose retry time has passed, oldest first.
func (r *OutboxRepo) Due(ctx context.Context, now time.Time, limit int) ([]outbound.TriageJob, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `SELECT id, payload, status, attempts, last_error, not_before, created_at
		FROM triage_jobs
		WHERE status = 'pending' AND not_before <= ?
		ORDER BY created_at ASC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, q, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []outbound.TriageJob
	for rows.Next() {
		var job outbound.TriageJob
		var payload, status string
		if err := rows.Scan(&job.ID, &payload, &status, &job.Attempts, &job.LastError, &job.NotBefore, &job.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &job.Submission); err != nil {
			return nil, fmt.Errorf("unmarshaling job %s payload: %w", job.ID, err)
		}
		job.Status = outbound.JobStatus(status)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// MarkDone finishes a job.
func (r *OutboxRepo) MarkDone(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE triage_jobs SET status = 'done' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking job %s done: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}

// MarkFailed records a failed attempt. The job stays pending with a retry
// time until it exhausts its attempts, then it is parked as dead.
func (r *OutboxRepo) MarkFailed(ctx context.Context, id string, lastError string, retryAt time.Time) error {
	const q = `UPDATE triage_jobs SET
		attempts = attempts + 1,
		last_error = ?,
		not_before = ?,
		status = CASE WHEN attempts + 1 >= ? THEN 'dead' ELSE 'pending' END
		WHERE id = ?`

	res, err := r.db.ExecContext(ctx, q, lastError, retryAt.UTC(), r.maxAttempts, id)
	if err != nil {
		return fmt.Errorf("marking job %s failed: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}
