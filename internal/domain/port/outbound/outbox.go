package outbound

import (
	"context"
	"time"

	"github.com/rafaeldc/triagebot/internal/domain/model"
)

// JobStatus is the lifecycle state of an outbox job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobDead    JobStatus = "dead"
)

// TriageJob is one unit of detached pipeline work, persisted before the
// webhook is acknowledged so a crash cannot lose it.
type TriageJob struct {
	ID         string
	Submission model.Submission
	Status     JobStatus
	Attempts   int
	LastError  string
	NotBefore  time.Time
	CreatedAt  time.Time
}

// TriageJobStore is the durable outbox backing the background scheduler.
type TriageJobStore interface {
	// Enqueue persists a new pending job and returns it.
	Enqueue(ctx context.Context, sub model.Submission) (TriageJob, error)

	// Due returns up to limit pending jobs whose NotBefore has passed,
	// oldest first.
	Due(ctx context.Context, now time.Time, limit int) ([]TriageJob, error)

	// MarkDone finishes a job.
	MarkDone(ctx context.Context, id string) error

	// MarkFailed records a failed attempt. The job stays pending with the
	// given retry time until attempts exceed the store's cap, after which it
	// is parked as dead.
	MarkFailed(ctx context.Context, id string, lastError string, retryAt time.Time) error
}
