package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/rafaeldc/triagebot/internal/domain/model"
	"github.com/rafaeldc/triagebot/internal/domain/port/outbound"
)

// Processor runs the triage pipeline for one submission.
type Processor interface {
	Process(ctx context.Context, sub model.Submission) error
}

// Config holds worker settings.
type Config struct {
	// PollInterval bounds how long a due job waits when no wake arrives,
	// and drives startup replay of jobs left over from a previous run.
	PollInterval time.Duration
	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
	// JobTimeout bounds one pipeline run.
	JobTimeout time.Duration
	// BatchSize caps jobs claimed per drain.
	BatchSize int
}

// Dispatcher executes outbox jobs detached from the webhook that created
// them. Job failures are logged and retried with backoff, never surfaced to
// the already-acknowledged webhook caller.
type Dispatcher struct {
	cfg       Config
	jobs      outbound.TriageJobStore
	processor Processor
	wake      <-chan struct{}
	logger    *slog.Logger

	now func() time.Time
}

// NewDispatcher creates a Dispatcher. wake may be nil; polling alone then
// drives execution.
func NewDispatcher(cfg Config, jobs outbound.TriageJobStore, processor Processor, wake <-chan struct{}, logger *slog.Logger) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 10 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Dispatcher{cfg: cfg, jobs: jobs, processor: processor, wake: wake, logger: logger, now: time.Now}
}

// Run drains jobs until ctx is cancelled. The drain in progress always
// completes before Run returns, which is what keeps the process alive until
// detached work finishes.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	// Replay anything left over from a previous run before serving new work.
	d.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.drain(ctx)
		case <-d.wakeChan():
			d.drain(ctx)
		}
	}
}

func (d *Dispatcher) wakeChan() <-chan struct{} {
	if d.wake != nil {
		return d.wake
	}
	// A nil channel blocks forever; polling still runs.
	return nil
}

// drain claims and runs due jobs. Each job gets its own timeout detached
// from the server's shutdown context so cancellation cannot abort a job
// midway through its side effects.
func (d *Dispatcher) drain(ctx context.Context) {
	jobs, err := d.jobs.Due(ctx, d.now(), d.cfg.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error("querying due jobs failed", "error", err)
		}
		return
	}

	for _, job := range jobs {
		d.runJob(ctx, job)
	}
}

func (d *Dispatcher) runJob(ctx context.Context, job outbound.TriageJob) {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.JobTimeout)
	defer cancel()

	if err := d.processor.Process(jobCtx, job.Submission); err != nil {
		retryAt := d.now().Add(d.backoff(job.Attempts))
		d.logger.Error("triage job failed", "job_id", job.ID, "attempt", job.Attempts+1, "retry_at", retryAt, "error", err)
		if markErr := d.jobs.MarkFailed(jobCtx, job.ID, err.Error(), retryAt); markErr != nil {
			d.logger.Error("marking job failed errored", "job_id", job.ID, "error", markErr)
		}
		return
	}

	if err := d.jobs.MarkDone(jobCtx, job.ID); err != nil {
		d.logger.Error("marking job done errored", "job_id", job.ID, "error", err)
		return
	}
	d.logger.Info("triage job completed", "job_id", job.ID)
}

// backoff doubles per attempt: base, 2*base, 4*base, ...
func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.cfg.BackoffBase
	for i := 0; i < attempts && delay < time.Hour; i++ {
		delay *= 2
	}
	return delay
}
