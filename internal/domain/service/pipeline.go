package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rafaeldc/triagebot/internal/domain/model"
	"github.com/rafaeldc/triagebot/internal/domain/port/inbound"
	"github.com/rafaeldc/triagebot/internal/domain/port/outbound"
)

// Pipeline ties the triage classifier, ticket store, sequence issuer and
// notification publisher together. It implements the inbound intake port for
// the chat adapter and the job execution hook for the outbox worker.
type Pipeline struct {
	classifier outbound.TriageClassifier
	tickets    outbound.TicketRepository
	sequence   outbound.TicketSequence
	notifier   outbound.Notifier
	jobs       outbound.TriageJobStore
	logger     *slog.Logger

	// wake is notified after an enqueue so the worker picks the job up
	// without waiting for its poll interval.
	wake chan struct{}

	now func() time.Time
}

// NewPipeline creates a Pipeline with all required collaborators.
func NewPipeline(
	classifier outbound.TriageClassifier,
	tickets outbound.TicketRepository,
	sequence outbound.TicketSequence,
	notifier outbound.Notifier,
	jobs outbound.TriageJobStore,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		tickets:    tickets,
		sequence:   sequence,
		notifier:   notifier,
		jobs:       jobs,
		logger:     logger,
		wake:       make(chan struct{}, 1),
		now:        time.Now,
	}
}

var _ inbound.TicketIntakePort = (*Pipeline)(nil)

// Wake returns the channel the worker listens on for freshly enqueued jobs.
func (p *Pipeline) Wake() <-chan struct{} { return p.wake }

// SubmitTicket validates and persists the submission as an outbox job. The
// caller can acknowledge its webhook as soon as this returns; the pipeline
// itself runs in the worker.
func (p *Pipeline) SubmitTicket(ctx context.Context, sub model.Submission) (string, error) {
	sub = sub.Normalize()
	if err := sub.Validate(); err != nil {
		return "", fmt.Errorf("invalid submission: %w", err)
	}

	job, err := p.jobs.Enqueue(ctx, sub)
	if err != nil {
		return "", fmt.Errorf("enqueue triage job: %w", err)
	}

	select {
	case p.wake <- struct{}{}:
	default:
	}

	p.logger.Info("triage job enqueued", "job_id", job.ID, "client", sub.Client, "module", sub.Module)
	return job.ID, nil
}

// Process runs the detached pipeline for one submission:
// classify → issue id → insert row → post notification → patch message ref.
//
// Only failures before the row insert are returned (and therefore retried by
// the worker). Once the row exists, notification and patch failures are
// logged and swallowed: retrying the whole job would insert a duplicate row,
// and the ordering contract only makes the patch best-effort anyway.
func (p *Pipeline) Process(ctx context.Context, sub model.Submission) error {
	verdict, err := p.classifier.Classify(ctx, sub)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	if verdict.IsFallback() {
		p.logger.Warn("classifier fell back to default verdict", "client", sub.Client)
	}

	ticketID, err := p.sequence.NextTicketID(ctx)
	if err != nil {
		return fmt.Errorf("issue ticket id: %w", err)
	}

	ticket := model.NewTicket(sub, ticketID, verdict)
	created, err := p.tickets.Create(ctx, ticket)
	if err != nil {
		return fmt.Errorf("insert ticket %s: %w", ticketID, err)
	}
	p.logger.Info("ticket created", "ticket_id", ticketID, "row_id", created.ID.String(), "priority", string(verdict.Priority))

	posted, err := p.notifier.PostTicketCard(ctx, sub.TargetChannel, created)
	if err != nil {
		p.logger.Error("ticket notification failed; row exists without message", "ticket_id", ticketID, "row_id", created.ID.String(), "error", err)
		return nil
	}

	if err := p.tickets.Patch(ctx, created.ID, outbound.SlackMessagePatch(posted.Channel, posted.Timestamp)); err != nil {
		// Without the message ref, future button clicks on this ticket
		// degrade to no-ops. Accepted: the patch is best-effort.
		p.logger.Error("message ref patch failed", "ticket_id", ticketID, "row_id", created.ID.String(), "error", err)
	}
	return nil
}

// FinalizeTicket records the human verdict and then edits the notification.
// The store write comes first: the edit is presentation, the patch is the
// decision. A second click on an already-finalized ticket overwrites the
// first (last-write-wins, the documented store contract).
func (p *Pipeline) FinalizeTicket(ctx context.Context, req inbound.FinalizeRequest) error {
	if req.TicketRowID == "" {
		return fmt.Errorf("finalize: missing ticket row id")
	}

	if err := p.tickets.Patch(ctx, req.TicketRowID, outbound.FinalVerdictPatch(req.Verdict, p.now())); err != nil {
		return fmt.Errorf("record final verdict: %w", err)
	}
	p.logger.Info("ticket finalized", "row_id", req.TicketRowID.String(), "verdict", string(req.Verdict), "operator", req.OperatorID)

	err := p.notifier.AppendResolution(ctx, outbound.ResolutionUpdate{
		Channel:      req.Channel,
		Timestamp:    req.MessageTS,
		FallbackText: req.FallbackText,
		SourceBlocks: req.SourceBlocks,
		Label:        req.Label,
	})
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

// RecordPostMortem attaches a post-mortem to a finalized ticket.
func (p *Pipeline) RecordPostMortem(ctx context.Context, id model.RowID, text, author string) error {
	if err := model.ValidPostMortem(text); err != nil {
		return err
	}
	if author == "" {
		return fmt.Errorf("post-mortem author is required")
	}
	if err := p.tickets.Patch(ctx, id, outbound.PostMortemPatch(text, author, p.now())); err != nil {
		return fmt.Errorf("record post-mortem: %w", err)
	}
	return nil
}
