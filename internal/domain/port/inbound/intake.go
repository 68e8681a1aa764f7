package inbound

import (
	"context"
	"encoding/json"

	"github.com/rafaeldc/triagebot/internal/domain/model"
)

// FinalizeRequest carries a human finalization decision taken from the chat
// notification's action buttons.
type FinalizeRequest struct {
	TicketRowID model.RowID
	Verdict     model.FinalVerdict
	// Label is the human-readable resolution line appended to the message.
	Label string
	// OperatorID identifies who clicked, for logging only.
	OperatorID string

	// Message identity and current content of the notification to edit.
	Channel      string
	MessageTS    string
	FallbackText string
	// SourceBlocks is the posted message's block JSON; the publisher strips
	// the stale action controls from it before appending the label.
	SourceBlocks json.RawMessage
}

// TicketIntakePort is the boundary the chat adapter drives: it detaches new
// submissions into background work and finalizes tickets synchronously.
type TicketIntakePort interface {
	// SubmitTicket persists the submission as a pending job and returns once
	// the job is durable. The triage pipeline runs detached from the caller.
	SubmitTicket(ctx context.Context, sub model.Submission) (jobID string, err error)

	// FinalizeTicket records the human verdict (store first) and then edits
	// the chat notification. Errors propagate: this path is synchronous.
	FinalizeTicket(ctx context.Context, req FinalizeRequest) error
}
