package outbound

import (
	"context"
	"encoding/json"

	"github.com/rafaeldc/triagebot/internal/domain/model"
)

// PostedMessage identifies a chat message for later edits.
type PostedMessage struct {
	Channel   string
	Timestamp string
}

// ResolutionUpdate describes the edit applied to a notification when a human
// finalizes the ticket: the stale action controls are removed and a
// resolution line is appended.
type ResolutionUpdate struct {
	Channel      string
	Timestamp    string
	FallbackText string
	// SourceBlocks is the current block JSON of the posted message.
	SourceBlocks json.RawMessage
	// Label is the human-readable resolution line, e.g. "🔺 Escalado para N3".
	Label string
}

// Notifier publishes ticket state to the chat platform.
type Notifier interface {
	// PostTicketCard posts the triage card with its action controls and
	// returns the message identity for the follow-up store patch.
	PostTicketCard(ctx context.Context, channel string, ticket model.Ticket) (PostedMessage, error)

	// AppendResolution edits an existing card per the update.
	AppendResolution(ctx context.Context, update ResolutionUpdate) error
}
