package outbound

import (
	"context"
	"time"

	"github.com/rafaeldc/triagebot/internal/domain/model"
)

// TicketPatch is a partial, unconditioned write to a ticket row. Keys are
// storage column names. Concurrent patches are last-write-wins per field.
type TicketPatch map[string]any

// SlackMessagePatch records where the triage notification landed. The two
// columns are always written together.
func SlackMessagePatch(channel, ts string) TicketPatch {
	return TicketPatch{"slack_channel": channel, "slack_ts": ts}
}

// FinalVerdictPatch records a human finalization decision.
func FinalVerdictPatch(v model.FinalVerdict, at time.Time) TicketPatch {
	return TicketPatch{"verdict_final": string(v), "resolvido_em": at.UTC().Format(time.RFC3339)}
}

// PostMortemPatch records a post-mortem write.
func PostMortemPatch(text, author string, at time.Time) TicketPatch {
	return TicketPatch{
		"post_mortem":       text,
		"post_mortem_autor": author,
		"post_mortem_em":    at.UTC().Format(time.RFC3339),
	}
}

// TicketFilter narrows List results. Zero values mean "no constraint".
type TicketFilter struct {
	Channel       model.Channel
	Priority      model.Priority
	Module        string
	FinalizedOnly bool
	PendingOnly   bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// PageRequest selects a window of rows, newest first.
type PageRequest struct {
	Offset int
	Limit  int
}

// TicketRepository is the canonical ticket store, reached over its REST
// interface. Create must return the assigned identity so the notification
// can later be correlated with the row.
type TicketRepository interface {
	Create(ctx context.Context, ticket model.Ticket) (model.Ticket, error)
	Patch(ctx context.Context, id model.RowID, patch TicketPatch) error
	List(ctx context.Context, filter TicketFilter, page PageRequest) ([]model.Ticket, error)
}

// TicketSequence issues human-readable ticket identifiers. A single issuer is
// shared by every intake path so identifiers never collide under burst load.
type TicketSequence interface {
	NextTicketID(ctx context.Context) (string, error)
}
