package slack

import (
	"context"
	"encoding/json"
	"fmt"

	slackapi "github.com/slack-go/slack"

	"github.com/rafaeldc/triagebot/internal/adapter/outbound/notification/slack/template"
	"github.com/rafaeldc/triagebot/internal/domain/model"
	"github.com/rafaeldc/triagebot/internal/domain/port/outbound"
)

// Config holds Slack publisher settings.
type Config struct {
	BotToken string
	// DefaultChannel receives cards when the submission carries no target.
	DefaultChannel string
}

// chatAPI is the slice of the Slack client the notifier uses. *slackapi.Client
// satisfies it; tests substitute a fake.
type chatAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slackapi.MsgOption) (string, string, string, error)
}

// Notifier implements outbound.Notifier via the Slack Web API.
type Notifier struct {
	client chatAPI
	cfg    Config
}

// NewNotifier creates a Notifier with a real Slack client.
func NewNotifier(cfg Config) *Notifier {
	return &Notifier{client: slackapi.New(cfg.BotToken), cfg: cfg}
}

// NewNotifierWithClient injects a chat API implementation; used by tests.
func NewNotifierWithClient(cfg Config, client chatAPI) *Notifier {
	return &Notifier{client: client, cfg: cfg}
}

var _ outbound.Notifier = (*Notifier)(nil)

// PostTicketCard posts the pending-ticket card and returns the message
// identity Slack assigned, for the follow-up store patch.
func (n *Notifier) PostTicketCard(ctx context.Context, channel string, ticket model.Ticket) (outbound.PostedMessage, error) {
	if channel == "" {
		channel = n.cfg.DefaultChannel
	}

	blocks := template.BuildTicketCard(ticket)
	postedChannel, ts, err := n.client.PostMessageContext(ctx, channel,
		slackapi.MsgOptionBlocks(blocks...),
		slackapi.MsgOptionText(template.FallbackText(ticket), false),
	)
	if err != nil {
		return outbound.PostedMessage{}, fmt.Errorf("slack chat.postMessage: %w", err)
	}
	return outbound.PostedMessage{Channel: postedChannel, Timestamp: ts}, nil
}

// AppendResolution rewrites the posted card without its action controls and
// with the resolution line appended.
func (n *Notifier) AppendResolution(ctx context.Context, update outbound.ResolutionUpdate) error {
	var existing slackapi.Blocks
	if len(update.SourceBlocks) > 0 {
		if err := json.Unmarshal(update.SourceBlocks, &existing); err != nil {
			return fmt.Errorf("decoding message blocks: %w", err)
		}
	}

	blocks := append(template.StripActions(existing.BlockSet), template.ResolutionSection(update.Label))

	fallback := update.FallbackText
	if fallback == "" {
		fallback = "Chamado atualizado"
	}

	_, _, _, err := n.client.UpdateMessageContext(ctx, update.Channel, update.Timestamp,
		slackapi.MsgOptionBlocks(blocks...),
		slackapi.MsgOptionText(fallback, false),
	)
	if err != nil {
		return fmt.Errorf("slack chat.update: %w", err)
	}
	return nil
}
