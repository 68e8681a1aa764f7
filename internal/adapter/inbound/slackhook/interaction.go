package slackhook

import (
	"encoding/json"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/rafaeldc/triagebot/internal/domain/model"
)

// Interaction identifiers fixed by the installed Slack app manifest.
const (
	ModalCallbackID = "chamado_modal"

	ActionResolveTier2  = "resolver_n2"
	ActionEscalateTier3 = "escalar_n3"

	blockDescription = "desc"
	blockClient      = "cliente"
	blockModule      = "modulo"
	blockAttempts    = "tentativas"
)

// Interaction is the closed set of webhook interaction kinds, decoded once at
// the boundary and matched exhaustively by the handler.
type Interaction interface{ kind() string }

// SlashCommand is a top-level slash-command invocation.
type SlashCommand struct {
	Command   string
	TriggerID string
	ChannelID string
	UserID    string
}

// ModalSubmission is a completed intake modal. UserID is empty when the
// submitting user could not be identified.
type ModalSubmission struct {
	UserID     string
	Submission model.Submission
}

// BlockAction is a button click on a posted ticket card.
type BlockAction struct {
	ActionID    string
	TicketRowID string
	UserID      string
	ChannelID   string
	MessageTS   string
	MessageText string
	// MessageBlocks is the clicked message's current block JSON, needed to
	// rebuild the card without its action controls.
	MessageBlocks json.RawMessage
}

// Unrecognized covers health checks and payload shapes this app does not
// handle; it is acknowledged with an empty success response.
type Unrecognized struct{}

func (SlashCommand) kind() string    { return "slash_command" }
func (ModalSubmission) kind() string { return "modal_submission" }
func (BlockAction) kind() string     { return "block_action" }
func (Unrecognized) kind() string    { return "unrecognized" }

// DecodeInteraction resolves the interaction kind from a decoded form body.
// A present but unparsable `payload` field is a hard failure for the request.
func DecodeInteraction(form map[string]string) (Interaction, error) {
	if payload, ok := form["payload"]; ok && payload != "" {
		return decodePayload(payload)
	}

	if cmd := form["command"]; cmd != "" && form["trigger_id"] != "" {
		return SlashCommand{
			Command:   cmd,
			TriggerID: form["trigger_id"],
			ChannelID: form["channel_id"],
			UserID:    form["user_id"],
		}, nil
	}

	return Unrecognized{}, nil
}

func decodePayload(payload string) (Interaction, error) {
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		return nil, fmt.Errorf("decoding interaction payload: %w", err)
	}

	switch cb.Type {
	case slack.InteractionTypeViewSubmission:
		if cb.View.CallbackID != ModalCallbackID {
			return Unrecognized{}, nil
		}
		return decodeModalSubmission(cb), nil

	case slack.InteractionTypeBlockActions:
		if len(cb.ActionCallback.BlockActions) == 0 {
			return Unrecognized{}, nil
		}
		return decodeBlockAction(cb)

	default:
		return Unrecognized{}, nil
	}
}

func decodeModalSubmission(cb slack.InteractionCallback) ModalSubmission {
	sub := model.Submission{
		Description:   viewValue(cb.View.State, blockDescription),
		Client:        viewValue(cb.View.State, blockClient),
		Module:        viewValue(cb.View.State, blockModule),
		Attempts:      model.AttemptsTier(viewValue(cb.View.State, blockAttempts)),
		Channel:       model.ChannelSlack,
		SlackUserID:   cb.User.ID,
		TargetChannel: cb.View.PrivateMetadata,
	}
	return ModalSubmission{UserID: cb.User.ID, Submission: sub}
}

func decodeBlockAction(cb slack.InteractionCallback) (Interaction, error) {
	action := cb.ActionCallback.BlockActions[0]

	blocks, err := json.Marshal(cb.Message.Blocks)
	if err != nil {
		return nil, fmt.Errorf("re-encoding message blocks: %w", err)
	}

	return BlockAction{
		ActionID:      action.ActionID,
		TicketRowID:   action.Value,
		UserID:        cb.User.ID,
		ChannelID:     cb.Container.ChannelID,
		MessageTS:     cb.Container.MessageTs,
		MessageText:   cb.Message.Text,
		MessageBlocks: blocks,
	}, nil
}

// viewValue reads one input from the modal's state. Text inputs carry
// `.value`, selects carry `.selected_option.value`; block and action ids are
// the same string in this app's modal.
func viewValue(state *slack.ViewState, blockID string) string {
	if state == nil {
		return ""
	}
	block, ok := state.Values[blockID]
	if !ok {
		return ""
	}
	action, ok := block[blockID]
	if !ok {
		return ""
	}
	if action.SelectedOption.Value != "" {
		return action.SelectedOption.Value
	}
	return action.Value
}
