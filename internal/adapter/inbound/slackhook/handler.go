package slackhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/rafaeldc/triagebot/internal/domain/model"
	"github.com/rafaeldc/triagebot/internal/domain/port/inbound"
	"github.com/rafaeldc/triagebot/pkg/apierror"
)

// Resolution labels appended to the card when an operator clicks a button.
const (
	labelResolvedTier2  = "✅ Marcado para resolução N2"
	labelEscalatedTier3 = "🔺 Escalado para N3"
)

// maxBodyBytes caps the webhook body; Slack payloads are far smaller.
const maxBodyBytes = 1 << 20

// ViewOpener is the slice of the Slack client the handler needs to open the
// intake modal. *slack.Client satisfies it.
type ViewOpener interface {
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
}

// Config holds the webhook handler's settings.
type Config struct {
	// SigningSecret authenticates inbound requests.
	SigningSecret string
	// Command is the slash-command trigger, e.g. "/chamado".
	Command string
}

// Handler is the single Slack webhook endpoint: it authenticates the request,
// resolves the interaction kind and dispatches it.
type Handler struct {
	cfg    Config
	views  ViewOpener
	intake inbound.TicketIntakePort
	logger *slog.Logger

	now func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(cfg Config, views ViewOpener, intake inbound.TicketIntakePort, logger *slog.Logger) *Handler {
	return &Handler{cfg: cfg, views: views, intake: intake, logger: logger, now: time.Now}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, apierror.BadRequest("failed to read request body"))
		return
	}

	signature := r.Header.Get("X-Slack-Signature")
	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	if !VerifySignature(body, signature, timestamp, h.cfg.SigningSecret, h.now()) {
		h.logger.Warn("rejected webhook with invalid signature", "remote", r.RemoteAddr)
		writeError(w, apierror.Unauthorized("invalid request signature"))
		return
	}

	interaction, err := DecodeInteraction(ParseForm(string(body)))
	if err != nil {
		h.logger.Warn("unparsable interaction payload", "error", err)
		writeError(w, apierror.BadRequest("unparsable interaction payload"))
		return
	}

	switch it := interaction.(type) {
	case SlashCommand:
		h.handleSlashCommand(w, r, it)
	case ModalSubmission:
		h.handleModalSubmission(w, r, it)
	case BlockAction:
		h.handleBlockAction(w, r, it)
	case Unrecognized:
		w.WriteHeader(http.StatusOK)
	}
}

// handleSlashCommand opens the intake modal. A rejected views.open call is a
// synchronous, observable failure.
func (h *Handler) handleSlashCommand(w http.ResponseWriter, r *http.Request, cmd SlashCommand) {
	if cmd.Command != h.cfg.Command {
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := h.views.OpenViewContext(r.Context(), cmd.TriggerID, BuildIntakeModal(cmd.ChannelID)); err != nil {
		h.logger.Error("views.open failed", "trigger_id", cmd.TriggerID, "error", err)
		writeError(w, apierror.Upstream("could not open intake modal"))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleModalSubmission persists the job and clears the modal. The triage
// pipeline runs detached; the ack must go out within Slack's deadline.
func (h *Handler) handleModalSubmission(w http.ResponseWriter, r *http.Request, sub ModalSubmission) {
	if sub.UserID == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"response_action": "errors",
			"errors":          map[string]string{blockDescription: "Erro: usuário não identificado."},
		})
		return
	}
	if sub.Submission.Description == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"response_action": "errors",
			"errors":          map[string]string{blockDescription: "Informe a descrição do problema."},
		})
		return
	}

	if _, err := h.intake.SubmitTicket(r.Context(), sub.Submission); err != nil {
		h.logger.Error("submit ticket failed", "user", sub.UserID, "error", err)
		writeError(w, apierror.Internal("could not accept submission"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"response_action": "clear"})
}

// handleBlockAction finalizes a ticket from a button click, synchronously.
func (h *Handler) handleBlockAction(w http.ResponseWriter, r *http.Request, action BlockAction) {
	if action.ChannelID == "" || action.MessageTS == "" || action.TicketRowID == "" {
		// A ticket without click-routing metadata; nothing to do.
		w.WriteHeader(http.StatusOK)
		return
	}

	var verdict model.FinalVerdict
	var label string
	switch action.ActionID {
	case ActionResolveTier2:
		verdict, label = model.FinalVerdictTier2, labelResolvedTier2
	case ActionEscalateTier3:
		verdict, label = model.FinalVerdictTier3, labelEscalatedTier3
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	rowID, err := model.ParseRowID(action.TicketRowID)
	if err != nil {
		writeError(w, apierror.BadRequest("malformed ticket reference"))
		return
	}

	req := inbound.FinalizeRequest{
		TicketRowID:  rowID,
		Verdict:      verdict,
		Label:        label,
		OperatorID:   action.UserID,
		Channel:      action.ChannelID,
		MessageTS:    action.MessageTS,
		FallbackText: action.MessageText,
		SourceBlocks: action.MessageBlocks,
	}
	if err := h.intake.FinalizeTicket(r.Context(), req); err != nil {
		h.logger.Error("finalize ticket failed", "row_id", rowID.String(), "verdict", string(verdict), "error", err)
		writeError(w, apierror.Upstream("could not finalize ticket"))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, e *apierror.Error) {
	writeJSON(w, e.Code, e)
}
