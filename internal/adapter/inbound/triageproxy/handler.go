package triageproxy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/rafaeldc/triagebot/internal/domain/port/outbound"
	"github.com/rafaeldc/triagebot/pkg/apierror"
)

// Completer is the upstream model call the proxy fronts.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Config holds proxy handler settings.
type Config struct {
	InternalKey string
	// JWTSecret verifies dashboard session tokens; empty disables the
	// human-originated path.
	JWTSecret string
}

// Handler fronts the language model for both the dashboard (bearer session
// token) and the webhook pipeline (internal key). The model API key never
// leaves this process.
type Handler struct {
	auth      *authenticator
	completer Completer
	sequence  outbound.TicketSequence
	logger    *slog.Logger
}

// NewHandler creates a Handler. sequence may be nil when the ticket-id
// endpoint is not mounted.
func NewHandler(cfg Config, completer Completer, sequence outbound.TicketSequence, logger *slog.Logger) *Handler {
	return &Handler{
		auth:      newAuthenticator(cfg.InternalKey, cfg.JWTSecret),
		completer: completer,
		sequence:  sequence,
		logger:    logger,
	}
}

type triageRequest struct {
	SystemPrompt string `json:"systemPrompt"`
	UserMessage  string `json:"userMessage"`
}

// Triage is the classification endpoint: POST {systemPrompt, userMessage},
// response {text} or {error} with a non-2xx status.
func (h *Handler) Triage(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, apierror.New(http.StatusMethodNotAllowed, "method not allowed"))
		return
	}

	if err := h.auth.authenticate(r); err != nil {
		h.logger.Warn("rejected triage call", "remote", r.RemoteAddr, "error", err)
		writeError(w, apierror.Unauthorized("não autorizado"))
		return
	}

	var req triageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, apierror.BadRequest("body inválido: envie { systemPrompt, userMessage }"))
		return
	}
	if req.SystemPrompt == "" || req.UserMessage == "" {
		writeError(w, apierror.BadRequest("systemPrompt e userMessage são obrigatórios"))
		return
	}

	text, err := h.completer.Complete(r.Context(), req.SystemPrompt, req.UserMessage)
	if err != nil {
		h.logger.Error("model call failed", "error", err)
		writeError(w, apierror.Upstream("falha ao chamar o modelo de triagem"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// TicketID issues the next ticket identifier. Internal-key only: this is the
// shared id authority for every intake path.
func (h *Handler) TicketID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apierror.New(http.StatusMethodNotAllowed, "method not allowed"))
		return
	}
	if key := r.Header.Get(internalKeyHeader); key == "" || h.auth.internalKey == "" || key != h.auth.internalKey {
		writeError(w, apierror.Unauthorized("não autorizado"))
		return
	}
	if h.sequence == nil {
		writeError(w, apierror.Internal("ticket sequence not configured"))
		return
	}

	ticketID, err := h.sequence.NextTicketID(r.Context())
	if err != nil {
		h.logger.Error("issuing ticket id failed", "error", err)
		writeError(w, apierror.Internal("could not issue ticket id"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ticket_id": ticketID})
}

// Routes registers the proxy endpoints on a mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/triage", h.Triage)
	mux.HandleFunc("/v1/ticket-ids", h.TicketID)
}

func writeCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, content-type, x-internal-key")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, e *apierror.Error) {
	writeJSON(w, e.Code, e)
}
