package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rafaeldc/triagebot/internal/domain/model"
	"github.com/rafaeldc/triagebot/internal/domain/port/outbound"
)

// ticketsResource is the table exposed by the storage collaborator. The
// dashboard reads the same rows, so the resource name is part of the contract.
const ticketsResource = "chamados"

// listProjection mirrors the dashboard's column selection for listings.
const listProjection = "id, ticket_id, created_at, cliente, canal, modulo, tentativas, texto_original, resumo, verdict, prioridade, diagnostico, passos, tags, verdict_final, resolvido_em, post_mortem, post_mortem_autor, post_mortem_em"

// Config holds connection settings for the storage REST interface.
type Config struct {
	// BaseURL is the storage service root, e.g. https://xyz.supabase.co.
	BaseURL string
	// ServiceKey is the service-role credential; sent as both apikey and
	// bearer token, the way the storage service expects it.
	ServiceKey string
	Timeout    time.Duration
}

// TicketRepo implements outbound.TicketRepository over the storage
// collaborator's REST interface. All writes are single-row and
// unconditioned: concurrent updates are last-write-wins per field.
type TicketRepo struct {
	cfg        Config
	httpClient *http.Client
}

// NewTicketRepo creates a TicketRepo.
func NewTicketRepo(cfg Config) *TicketRepo {
	return &TicketRepo{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

var _ outbound.TicketRepository = (*TicketRepo)(nil)

// Create inserts a ticket row and returns it with the storage-assigned
// identity, requested via the representation preference header.
func (r *TicketRepo) Create(ctx context.Context, ticket model.Ticket) (model.Ticket, error) {
	body, err := json.Marshal(ticket)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("encoding ticket row: %w", err)
	}

	req, err := r.newRequest(ctx, http.MethodPost, r.resourceURL(nil), body)
	if err != nil {
		return model.Ticket{}, err
	}
	req.Header.Set("Prefer", "return=representation")

	respBody, err := r.do(req)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("inserting ticket %s: %w", ticket.TicketID, err)
	}

	var rows []model.Ticket
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return model.Ticket{}, fmt.Errorf("decoding inserted representation: %w", err)
	}
	if len(rows) == 0 || rows[0].ID == "" {
		return model.Ticket{}, fmt.Errorf("insert returned no row identity for %s", ticket.TicketID)
	}
	return rows[0], nil
}

// Patch performs a partial, unconditioned update of one row.
func (r *TicketRepo) Patch(ctx context.Context, id model.RowID, patch outbound.TicketPatch) error {
	if id == "" {
		return fmt.Errorf("patch: empty row id")
	}
	if len(patch) == 0 {
		return nil
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encoding patch: %w", err)
	}

	query := url.Values{"id": []string{"eq." + id.String()}}
	req, err := r.newRequest(ctx, http.MethodPatch, r.resourceURL(query), body)
	if err != nil {
		return err
	}
	if _, err := r.do(req); err != nil {
		return fmt.Errorf("patching ticket row %s: %w", id.String(), err)
	}
	return nil
}

// List returns a filtered page of tickets, newest first.
func (r *TicketRepo) List(ctx context.Context, filter outbound.TicketFilter, page outbound.PageRequest) ([]model.Ticket, error) {
	query := url.Values{}
	query.Set("select", listProjection)
	query.Set("order", "created_at.desc")

	if filter.Channel != "" {
		query.Set("canal", "eq."+string(filter.Channel))
	}
	if filter.Priority != "" {
		query.Set("prioridade", "eq."+string(filter.Priority))
	}
	if filter.Module != "" {
		query.Set("modulo", "eq."+filter.Module)
	}
	if filter.PendingOnly {
		query.Set("verdict_final", "is.null")
	} else if filter.FinalizedOnly {
		query.Set("verdict_final", "not.is.null")
	}
	if filter.CreatedAfter != nil {
		query.Set("created_at", "gte."+filter.CreatedAfter.UTC().Format(time.RFC3339))
	}
	if filter.CreatedBefore != nil {
		query.Add("created_at", "lt."+filter.CreatedBefore.UTC().Format(time.RFC3339))
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}
	query.Set("limit", strconv.Itoa(limit))
	if page.Offset > 0 {
		query.Set("offset", strconv.Itoa(page.Offset))
	}

	req, err := r.newRequest(ctx, http.MethodGet, r.resourceURL(query), nil)
	if err != nil {
		return nil, err
	}
	respBody, err := r.do(req)
	if err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}

	var rows []model.Ticket
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return nil, fmt.Errorf("decoding ticket list: %w", err)
	}
	return rows, nil
}

func (r *TicketRepo) resourceURL(query url.Values) string {
	u := strings.TrimRight(r.cfg.BaseURL, "/") + "/rest/v1/" + ticketsResource
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (r *TicketRepo) newRequest(ctx context.Context, method, u string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("creating storage request: %w", err)
	}
	req.Header.Set("apikey", r.cfg.ServiceKey)
	req.Header.Set("Authorization", "Bearer "+r.cfg.ServiceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (r *TicketRepo) do(req *http.Request) ([]byte, error) {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading storage response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("storage status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
