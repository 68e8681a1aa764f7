package postgrest_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rafaeldc/triagebot/internal/adapter/outbound/storage/postgrest"
	"github.com/rafaeldc/triagebot/internal/domain/model"
	"github.com/rafaeldc/triagebot/internal/domain/port/outbound"
)

type recordedRequest struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   []byte
}

func recordingServer(t *testing.T, status int, response string) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.Query(),
			header: r.Header.Clone(),
			body:   body,
		})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))

	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedRequest, len(requests))
		copy(out, requests)
		return out
	}
}

func newRepo(srv *httptest.Server) *postgrest.TicketRepo {
	return postgrest.NewTicketRepo(postgrest.Config{
		BaseURL:    srv.URL,
		ServiceKey: "service-key",
		Timeout:    5 * time.Second,
	})
}

func TestCreate(t *testing.T) {
	srv, recorded := recordingServer(t, http.StatusCreated,
		`[{"id": 42, "ticket_id": "TK-0042", "texto_original": "Pix fora do ar", "prioridade": "alta"}]`)
	defer srv.Close()
	repo := newRepo(srv)

	ticket := model.NewTicket(model.Submission{
		Description: "Pix fora do ar",
		Client:      "Loja X",
		Channel:     model.ChannelSlack,
		Module:      "pix",
		Attempts:    model.AttemptsNone,
	}, "TK-0042", model.Verdict{Tier: model.TierResolve, Priority: model.PriorityHigh, Steps: []string{}, Tags: []string{}})

	created, err := repo.Create(context.Background(), ticket)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "42" {
		t.Errorf("id = %q, want 42", created.ID)
	}
	if created.Verdict.Priority != model.PriorityHigh {
		t.Errorf("priority = %q", created.Verdict.Priority)
	}

	reqs := recorded()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.method != http.MethodPost {
		t.Errorf("method = %s", req.method)
	}
	if req.path != "/rest/v1/chamados" {
		t.Errorf("path = %s", req.path)
	}
	if req.header.Get("Prefer") != "return=representation" {
		t.Errorf("Prefer = %q", req.header.Get("Prefer"))
	}
	if req.header.Get("apikey") != "service-key" {
		t.Errorf("apikey = %q", req.header.Get("apikey"))
	}
	if req.header.Get("Authorization") != "Bearer service-key" {
		t.Errorf("Authorization = %q", req.header.Get("Authorization"))
	}

	var row map[string]any
	if err := json.Unmarshal(req.body, &row); err != nil {
		t.Fatalf("decoding sent row: %v", err)
	}
	if row["ticket_id"] != "TK-0042" {
		t.Errorf("sent ticket_id = %v", row["ticket_id"])
	}
	if row["verdict"] != string(model.TierResolve) {
		t.Errorf("sent verdict = %v, want flattened classification", row["verdict"])
	}
}

func TestCreate_NoIdentityIsError(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusCreated, `[]`)
	defer srv.Close()
	repo := newRepo(srv)

	if _, err := repo.Create(context.Background(), model.Ticket{TicketID: "TK-0001"}); err == nil {
		t.Error("expected error when insert returns no row identity")
	}
}

func TestCreate_StorageErrorPropagates(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusConflict, `{"message": "duplicate key"}`)
	defer srv.Close()
	repo := newRepo(srv)

	if _, err := repo.Create(context.Background(), model.Ticket{TicketID: "TK-0001"}); err == nil {
		t.Error("expected error on non-2xx status")
	}
}

func TestPatch(t *testing.T) {
	srv, recorded := recordingServer(t, http.StatusNoContent, "")
	defer srv.Close()
	repo := newRepo(srv)

	err := repo.Patch(context.Background(), "42", outbound.SlackMessagePatch("C7", "1700000000.000100"))
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	reqs := recorded()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.method != http.MethodPatch {
		t.Errorf("method = %s", req.method)
	}
	if got := req.query.Get("id"); got != "eq.42" {
		t.Errorf("id filter = %q, want eq.42", got)
	}

	var patch map[string]any
	if err := json.Unmarshal(req.body, &patch); err != nil {
		t.Fatalf("decoding patch: %v", err)
	}
	if patch["slack_channel"] != "C7" || patch["slack_ts"] != "1700000000.000100" {
		t.Errorf("patch = %v", patch)
	}
}

func TestPatch_EmptyRowID(t *testing.T) {
	srv, recorded := recordingServer(t, http.StatusNoContent, "")
	defer srv.Close()
	repo := newRepo(srv)

	if err := repo.Patch(context.Background(), "", outbound.TicketPatch{"x": 1}); err == nil {
		t.Error("expected error for empty row id")
	}
	if len(recorded()) != 0 {
		t.Error("no request must be sent for an empty row id")
	}
}

func TestPatch_EmptyPatchIsNoop(t *testing.T) {
	srv, recorded := recordingServer(t, http.StatusNoContent, "")
	defer srv.Close()
	repo := newRepo(srv)

	if err := repo.Patch(context.Background(), "42", outbound.TicketPatch{}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if len(recorded()) != 0 {
		t.Error("empty patch must not hit storage")
	}
}

func TestList_PendingFilter(t *testing.T) {
	srv, recorded := recordingServer(t, http.StatusOK,
		`[{"id": "7", "ticket_id": "TK-0007", "prioridade": "alta"}]`)
	defer srv.Close()
	repo := newRepo(srv)

	after := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rows, err := repo.List(context.Background(), outbound.TicketFilter{
		PendingOnly:  true,
		Module:       "pix",
		CreatedAfter: &after,
	}, outbound.PageRequest{Limit: 20, Offset: 40})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "7" {
		t.Errorf("rows = %+v", rows)
	}

	req := recorded()[0]
	if got := req.query.Get("verdict_final"); got != "is.null" {
		t.Errorf("verdict_final = %q", got)
	}
	if got := req.query.Get("modulo"); got != "eq.pix" {
		t.Errorf("modulo = %q", got)
	}
	if got := req.query.Get("created_at"); got != "gte.2026-08-01T00:00:00Z" {
		t.Errorf("created_at = %q", got)
	}
	if got := req.query.Get("order"); got != "created_at.desc" {
		t.Errorf("order = %q", got)
	}
	if req.query.Get("limit") != "20" || req.query.Get("offset") != "40" {
		t.Errorf("page = limit %q offset %q", req.query.Get("limit"), req.query.Get("offset"))
	}
}

func TestList_FinalizedFilterAndDefaults(t *testing.T) {
	srv, recorded := recordingServer(t, http.StatusOK, `[]`)
	defer srv.Close()
	repo := newRepo(srv)

	if _, err := repo.List(context.Background(), outbound.TicketFilter{FinalizedOnly: true}, outbound.PageRequest{}); err != nil {
		t.Fatalf("list: %v", err)
	}

	req := recorded()[0]
	if got := req.query.Get("verdict_final"); got != "not.is.null" {
		t.Errorf("verdict_final = %q", got)
	}
	if got := req.query.Get("limit"); got != "50" {
		t.Errorf("default limit = %q", got)
	}
	if req.query.Get("select") == "" {
		t.Error("projection must be requested")
	}
}
