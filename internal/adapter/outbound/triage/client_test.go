package triage_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rafaeldc/triagebot/internal/adapter/outbound/triage"
	"github.com/rafaeldc/triagebot/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSubmission() model.Submission {
	return model.Submission{
		Description: "Pix retornando erro 503",
		Client:      "Loja X",
		Channel:     model.ChannelSlack,
		Module:      "pix",
		Attempts:    model.AttemptsBasic,
		SlackUserID: "U1",
	}
}

const verdictJSON = `{
	"verdict": "N3 - Escalar",
	"prioridade": "crítica",
	"resumo": "Instabilidade no Pix",
	"diagnostico": "Falha no PSP",
	"passos": ["Abrir incidente", "Avisar o PSP"],
	"tags": ["pix", "indisponibilidade"]
}`

func TestClassify_Success(t *testing.T) {
	var mu sync.Mutex
	var gotKey, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotKey = r.Header.Get("X-Internal-Key")
		gotBody = string(body)
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"text": verdictJSON})
	}))
	defer srv.Close()

	client, err := triage.NewClient(triage.Config{URL: srv.URL, InternalKey: "k1", Timeout: 5 * time.Second}, testLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	verdict, err := client.Classify(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("classify: %v", err)
	}

	if verdict.Tier != model.TierEscalate {
		t.Errorf("tier = %q", verdict.Tier)
	}
	if verdict.Priority != model.PriorityCritical {
		t.Errorf("priority = %q", verdict.Priority)
	}
	if len(verdict.Steps) != 2 {
		t.Errorf("steps = %v", verdict.Steps)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotKey != "k1" {
		t.Errorf("internal key header = %q", gotKey)
	}
	var req struct {
		SystemPrompt string `json:"systemPrompt"`
		UserMessage  string `json:"userMessage"`
	}
	if err := json.Unmarshal([]byte(gotBody), &req); err != nil {
		t.Fatalf("decoding request: %v", err)
	}
	if req.SystemPrompt == "" {
		t.Error("system prompt must be sent")
	}
	if !strings.Contains(req.UserMessage, "Pix retornando erro 503") {
		t.Errorf("user message = %q", req.UserMessage)
	}
	if !strings.Contains(req.UserMessage, "Módulo/Sistema: pix") {
		t.Errorf("user message lacks module line: %q", req.UserMessage)
	}
	if strings.Contains(req.UserMessage, "CONTEXTO DA OPERAÇÃO") {
		t.Error("context prefix must be absent without an operation context")
	}
}

func TestClassify_OperationContextPrefix(t *testing.T) {
	var mu sync.Mutex
	var gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody = string(body)
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"text": verdictJSON})
	}))
	defer srv.Close()

	client, err := triage.NewClient(triage.Config{URL: srv.URL, Timeout: 5 * time.Second}, testLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	sub := testSubmission()
	sub.OperationContext = "Operação usa adquirente própria."
	if _, err := client.Classify(context.Background(), sub); err != nil {
		t.Fatalf("classify: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	var req struct {
		UserMessage string `json:"userMessage"`
	}
	if err := json.Unmarshal([]byte(gotBody), &req); err != nil {
		t.Fatalf("decoding request: %v", err)
	}
	if !strings.Contains(req.UserMessage, "CONTEXTO DA OPERAÇÃO") {
		t.Errorf("user message lacks context prefix: %q", req.UserMessage)
	}
	idx := strings.Index(req.UserMessage, "CHAMADO:")
	if idx == -1 || strings.Index(req.UserMessage, "CONTEXTO DA OPERAÇÃO") > idx {
		t.Error("context must precede the ticket block")
	}
}

func TestClassify_UpstreamFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := triage.NewClient(triage.Config{URL: srv.URL, Timeout: 5 * time.Second}, testLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	verdict, err := client.Classify(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("classify must not error on upstream failure: %v", err)
	}
	if !verdict.IsFallback() {
		t.Errorf("verdict = %+v, want fallback", verdict)
	}
	if verdict.Priority != model.PriorityMedium {
		t.Errorf("priority = %q, want média", verdict.Priority)
	}
}

func TestClassify_UnreachableFunctionFallsBack(t *testing.T) {
	client, err := triage.NewClient(triage.Config{URL: "http://127.0.0.1:1", Timeout: time.Second}, testLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	verdict, err := client.Classify(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("classify must not error when unreachable: %v", err)
	}
	if !verdict.IsFallback() {
		t.Errorf("verdict = %+v, want fallback", verdict)
	}
}

func TestParseVerdict_CodeFences(t *testing.T) {
	raw := "```json\n" + verdictJSON + "\n```"
	verdict := triage.ParseVerdict(raw)

	if verdict.Tier != model.TierEscalate {
		t.Errorf("tier = %q", verdict.Tier)
	}
	if verdict.Priority != model.PriorityCritical {
		t.Errorf("priority = %q", verdict.Priority)
	}
}

func TestParseVerdict_JSONinProse(t *testing.T) {
	raw := "Segue a análise solicitada:\n" + verdictJSON + "\nEspero ter ajudado."
	verdict := triage.ParseVerdict(raw)

	if verdict.Tier != model.TierEscalate {
		t.Errorf("tier = %q", verdict.Tier)
	}
}

func TestParseVerdict_BracesInsideStrings(t *testing.T) {
	raw := `{"verdict": "N2 - Resolver", "resumo": "payload {aninhado} no texto", "passos": [], "tags": []}`
	verdict := triage.ParseVerdict(raw)

	if verdict.Tier != model.TierResolve {
		t.Errorf("tier = %q", verdict.Tier)
	}
	if verdict.Summary != "payload {aninhado} no texto" {
		t.Errorf("summary = %q", verdict.Summary)
	}
}

func TestParseVerdict_DefaultsApplied(t *testing.T) {
	verdict := triage.ParseVerdict(`{"verdict": "N2 - Resolver", "resumo": "ok"}`)

	if verdict.Priority != model.PriorityMedium {
		t.Errorf("priority = %q, want default média", verdict.Priority)
	}
	if verdict.Steps == nil {
		t.Error("steps must be non-nil")
	}
	if verdict.Tags == nil {
		t.Error("tags must be non-nil")
	}
}

func TestParseVerdict_InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"prose only", "não consegui analisar este chamado"},
		{"truncated json", `{"verdict": "N2 - Resolver", "resumo":`},
		{"empty", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verdict := triage.ParseVerdict(tc.raw)
			if !verdict.IsFallback() {
				t.Errorf("verdict = %+v, want fallback", verdict)
			}
			if verdict.Priority != model.PriorityMedium {
				t.Errorf("priority = %q", verdict.Priority)
			}
		})
	}
}

func TestParseVerdict_FallbackKeepsRawText(t *testing.T) {
	verdict := triage.ParseVerdict("resposta sem estrutura")
	if verdict.Diagnosis != "resposta sem estrutura" {
		t.Errorf("diagnosis = %q, want raw text preserved", verdict.Diagnosis)
	}
}
