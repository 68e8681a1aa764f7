package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rafaeldc/triagebot/internal/adapter/outbound/llm/openai"
)

func TestComplete(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotAuth string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotBody = body
		mu.Unlock()
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "{\"verdict\": \"N2 - Resolver\"}"}}]}`))
	}))
	defer srv.Close()

	client := openai.NewClient(openai.Config{
		BaseURL:     srv.URL,
		APIKey:      "sk-test",
		Model:       "gpt-4o-mini",
		MaxTokens:   500,
		Temperature: 0.2,
		Timeout:     5 * time.Second,
	})

	text, err := client.Complete(context.Background(), "Você é um analista.", "CHAMADO: pix fora do ar")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != `{"verdict": "N2 - Resolver"}` {
		t.Errorf("text = %q", text)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/v1/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("authorization = %q", gotAuth)
	}

	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens int `json:"max_tokens"`
	}
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("decoding request: %v", err)
	}
	if req.Model != "gpt-4o-mini" || req.MaxTokens != 500 {
		t.Errorf("request = %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestComplete_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
	}{
		{"non-200 status", http.StatusTooManyRequests, `{"error": {"message": "rate limited"}}`},
		{"no choices", http.StatusOK, `{"choices": []}`},
		{"invalid json", http.StatusOK, `{not json`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.response))
			}))
			defer srv.Close()

			client := openai.NewClient(openai.Config{BaseURL: srv.URL, APIKey: "sk", Timeout: 5 * time.Second})
			if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := openai.NewClient(openai.Config{BaseURL: srv.URL, APIKey: "sk", Timeout: 5 * time.Second})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check: %v", err)
	}
}

func TestHealthCheck_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := openai.NewClient(openai.Config{BaseURL: srv.URL, APIKey: "bad", Timeout: 5 * time.Second})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for rejected key")
	}
}
