package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rafaeldc/triagebot/internal/domain/model"
	"github.com/rafaeldc/triagebot/internal/domain/port/outbound"
)

// Config holds settings for the classification-function client.
type Config struct {
	// URL is the classification function endpoint.
	URL string
	// InternalKey authenticates this service-to-service call.
	InternalKey string
	Timeout     time.Duration
}

// Client implements outbound.TriageClassifier against the classification
// function's HTTP contract: POST {systemPrompt, userMessage}, response
// {text} or {error}. Upstream and parse failures degrade to the fallback
// verdict; the pipeline never sees them as errors.
type Client struct {
	cfg        Config
	httpClient *http.Client
	prompts    *promptBuilder
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	prompts, err := newPromptBuilder()
	if err != nil {
		return nil, fmt.Errorf("loading triage prompts: %w", err)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		prompts:    prompts,
		logger:     logger,
	}, nil
}

var _ outbound.TriageClassifier = (*Client)(nil)

type classifyRequest struct {
	SystemPrompt string `json:"systemPrompt"`
	UserMessage  string `json:"userMessage"`
}

type classifyResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Classify calls the classification function exactly once and normalizes the
// response. Every upstream failure mode returns a fallback verdict.
func (c *Client) Classify(ctx context.Context, sub model.Submission) (model.Verdict, error) {
	userMessage, err := c.prompts.BuildUserMessage(sub)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("building user message: %w", err)
	}

	raw, err := c.call(ctx, userMessage)
	if err != nil {
		c.logger.Warn("classification call failed, using fallback verdict", "error", err)
		return model.FallbackVerdict(""), nil
	}

	return ParseVerdict(raw), nil
}

func (c *Client) call(ctx context.Context, userMessage string) (string, error) {
	body, err := json.Marshal(classifyRequest{SystemPrompt: c.prompts.system, UserMessage: userMessage})
	if err != nil {
		return "", fmt.Errorf("encoding classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Key", c.cfg.InternalKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling classification function: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading classification response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("classification function status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed classifyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		// Some deployments return the bare completion text.
		return string(respBody), nil
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("classification function error: %s", parsed.Error)
	}
	return parsed.Text, nil
}

// ParseVerdict normalizes raw classifier output into a Verdict. It tolerates
// markdown code fences and prose around the JSON object; anything that still
// fails to parse becomes the fallback verdict carrying the raw text.
func ParseVerdict(raw string) model.Verdict {
	content := extractJSONObject(stripCodeFences(raw))
	if content == "" {
		return model.FallbackVerdict(strings.TrimSpace(raw))
	}

	var v model.Verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return model.FallbackVerdict(strings.TrimSpace(raw))
	}
	if v.Priority == "" {
		v.Priority = model.PriorityMedium
	}
	if v.Steps == nil {
		v.Steps = []string{}
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	return v
}

// stripCodeFences removes a surrounding markdown code fence, with or without
// a language tag.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	idx := strings.Index(s, "```")
	if idx == -1 {
		return s
	}
	s = s[idx+3:]
	if nl := strings.Index(s, "\n"); nl != -1 && !strings.ContainsAny(s[:nl], "{}") {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end != -1 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// extractJSONObject returns the first balanced {...} span, restricted to
// scanning outside JSON string literals. Empty when no balanced object is
// found.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
