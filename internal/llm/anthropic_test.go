package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestAnthropicProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key", Model: "claude-haiku", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func anthropicReply(w http.ResponseWriter, stop string, texts ...string) {
	blocks := make([]map[string]any, len(texts))
	for i, text := range texts {
		blocks[i] = map[string]any{"type": "text", "text": text}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"content":     blocks,
		"model":       "claude-haiku-4-5-20251001",
		"stop_reason": stop,
		"usage":       map[string]any{"input_tokens": 50, "output_tokens": 30},
	})
}

func TestAnthropicProvider_SendsPromptAndJoinsText(t *testing.T) {
	var body struct {
		Model    string `json:"model"`
		System   []struct{ Text string }
		Messages []struct {
			Role    string
			Content []struct{ Text string }
		}
	}
	p := newTestAnthropicProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		anthropicReply(w, "end_turn", "Bonjour ! ", "Reprenons Pythagore.")
	})

	resp, err := p.Generate(context.Background(), Request{
		System:    "Tu es un tuteur.",
		Prompt:    "Explique-moi Pythagore.",
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Model != "claude-haiku-4-5-20251001" {
		t.Errorf("model sent = %q", body.Model)
	}
	if len(body.System) != 1 || body.System[0].Text != "Tu es un tuteur." {
		t.Errorf("system sent = %+v", body.System)
	}
	if len(body.Messages) != 1 || body.Messages[0].Role != "user" || body.Messages[0].Content[0].Text != "Explique-moi Pythagore." {
		t.Errorf("messages sent = %+v", body.Messages)
	}
	if resp.Text != "Bonjour ! Reprenons Pythagore." {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Usage != (Usage{InputTokens: 50, OutputTokens: 30, TotalTokens: 80}) {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if resp.StopReason != StopEnd || resp.Truncated() {
		t.Errorf("stop reason = %q", resp.StopReason)
	}
}

func TestAnthropicProvider_TruncatedReplyIsKept(t *testing.T) {
	p := newTestAnthropicProvider(t, func(w http.ResponseWriter, r *http.Request) {
		anthropicReply(w, "max_tokens", `{"question": "Calculer`)
	})

	resp, err := p.Generate(context.Background(), Request{Prompt: "exercice", MaxTokens: 8})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Truncated() || resp.Text != `{"question": "Calculer` {
		t.Fatalf("got %+v", resp)
	}
}

func TestAnthropicProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header string
		check  func(t *testing.T, err error)
	}{
		{"rate limit", http.StatusTooManyRequests, "3", func(t *testing.T, err error) {
			var rl *ErrRateLimit
			if !errors.As(err, &rl) || rl.RetryAfter != 3*time.Second {
				t.Fatalf("want ErrRateLimit after 3s, got %T (%v)", err, err)
			}
		}},
		{"server error", http.StatusInternalServerError, "", func(t *testing.T, err error) {
			var unavail *ErrProviderUnavailable
			if !errors.As(err, &unavail) {
				t.Fatalf("want ErrProviderUnavailable, got %T (%v)", err, err)
			}
		}},
		{"bad key", http.StatusUnauthorized, "", func(t *testing.T, err error) {
			var rejected *ErrRejected
			if !errors.As(err, &rejected) || rejected.Status != http.StatusUnauthorized {
				t.Fatalf("want ErrRejected 401, got %T (%v)", err, err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestAnthropicProvider(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"type":  "error",
					"error": map[string]any{"type": "api_error", "message": "nope"},
				})
			})
			_, err := p.Generate(context.Background(), Request{Prompt: "test", MaxTokens: 100})
			tt.check(t, err)
		})
	}
}

func TestAnthropicProvider_EmptyReply(t *testing.T) {
	p := newTestAnthropicProvider(t, func(w http.ResponseWriter, r *http.Request) {
		anthropicReply(w, "refusal")
	})

	_, err := p.Generate(context.Background(), Request{Prompt: "test", MaxTokens: 100})
	var empty *ErrEmptyReply
	if !errors.As(err, &empty) || empty.Reason != "refusal" {
		t.Fatalf("want ErrEmptyReply(refusal), got %T (%v)", err, err)
	}
}

func TestAnthropicModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"claude-sonnet", "claude-sonnet-4-5-20250929"},
		{"claude-haiku", "claude-haiku-4-5-20251001"},
		{"claude-sonnet-4-20250514", "claude-sonnet-4-20250514"},
	}
	for _, tt := range tests {
		if got := resolveModel(tt.input, anthropicModels); got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Error("expected error without API key")
	}
}
