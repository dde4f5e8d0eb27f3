package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestMockProvider_ReplaysInOrder(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Text: "un", Usage: newUsage(10, 5)},
		MockResponse{Err: &ErrRateLimit{Err: errors.New("429")}},
	)
	mock.AddResponse(TextReply("trois"))

	resp, err := mock.Generate(context.Background(), Request{System: "sys", Prompt: "first"})
	if err != nil || resp.Text != "un" || resp.Usage.TotalTokens != 15 || resp.StopReason != StopEnd {
		t.Fatalf("first = %+v, %v", resp, err)
	}
	var rl *ErrRateLimit
	if _, err := mock.Generate(context.Background(), Request{Prompt: "second"}); !errors.As(err, &rl) {
		t.Fatalf("second: want ErrRateLimit, got %v", err)
	}
	if resp, _ := mock.Generate(context.Background(), Request{Prompt: "third"}); resp.Text != "trois" {
		t.Fatalf("third = %+v", resp)
	}
	var unavail *ErrProviderUnavailable
	if _, err := mock.Generate(context.Background(), Request{}); !errors.As(err, &unavail) {
		t.Fatalf("drained queue: want ErrProviderUnavailable, got %v", err)
	}

	if mock.CallCount() != 4 || mock.Calls[0].System != "sys" || mock.LastPrompt() != "" {
		t.Fatalf("calls = %+v", mock.Calls)
	}
	if mock.ModelID() != "mock" {
		t.Fatalf("model = %q", mock.ModelID())
	}
}

func TestStatusError(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		status int
		want   string
	}{
		{0, "unavailable"},
		{http.StatusRequestTimeout, "unavailable"},
		{http.StatusBadGateway, "unavailable"},
		{http.StatusTooManyRequests, "rate"},
		{http.StatusUnauthorized, "rejected"},
		{http.StatusUnprocessableEntity, "rejected"},
	}
	for _, tt := range tests {
		err := statusError(tt.status, 0, cause)
		var got string
		switch err.(type) {
		case *ErrProviderUnavailable:
			got = "unavailable"
		case *ErrRateLimit:
			got = "rate"
		case *ErrRejected:
			got = "rejected"
		}
		if got != tt.want {
			t.Errorf("status %d: got %T, want %s", tt.status, err, tt.want)
		}
		if !errors.Is(err, cause) {
			t.Errorf("status %d: cause not wrapped", tt.status)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	h := http.Header{}
	if retryAfter(nil) != 0 || retryAfter(h) != 0 {
		t.Fatal("missing header should be zero")
	}
	h.Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
	if retryAfter(h) != 0 {
		t.Fatal("dates are not parsed")
	}
	h.Set("Retry-After", " 12 ")
	if retryAfter(h) != 12*time.Second {
		t.Fatalf("got %s", retryAfter(h))
	}
}

func TestErrorMessages(t *testing.T) {
	if got := (&ErrEmptyReply{Reason: "SAFETY"}).Error(); got != "empty LLM reply (SAFETY)" {
		t.Errorf("got %q", got)
	}
	if got := (&ErrRateLimit{RetryAfter: 2 * time.Second, Err: errors.New("slow down")}).Error(); got != "rate limited, retry after 2s: slow down" {
		t.Errorf("got %q", got)
	}
	if got := (&ErrRejected{Status: 401, Err: errors.New("bad key")}).Error(); got != "LLM request rejected (401): bad key" {
		t.Errorf("got %q", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	withProvider := func(name string, mutate func(*Config)) Config {
		cfg := DefaultConfig()
		cfg.Provider = name
		if mutate != nil {
			mutate(&cfg)
		}
		return cfg
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"gemini without key", withProvider(ProviderGemini, nil), true},
		{"gemini with key", withProvider(ProviderGemini, func(c *Config) { c.Gemini.APIKey = "k" }), false},
		{"anthropic without key", withProvider(ProviderAnthropic, nil), true},
		{"anthropic with key", withProvider(ProviderAnthropic, func(c *Config) { c.Anthropic.APIKey = "sk-test" }), false},
		{"openai with key", withProvider(ProviderOpenAI, func(c *Config) { c.OpenAI.APIKey = "sk-test" }), false},
		{"openrouter without key", withProvider(ProviderOpenRouter, nil), true},
		{"mock needs no key", withProvider(ProviderMock, nil), false},
		{"unknown provider", withProvider("unknown", nil), true},
		{"zero retry attempts", withProvider(ProviderMock, func(c *Config) { c.Retry.MaxAttempts = 0 }), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GRASSS_LLM_PROVIDER", "openai")
	t.Setenv("GRASSS_OPENAI_API_KEY", "sk-env")
	t.Setenv("GRASSS_OPENAI_MODEL", "gpt-4.1-mini")
	t.Setenv("GRASSS_LLM_TIMEOUT", "5s")

	cfg := ConfigFromEnv()
	if cfg.Provider != ProviderOpenAI {
		t.Fatalf("provider = %q", cfg.Provider)
	}
	if cfg.OpenAI.APIKey != "sk-env" || cfg.OpenAI.Model != "gpt-4.1-mini" {
		t.Fatalf("openai config not applied: %+v", cfg.OpenAI)
	}
	if cfg.Timeout.String() != "5s" {
		t.Fatalf("timeout = %s", cfg.Timeout)
	}
	if cfg.Gemini.Model != "gemini-flash" {
		t.Fatalf("untouched defaults must survive, got %q", cfg.Gemini.Model)
	}
}

func TestDiscoverConfig_PrefersGemini(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g")
	t.Setenv("OPENAI_API_KEY", "o")

	cfg, ok := DiscoverConfig()
	if !ok {
		t.Fatal("expected a discovered config")
	}
	if cfg.Provider != ProviderGemini || cfg.Gemini.APIKey != "g" {
		t.Fatalf("unexpected discovery: %s", cfg.Provider)
	}
}

func TestLookupCost(t *testing.T) {
	if c := LookupCost("gemini-2.5-flash"); c == nil || c.InputPerMTok != 0.3 {
		t.Fatalf("gemini-2.5-flash cost = %+v", c)
	}
	if c := LookupCost("google/gemini-2.5-flash"); c == nil {
		t.Fatal("vendor-qualified ids should resolve")
	}
	if c := LookupCost("nope"); c != nil {
		t.Fatalf("unknown model should have no cost, got %+v", c)
	}
	cost := ModelCost{InputPerMTok: 1, OutputPerMTok: 2}
	if got := cost.Cost(1_000_000, 500_000); got != 2 {
		t.Fatalf("cost = %v, want 2", got)
	}
}
