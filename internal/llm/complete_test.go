package llm

import (
	"context"
	"errors"
	"testing"
)

func TestComplete_ReturnsRawText(t *testing.T) {
	mock := NewMockProvider(TextReply("```json\n{\"a\": 1}\n```"))

	got, err := Complete(context.Background(), mock, "prompt body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "```json\n{\"a\": 1}\n```" {
		t.Fatalf("unexpected text %q", got)
	}
	call := mock.Calls[0]
	if call.Prompt != "prompt body" || call.System != "" {
		t.Fatalf("request = %+v", call)
	}
	if call.MaxTokens != 4096 || call.Temperature != 0.7 {
		t.Fatalf("default options not applied: %+v", call)
	}
}

func TestComplete_KeepsTruncatedText(t *testing.T) {
	mock := NewMockProvider(MockResponse{Text: `{"resume_court": "La séance`, StopReason: StopMaxTokens})

	got, err := Complete(context.Background(), mock, "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"resume_court": "La séance` {
		t.Fatalf("got %q", got)
	}
}

func TestComplete_PropagatesError(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}})

	_, err := Complete(context.Background(), mock, "p")
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestCompleteWith_Options(t *testing.T) {
	mock := NewMockProvider(TextReply("ok"))

	_, err := CompleteWith(context.Background(), mock, "p", CompletionOptions{MaxTokens: 99, Temperature: 0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.Calls[0].MaxTokens != 99 || mock.Calls[0].Temperature != 0.1 {
		t.Fatalf("options not forwarded: %+v", mock.Calls[0])
	}
}
