// Package llm adapts text-generation backends (Gemini, OpenAI, Anthropic,
// OpenRouter) behind a single Provider interface, with retry and event
// recording middleware. Backends take one rendered prompt and return the
// reply text; decoding the text is the caller's job.
package llm

import "context"

// Provider generates a reply for a prompt.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request is one prompt sent as a single user turn.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the model's reply text with accounting.
type Response struct {
	Text  string
	Usage Usage

	// Model is the model that actually served the request.
	Model string

	StopReason StopReason
}

// Truncated reports whether the reply stopped at the token limit. The
// partial text is still returned.
func (r *Response) Truncated() bool {
	return r.StopReason == StopMaxTokens
}

// StopReason is a backend finish reason normalized across providers.
type StopReason string

const (
	StopEnd       StopReason = "end"
	StopMaxTokens StopReason = "max_tokens"
	StopFiltered  StopReason = "filtered"
)

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

func newUsage(in, out int) Usage {
	return Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}
