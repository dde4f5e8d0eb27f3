package llm

import "context"

// CompletionOptions tune a single-prompt completion.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float64
}

// DefaultCompletionOptions leaves room for a five-question diagnostic or a
// full session summary in one reply.
func DefaultCompletionOptions() CompletionOptions {
	return CompletionOptions{MaxTokens: 4096, Temperature: 0.7}
}

// Complete sends prompt and returns the reply text. The text is untrusted;
// callers decode it. A reply cut at the token limit is returned as is.
func Complete(ctx context.Context, p Provider, prompt string) (string, error) {
	return CompleteWith(ctx, p, prompt, DefaultCompletionOptions())
}

// CompleteWith is Complete with explicit generation options.
func CompleteWith(ctx context.Context, p Provider, prompt string, opts CompletionOptions) (string, error) {
	resp, err := p.Generate(ctx, Request{
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
