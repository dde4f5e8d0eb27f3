package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/grasss/internal/store"
)

type purposeKey struct{}

// WithPurpose labels the generations made under ctx, e.g. "diagnostic".
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the label set by WithPurpose, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// EventRecorder persists one row per generation call.
type EventRecorder interface {
	AppendLLMRequest(ctx context.Context, data store.LLMRequestEventData) error
}

// LoggingProvider records every backend call as an event and logs its
// outcome.
type LoggingProvider struct {
	inner    Provider
	provider string
	recorder EventRecorder
	logger   *zap.Logger
}

// WithLogging wraps p. Recording failures are logged and never fail the
// generation.
func WithLogging(p Provider, providerName string, recorder EventRecorder, logger *zap.Logger) *LoggingProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingProvider{inner: p, provider: providerName, recorder: recorder, logger: logger.Named("llm")}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	data := store.LLMRequestEventData{
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     PurposeFrom(ctx),
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: requestText(req),
	}
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.ResponseBody = resp.Text
		if resp.Model != "" {
			data.Model = resp.Model
		}
	}

	fields := []zap.Field{
		zap.String("purpose", data.Purpose),
		zap.String("model", data.Model),
		zap.Int64("latency_ms", data.LatencyMs),
	}
	switch {
	case err != nil:
		data.ErrorMessage = err.Error()
		l.logger.Warn("generation failed", append(fields, zap.Error(err))...)
	case resp.Truncated():
		l.logger.Warn("reply cut at token limit", append(fields, zap.Int("output_tokens", data.OutputTokens))...)
	default:
		l.logger.Debug("generation done", append(fields,
			zap.Int("input_tokens", data.InputTokens),
			zap.Int("output_tokens", data.OutputTokens))...)
	}

	// A cancelled call is still recorded.
	if recErr := l.recorder.AppendLLMRequest(context.WithoutCancel(ctx), data); recErr != nil {
		l.logger.Warn("failed to record LLM request event", zap.Error(recErr))
	}
	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// requestText is the stored form of a request: the prompt, preceded by the
// system text when there is one.
func requestText(req Request) string {
	if req.System == "" {
		return req.Prompt
	}
	return "[system]\n" + req.System + "\n\n[user]\n" + req.Prompt
}
