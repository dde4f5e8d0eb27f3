package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryProvider retries failed generations with exponential backoff and
// bounds the whole call, retries included, by a timeout.
type RetryProvider struct {
	inner   Provider
	cfg     RetryConfig
	timeout time.Duration
	logger  *zap.Logger
}

// WithRetry wraps p. A zero timeout leaves the caller's deadline alone.
func WithRetry(p Provider, cfg RetryConfig, timeout time.Duration, logger *zap.Logger) *RetryProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryProvider{inner: p, cfg: cfg, timeout: timeout, logger: logger.Named("llm")}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	emptySeen := false
	for attempt := 1; ; attempt++ {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if attempt >= r.cfg.MaxAttempts || !retryable(err, &emptySeen) {
			return nil, err
		}

		wait := r.backoff(attempt, err)
		r.logger.Debug("retrying generation",
			zap.String("purpose", PurposeFrom(ctx)),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

// retryable reports whether err is worth another attempt. An empty reply
// is retried once per call.
func retryable(err error, emptySeen *bool) bool {
	var (
		rejected *ErrRejected
		empty    *ErrEmptyReply
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.As(err, &rejected):
		return false
	case errors.As(err, &empty):
		if *emptySeen {
			return false
		}
		*emptySeen = true
	}
	return true
}

// backoff is the wait after the given 1-based attempt: the backend's
// Retry-After when known, else InitialWait·Multiplier^(attempt-1) capped at
// MaxWait, with ±20% jitter.
func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	wait := float64(r.cfg.InitialWait) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	wait = math.Min(wait, float64(r.cfg.MaxWait))
	wait *= 0.8 + 0.4*rand.Float64()
	return time.Duration(wait)
}
