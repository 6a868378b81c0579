package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"legal-backend/internal/shared/telemetry"
)

// DefaultRetryDelay is the base wait between attempts; it doubles per retry.
const DefaultRetryDelay = 300 * time.Millisecond

type retrying struct {
	base     Client
	attempts int
	delay    time.Duration
}

// WithRetry retries transient failures up to retries extra times. With
// retries <= 0 the base client is returned unchanged.
func WithRetry(base Client, retries int, delay time.Duration) Client {
	if base == nil || retries <= 0 {
		return base
	}
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &retrying{base: base, attempts: retries, delay: delay}
}

func (r *retrying) Invoke(ctx context.Context, prompt string) (Response, error) {
	resp, err := r.base.Invoke(ctx, prompt)
	delay := r.delay
	for attempt := 1; attempt <= r.attempts && err != nil && ShouldRetry(err); attempt++ {
		telemetry.Info("llm.retry", map[string]any{
			"request_id": telemetry.RequestIDFromContext(ctx),
			"attempt":    attempt,
			"error":      err.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
		delay *= 2
		resp, err = r.base.Invoke(ctx, prompt)
	}
	return resp, err
}

// ShouldRetry reports whether err looks transient: timeouts, 5xx, throttling
// and dropped connections.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "http status 429") || strings.Contains(msg, "throttl") || strings.Contains(msg, "serviceunavailable") {
		return true
	}
	if strings.Contains(msg, "timeout") {
		return true
	}
	for _, s := range []string{"connection reset", "connection refused", "connection closed", "broken pipe", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
