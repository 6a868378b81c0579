package llm

import (
	"context"
	"errors"
	"strings"
)

// Client sends a prompt to a generative model and returns its raw output.
type Client interface {
	Invoke(ctx context.Context, prompt string) (Response, error)
}

// Config is the fixed model configuration shared by providers.
type Config struct {
	Model     string
	MaxTokens int
}

// Response is the raw model output. Providers may split text across segments.
type Response struct {
	Segments   []string
	Model      string
	StopReason string
}

// Text joins all segments in order.
func (r Response) Text() string {
	return strings.Join(r.Segments, "")
}

// ErrNotConfigured is returned when no model provider is wired.
var ErrNotConfigured = errors.New("llm provider not configured")

// Unconfigured fails every call with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) Invoke(ctx context.Context, prompt string) (Response, error) {
	return Response{}, ErrNotConfigured
}
