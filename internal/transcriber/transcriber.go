// Package transcriber turns dictation audio into a structured report via
// an external AI provider.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrService reports a provider-side failure (timeout, unavailable, auth).
var ErrService = errors.New("transcription service failure")

// ErrValidation reports a response that did not parse into the expected
// {Reading, Conclusion} shape.
var ErrValidation = errors.New("invalid transcription response")

// Result is the structured report produced from one dictation.
type Result struct {
	Reading    string `json:"Reading"`
	Conclusion string `json:"Conclusion"`
	Raw        string `json:"-"` // verbatim model output, for PRINT_GEMINI_OUTPUT
}

type Transcriber interface {
	// Transcribe uploads the audio and returns the structured report.
	// Failures are typed: errors.Is(err, ErrService) for provider
	// failures, errors.Is(err, ErrValidation) for malformed responses.
	Transcribe(ctx context.Context, dcmPath, audioPath string) (*Result, error)
}

// Config holds provider selection and credentials.
type Config struct {
	Provider string
	APIKey   string
	Model    string
}

// New builds the adapter for the configured provider.
func New(ctx context.Context, cfg Config, log *logrus.Entry) (Transcriber, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini API key required")
		}
		return NewGeminiAdapter(ctx, cfg, log)
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		return NewOpenAIAdapter(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s", cfg.Provider)
	}
}

// WithTimeout bounds each Transcribe call. Zero d returns t unchanged.
func WithTimeout(t Transcriber, d time.Duration) Transcriber {
	if d <= 0 {
		return t
	}
	return &timeoutTranscriber{inner: t, timeout: d}
}

type timeoutTranscriber struct {
	inner   Transcriber
	timeout time.Duration
}

func (t *timeoutTranscriber) Transcribe(ctx context.Context, dcmPath, audioPath string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Transcribe(ctx, dcmPath, audioPath)
}
