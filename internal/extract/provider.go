// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider abstracts one language-model backend so tests can supply a mock.
// Generate sends a fully rendered prompt and returns the model's raw text.
// Per Strategy pattern: the Extractor never knows which SDK sits behind it.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var (
	// ErrQuotaExhausted means the provider's daily quota is used up. The
	// provider is disabled for the rest of the run.
	ErrQuotaExhausted = errors.New("provider quota exhausted")

	// ErrUnavailable means the provider cannot be called at all, usually
	// because no credentials are configured.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrMalformedOutput means the model answered with something that is not
	// a JSON array of candidates.
	ErrMalformedOutput = errors.New("malformed provider output")
)

// RateLimitError reports a transient rate limit. RetryAfter is the delay the
// provider asked for, or zero when it gave none.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }
