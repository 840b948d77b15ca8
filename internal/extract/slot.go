// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// Backend pairs a provider with its call-spacing and backoff policy.
// A nil Provider marks the backend as permanently unavailable.
type Backend struct {
	Name       string
	Provider   Provider
	RPM        int
	RetryAfter time.Duration
}

// slot is the run-scoped state of one backend: its limiter and whether it has
// been disabled. The mutex also keeps at most one call in flight per provider.
type slot struct {
	name       string
	provider   Provider
	limiter    *rate.Limiter
	retryAfter time.Duration

	mu        sync.Mutex
	exhausted bool
}

func newSlot(b Backend) *slot {
	limit := rate.Inf
	if b.RPM > 0 {
		limit = rate.Every(time.Minute / time.Duration(b.RPM))
	}
	retry := b.RetryAfter
	if retry <= 0 {
		retry = types.DefaultRetryAfter
	}
	return &slot{
		name:       b.Name,
		provider:   b.Provider,
		limiter:    rate.NewLimiter(limit, 1),
		retryAfter: retry,
		exhausted:  b.Provider == nil,
	}
}

func (s *slot) isExhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// call returns the parsed candidates and answered=true when the provider gave
// a usable answer, including a genuine empty one. answered=false means the
// caller should try the next provider.
func (s *slot) call(ctx context.Context, prompt string, sleep sleepFunc, logger *slog.Logger) (cands []types.Candidate, answered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exhausted {
		return nil, false
	}

	if r := s.limiter.Reserve(); r.OK() {
		if d := r.Delay(); d > 0 {
			logger.Debug("rate limiting provider", "provider", s.name, "wait", d)
			if err := sleep(ctx, d); err != nil {
				r.Cancel()
				return nil, false
			}
		}
	}

	raw, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		s.handleError(ctx, err, sleep, logger)
		return nil, false
	}

	cands, err = ParseCandidates(raw)
	if err != nil {
		logger.Warn("unexpected provider output", "provider", s.name, "error", err, "output", truncate(raw, 200))
		return nil, false
	}
	return cands, true
}

func (s *slot) handleError(ctx context.Context, err error, sleep sleepFunc, logger *slog.Logger) {
	var rle *RateLimitError
	switch {
	case errors.Is(err, ErrQuotaExhausted):
		logger.Warn("provider daily quota exhausted, disabling for this run", "provider", s.name)
		s.exhausted = true
	case errors.Is(err, ErrUnavailable):
		logger.Warn("provider unavailable, disabling for this run", "provider", s.name, "error", err)
		s.exhausted = true
	case errors.As(err, &rle):
		d := rle.RetryAfter
		if d <= 0 {
			d = s.retryAfter
		}
		logger.Debug("provider rate limited", "provider", s.name, "backoff", d)
		_ = sleep(ctx, d)
	case ctx.Err() != nil:
		logger.Debug("provider call cancelled", "provider", s.name, "error", err)
	default:
		logger.Warn("provider error", "provider", s.name, "error", err)
	}
}

type sleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
