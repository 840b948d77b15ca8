// Package extract asks language-model providers for candidate unit
// comparisons in article text. Providers are tried in a fixed order; each
// keeps its own call spacing and quota state for the lifetime of the
// Extractor.
package extract

import (
	"context"
	"log/slog"
	"text/template"
	"time"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// Extractor runs the provider fallback chain. Create one per run.
type Extractor struct {
	slots    []*slot
	tmpl     *template.Template
	maxChars int
	sleep    sleepFunc
	logger   *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPrompt replaces the built-in extraction prompt template.
func WithPrompt(t *template.Template) Option {
	return func(e *Extractor) {
		if t != nil {
			e.tmpl = t
		}
	}
}

// WithMaxChars sets how much article text is sent to the model. Zero or
// negative sends everything.
func WithMaxChars(n int) Option {
	return func(e *Extractor) { e.maxChars = n }
}

// WithSleep replaces the function used for call spacing and backoff. Tests
// use it to avoid real sleeps.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Extractor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// New creates an Extractor over backends in priority order.
func New(backends []Backend, opts ...Option) *Extractor {
	e := &Extractor{
		tmpl:     defaultPromptTmpl,
		maxChars: types.DefaultMaxArticleChars,
		sleep:    sleepContext,
		logger:   slog.Default(),
	}
	for _, b := range backends {
		e.slots = append(e.slots, newSlot(b))
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns the candidates found in text. units is the full list the
// model may reuse IDs from. The first provider to give a usable answer wins,
// even when that answer is empty; providers that give no answer fall through
// to the next. Extract never fails: with no answer at all it returns nil.
func (e *Extractor) Extract(ctx context.Context, text string, units []types.Unit) []types.Candidate {
	prompt, err := renderPrompt(e.tmpl, text, units, e.maxChars)
	if err != nil {
		e.logger.Error("rendering extraction prompt", "error", err)
		return nil
	}

	for i, s := range e.slots {
		if ctx.Err() != nil {
			return nil
		}
		if i > 0 && !s.isExhausted() {
			e.logger.Debug("falling back to next provider", "provider", s.name)
		}
		cands, answered := s.call(ctx, prompt, e.sleep, e.logger)
		if answered {
			e.logger.Debug("provider answered", "provider", s.name, "candidates", len(cands))
			return cands
		}
	}
	return nil
}

// AllExhausted reports whether every provider is disabled for the run.
func (e *Extractor) AllExhausted() bool {
	for _, s := range e.slots {
		if !s.isExhausted() {
			return false
		}
	}
	return true
}

// Exhausted returns the names of disabled providers, in priority order.
func (e *Extractor) Exhausted() []string {
	var names []string
	for _, s := range e.slots {
		if s.isExhausted() {
			names = append(names, s.name)
		}
	}
	return names
}
