// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package run coordinates one scraper run: it walks feeds or a single URL,
// keeps the seen-URL set and the recency filter, stops early once every
// extraction provider is exhausted, and hands each article to the
// admission pipeline.
package run

import (
	"context"
	"log/slog"
	"time"

	"github.com/pdiddy/anything-but-metric/internal/admit"
	"github.com/pdiddy/anything-but-metric/internal/feed"
	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// Extractor is the candidate extractor as seen by the coordinator.
type Extractor interface {
	admit.Extractor

	// AllExhausted reports whether no provider can answer for the rest of
	// the run.
	AllExhausted() bool

	// Exhausted lists providers disabled so far.
	Exhausted() []string
}

// FeedReader parses one syndication feed.
type FeedReader interface {
	Parse(ctx context.Context, feedURL string) (feed.Feed, error)
}

// Config holds the per-run feed walking limits.
type Config struct {
	// MaxEntries caps entries taken from each feed. Zero means no cap.
	MaxEntries int

	// MaxAge skips entries published longer ago than this. Zero disables
	// the filter.
	MaxAge time.Duration

	// Now is the clock used by the recency filter. Nil uses time.Now.
	Now func() time.Time
}

// FeedSummary reports what one feed contributed.
type FeedSummary struct {
	URL       string `yaml:"url"`
	Entries   int    `yaml:"entries"`
	Processed int    `yaml:"processed"`
	Old       int    `yaml:"skipped_old"`
	Seen      int    `yaml:"skipped_seen"`
	Edges     int    `yaml:"edges"`
	Units     int    `yaml:"units"`
	Direct    bool   `yaml:"direct,omitempty"`
	Error     string `yaml:"error,omitempty"`
}

// Runner processes articles against one run state. Not safe for concurrent
// use.
type Runner struct {
	pipeline  *admit.Pipeline
	extractor Extractor
	feeds     FeedReader
	state     *admit.State
	seen      map[string]struct{}
	cfg       Config
	logger    *slog.Logger

	summaries []FeedSummary
	halted    bool
}

// NewRunner creates a Runner. Every source URL of a persisted edge starts
// out as seen.
func NewRunner(pipeline *admit.Pipeline, extractor Extractor, feeds FeedReader, st *admit.State, persisted []types.Edge, cfg Config, logger *slog.Logger) *Runner {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]struct{}, len(persisted))
	for _, e := range persisted {
		seen[e.SourceURL] = struct{}{}
	}
	return &Runner{
		pipeline:  pipeline,
		extractor: extractor,
		feeds:     feeds,
		state:     st,
		seen:      seen,
		cfg:       cfg,
		logger:    logger,
	}
}

// State returns the run state.
func (r *Runner) State() *admit.State { return r.state }

// Feeds returns the per-feed summaries collected so far.
func (r *Runner) Feeds() []FeedSummary {
	return append([]FeedSummary(nil), r.summaries...)
}

// RunURL processes a single article without consulting the seen set. text,
// when non-empty, is used instead of fetching.
func (r *Runner) RunURL(ctx context.Context, url, text string) admit.Result {
	r.logger.Info("single-url mode", "url", url)
	r.seen[url] = struct{}{}
	res := r.pipeline.Process(ctx, r.state, types.Article{URL: url, Text: text})
	r.logger.Info("article done", "edges", len(res.Edges), "units", len(res.Units))
	return res
}

// RunFeeds walks feedURLs in order. It stops before the next feed or entry
// once every provider is exhausted or ctx is done.
func (r *Runner) RunFeeds(ctx context.Context, feedURLs []string) {
	r.logger.Info("processing feeds", "count", len(feedURLs))
	for i, u := range feedURLs {
		if r.stopped(ctx) {
			break
		}
		log := r.logger.With("feed", u)
		log.Info("feed", "n", i+1, "of", len(feedURLs))

		fd, err := r.feeds.Parse(ctx, u)
		if err != nil {
			log.Warn("feed skipped", "error", err)
			r.summaries = append(r.summaries, FeedSummary{URL: u, Error: err.Error()})
			continue
		}

		if len(fd.Entries) == 0 {
			if fd.Recognised {
				log.Info("empty feed")
				r.summaries = append(r.summaries, FeedSummary{URL: u})
				continue
			}
			r.summaries = append(r.summaries, r.direct(ctx, u, log))
			continue
		}

		r.summaries = append(r.summaries, r.entries(ctx, u, fd.Entries, log))
	}
}

// direct treats a feed URL whose content is not a feed as an article URL.
func (r *Runner) direct(ctx context.Context, u string, log *slog.Logger) FeedSummary {
	sum := FeedSummary{URL: u, Direct: true}
	log.Debug("no feed format detected, trying as direct article")
	if r.markSeen(u) {
		log.Info("already seen")
		sum.Seen = 1
		return sum
	}
	res := r.pipeline.Process(ctx, r.state, types.Article{URL: u})
	sum.Processed = 1
	sum.Edges = len(res.Edges)
	sum.Units = len(res.Units)
	log.Info("direct article", "edges", sum.Edges, "units", sum.Units)
	return sum
}

func (r *Runner) entries(ctx context.Context, u string, entries []types.FeedEntry, log *slog.Logger) FeedSummary {
	if r.cfg.MaxEntries > 0 && len(entries) > r.cfg.MaxEntries {
		entries = entries[:r.cfg.MaxEntries]
	}
	sum := FeedSummary{URL: u, Entries: len(entries)}

	for _, entry := range entries {
		if r.stopped(ctx) {
			break
		}
		if entry.Link == "" {
			continue
		}
		if _, ok := r.seen[entry.Link]; ok {
			sum.Seen++
			continue
		}
		if !r.recent(entry) {
			log.Debug("skipping old entry", "url", entry.Link)
			sum.Old++
			continue
		}

		r.markSeen(entry.Link)
		sum.Processed++
		res := r.pipeline.Process(ctx, r.state, types.Article{URL: entry.Link, Summary: entry.Summary})
		sum.Edges += len(res.Edges)
		sum.Units += len(res.Units)
	}

	log.Info("feed done",
		"entries", sum.Entries,
		"processed", sum.Processed,
		"old", sum.Old,
		"seen", sum.Seen,
		"edges", sum.Edges,
		"units", sum.Units)
	return sum
}

// markSeen adds u to the seen set and reports whether it was already there.
func (r *Runner) markSeen(u string) bool {
	if _, ok := r.seen[u]; ok {
		return true
	}
	r.seen[u] = struct{}{}
	return false
}

// recent reports whether entry falls inside the age window. Undated entries
// always do.
func (r *Runner) recent(entry types.FeedEntry) bool {
	if r.cfg.MaxAge <= 0 || entry.Published == nil {
		return true
	}
	return r.cfg.Now().Sub(*entry.Published) <= r.cfg.MaxAge
}

// stopped reports whether the run should end. The first positive answer is
// logged and remembered.
func (r *Runner) stopped(ctx context.Context) bool {
	if r.halted {
		return true
	}
	switch {
	case ctx.Err() != nil:
		r.logger.Warn("run cancelled", "error", ctx.Err())
	case r.extractor != nil && r.extractor.AllExhausted():
		r.logger.Warn("all extraction providers exhausted, stopping early")
	default:
		return false
	}
	r.halted = true
	return true
}
