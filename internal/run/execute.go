// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/pdiddy/anything-but-metric/internal/admit"
	"github.com/pdiddy/anything-but-metric/internal/dataset"
	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// Job selects what a run processes. A non-empty URL selects single-URL mode
// and FeedURLs is ignored.
type Job struct {
	URL  string
	Text string

	// DumpTextTo, in single-URL mode without Text, receives the fetched
	// article text before processing.
	DumpTextTo string

	FeedURLs []string
}

// Deps are the collaborators a run needs.
type Deps struct {
	Extractor Extractor
	Fetcher   admit.Fetcher
	Feeds     FeedReader

	// Now is the run clock. Nil uses time.Now.
	Now func() time.Time
}

// Summary is the outcome of Execute.
type Summary struct {
	Mode      string        `yaml:"mode"`
	NewEdges  int           `yaml:"new_edges"`
	NewUnits  int           `yaml:"new_units"`
	Feeds     []FeedSummary `yaml:"feeds,omitempty"`
	Exhausted []string      `yaml:"exhausted_providers,omitempty"`
	Edges     []types.Edge  `yaml:"edges,omitempty"`
	Units     []types.Unit  `yaml:"units,omitempty"`
	Error     string        `yaml:"error,omitempty"`
}

// Execute loads the datasets under cfg.DataDir, runs job and saves both
// collections when anything was added. It never fails: any error or panic
// is logged and reported as a summary with zero new edges.
func Execute(ctx context.Context, cfg types.ScraperConfig, job Job, deps Deps, logger *slog.Logger) (sum Summary) {
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("unhandled failure", "panic", r, "stack", string(debug.Stack()))
			sum = Summary{Mode: mode(job), Error: fmt.Sprint(r)}
		}
	}()

	sum, err := execute(ctx, cfg, job, deps, logger)
	if err != nil {
		logger.Error("run failed", "error", err)
		return Summary{Mode: mode(job), Error: err.Error()}
	}
	return sum
}

func execute(ctx context.Context, cfg types.ScraperConfig, job Job, deps Deps, logger *slog.Logger) (Summary, error) {
	if deps.Extractor == nil {
		return Summary{}, errors.New("no extractor configured")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	store, err := dataset.Open(cfg.DataDir)
	if err != nil {
		return Summary{}, err
	}
	defer store.Close()

	units, err := store.LoadUnits()
	if err != nil {
		return Summary{}, err
	}
	edges, err := store.LoadEdges()
	if err != nil {
		return Summary{}, err
	}
	logger.Info("loaded datasets", "units", units.Len(), "edges", edges.Len())

	persisted := edges.All()
	st := admit.NewState(units.All(), persisted, logger)
	pipeline := admit.New(deps.Extractor, deps.Fetcher, admit.Config{
		MaxEdgesPerArticle: cfg.MaxEdgesPerArticle,
		FilterBothNew:      cfg.FilterBothNew,
		Clock:              deps.Now,
	}, logger)
	runner := NewRunner(pipeline, deps.Extractor, deps.Feeds, st, persisted, Config{
		MaxEntries: cfg.MaxEntries,
		MaxAge:     cfg.MaxAge,
		Now:        deps.Now,
	}, logger)

	if job.URL != "" {
		text := job.Text
		if strings.TrimSpace(text) == "" && job.DumpTextTo != "" {
			text = dumpText(ctx, deps.Fetcher, job.URL, job.DumpTextTo, logger)
		}
		runner.RunURL(ctx, job.URL, text)
	} else {
		feedURLs := job.FeedURLs
		if cfg.MaxFeeds > 0 && len(feedURLs) > cfg.MaxFeeds {
			feedURLs = feedURLs[:cfg.MaxFeeds]
		}
		if deps.Feeds == nil {
			return Summary{}, errors.New("no feed reader configured")
		}
		runner.RunFeeds(ctx, feedURLs)
	}

	sum := Summary{
		Mode:      mode(job),
		Feeds:     runner.Feeds(),
		Exhausted: deps.Extractor.Exhausted(),
		Edges:     st.NewEdges(),
		Units:     st.NewUnits(),
	}
	sum.NewEdges = len(sum.Edges)
	sum.NewUnits = len(sum.Units)

	for _, name := range sum.Exhausted {
		logger.Warn("provider quota exhausted", "provider", name)
	}
	logger.Info("done", "edges", sum.NewEdges, "units", sum.NewUnits)

	if sum.NewEdges == 0 && sum.NewUnits == 0 {
		return sum, nil
	}
	units.Append(sum.Units...)
	edges.Append(sum.Edges...)
	if err := units.Save(); err != nil {
		return Summary{}, fmt.Errorf("saving units: %w", err)
	}
	if err := edges.Save(); err != nil {
		return Summary{}, fmt.Errorf("saving edges: %w", err)
	}
	logger.Info("datasets saved", "dir", store.Dir())
	return sum, nil
}

// dumpText fetches the article once and writes it to path. The fetched
// text is returned so the article is not fetched again.
func dumpText(ctx context.Context, f admit.Fetcher, url, path string, logger *slog.Logger) string {
	if f == nil {
		logger.Warn("no fetcher configured, dump file not written")
		return ""
	}
	text, err := f.Fetch(ctx, url)
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Warn("could not fetch article text, dump file not written", "error", err)
		return ""
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		logger.Warn("writing dump file", "path", path, "error", err)
		return text
	}
	logger.Info("wrote article text", "chars", len(text), "path", path)
	return text
}

func mode(job Job) string {
	if job.URL != "" {
		return "url"
	}
	return "feeds"
}
