// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/anything-but-metric/internal/extract"
	"github.com/pdiddy/anything-but-metric/internal/feed"
	"github.com/pdiddy/anything-but-metric/internal/fetch"
	"github.com/pdiddy/anything-but-metric/internal/run"
	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// llmTimeout bounds a single provider request.
const llmTimeout = 2 * time.Minute

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape feeds (or one article) for new comparisons",
	Long: `Scrape walks every feed listed in the feeds file, skips entries that are
already in edges.json or older than --max-age, and extracts comparisons from
the rest. With --url it processes that one article instead, ignoring whether
it has been seen before.

New units and edges are written back to the data directory. The last line on
stdout is always NEW_EDGES=<n>, and the exit status is 0 even when the run
fails, in which case n is 0.`,
	RunE: runScrape,
}

func init() {
	f := scrapeCmd.Flags()
	f.String("url", "", "process a single article URL instead of the feeds")
	f.String("text", "", "article text to use instead of fetching --url ('-' reads stdin)")
	f.String("dump-text-to", "", "in --url mode, write the fetched article text to this file first")
	f.String("feeds-file", "", "file listing feed URLs, one per line (default feeds.txt)")
	f.Int("max-feeds", 0, "process at most this many feeds (0 = all)")
	f.Int("max-entries", 0, "process at most this many entries per feed (0 = all)")
	f.Duration("max-age", types.DefaultMaxAge, "skip feed entries older than this (0 = no filter)")
	f.Bool("filter-both-new", false, "reject edges whose units are both new this run")
	f.String("report", "", "write a YAML run report to this file")

	for key, flag := range map[string]string{
		"feeds_file":      "feeds-file",
		"max_feeds":       "max-feeds",
		"max_entries":     "max-entries",
		"max_age":         "max-age",
		"filter_both_new": "filter-both-new",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(scrapeCmd)
}

// runReport is the YAML document written by --report.
type runReport struct {
	RunID       string    `yaml:"run_id"`
	Started     time.Time `yaml:"started"`
	Finished    time.Time `yaml:"finished"`
	run.Summary `yaml:",inline"`
}

func runScrape(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	verbose, _ := cmd.Flags().GetBool("verbose")
	logFile, _ := cmd.Flags().GetString("log-file")
	reportPath, _ := cmd.Flags().GetString("report")

	// Single-article runs are interactive, so always show full detail.
	logger, closer := newLogger(verbose || url != "", logFile)
	defer closer.Close()

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	started := time.Now()

	sum, err := scrape(cmd, url, logger)
	if err != nil {
		logger.Error("run failed", "error", err)
		sum = run.Summary{Error: err.Error()}
	}

	if reportPath != "" {
		rep := runReport{RunID: runID, Started: started, Finished: time.Now(), Summary: sum}
		if err := writeReport(reportPath, rep); err != nil {
			logger.Warn("writing report", "path", reportPath, "error", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "NEW_EDGES=%d\n", sum.NewEdges)
	return nil
}

func scrape(cmd *cobra.Command, url string, logger *slog.Logger) (run.Summary, error) {
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return run.Summary{}, err
	}

	job, err := jobFromFlags(cmd, url, cfg)
	if err != nil {
		return run.Summary{}, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ex, closer, err := extract.FromConfig(ctx, cfg.Extraction, &http.Client{Timeout: llmTimeout}, extract.WithLogger(logger))
	if err != nil {
		return run.Summary{}, err
	}
	defer closer.Close()

	if ex.AllExhausted() {
		logger.Warn("no extraction provider has an API key", "primary", cfg.Extraction.Primary.Name, "secondary", cfg.Extraction.Secondary.Name)
	}

	deps := run.Deps{
		Extractor: ex,
		Fetcher:   fetch.New(cfg.Fetch, logger),
		Feeds:     feed.NewReader(cfg.Fetch.HTTPConfig),
	}
	return run.Execute(ctx, cfg, job, deps, logger), nil
}

func jobFromFlags(cmd *cobra.Command, url string, cfg types.ScraperConfig) (run.Job, error) {
	text, _ := cmd.Flags().GetString("text")
	dumpTo, _ := cmd.Flags().GetString("dump-text-to")

	if url == "" {
		if text != "" {
			return run.Job{}, errors.New("--text requires --url")
		}
		feeds, err := feed.LoadList(cfg.FeedsFile)
		if err != nil {
			return run.Job{}, err
		}
		return run.Job{FeedURLs: feeds}, nil
	}

	if text == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return run.Job{}, fmt.Errorf("reading article text from stdin: %w", err)
		}
		text = string(data)
	}
	return run.Job{URL: url, Text: text, DumpTextTo: dumpTo}, nil
}

func writeReport(path string, rep runReport) error {
	data, err := yaml.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
