// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch turns an article URL into plain text. It first downloads the
// page and extracts its paragraphs locally; when that yields too little text
// it asks a reader service to render the page instead.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/anything-but-metric/internal/httputil"
	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// ErrNoContent means neither strategy produced enough text.
var ErrNoContent = errors.New("no article content")

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 5 << 20

// readerRetries is the retry budget for reader-service 429/503 responses.
const readerRetries = 2

// Fetcher downloads article text. The zero value is not usable; call New.
type Fetcher struct {
	cfg          types.FetchConfig
	client       *http.Client
	readerClient *http.Client
	logger       *slog.Logger
}

// New returns a Fetcher for cfg. Zero timeouts and limits fall back to the
// package defaults.
func New(cfg types.FetchConfig, logger *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = types.DefaultFetchTimeout
	}
	if cfg.ReaderTimeout <= 0 {
		cfg.ReaderTimeout = types.DefaultReaderTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = types.DefaultUserAgent
	}
	if cfg.MinChars < 0 {
		cfg.MinChars = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		cfg:          cfg,
		client:       &http.Client{Timeout: cfg.Timeout},
		readerClient: &http.Client{Timeout: cfg.ReaderTimeout},
		logger:       logger,
	}
}

// Fetch returns the article text at url, or ErrNoContent when neither the
// direct download nor the reader service yields more than MinChars
// characters.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	text, err := f.direct(ctx, url)
	if err == nil && f.enough(text) {
		f.logger.Debug("fetch: direct OK", "url", url, "chars", utf8.RuneCountInString(text))
		return text, nil
	}
	f.logger.Debug("fetch: direct extraction insufficient", "url", url, "error", err)

	if f.cfg.ReaderBaseURL == "" {
		return "", fmt.Errorf("%w: %s", ErrNoContent, url)
	}

	text, err = f.reader(ctx, url)
	if err == nil && f.enough(text) {
		f.logger.Debug("fetch: reader OK", "url", url, "chars", utf8.RuneCountInString(text))
		return text, nil
	}
	f.logger.Debug("fetch: reader insufficient", "url", url, "error", err)
	return "", fmt.Errorf("%w: %s", ErrNoContent, url)
}

func (f *Fetcher) enough(text string) bool {
	return utf8.RuneCountInString(text) > f.cfg.MinChars
}

func (f *Fetcher) direct(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)
	}
	return ExtractArticle(io.LimitReader(resp.Body, maxBodyBytes))
}

func (f *Fetcher) reader(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.ReaderBaseURL+url, nil)
	if err != nil {
		return "", fmt.Errorf("creating reader request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("X-Return-Format", "text")

	resp, err := httputil.DoWithRetry(ctx, f.readerClient, req, readerRetries)
	if err != nil {
		return "", fmt.Errorf("reader request for %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("reader request for %s: HTTP %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading reader response: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}
