// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package feed reads syndication feeds (RSS, Atom, JSON Feed) and the list
// of feed URLs a scrape run iterates.
package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// Feed is a parsed feed. Recognised is false when the URL answered with
// something that is not a feed, typically an article page listed directly.
type Feed struct {
	Title      string
	Entries    []types.FeedEntry
	Recognised bool
}

// StatusError reports an HTTP error status from the feed URL.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed returned HTTP %d", e.StatusCode)
}

// Reader fetches and parses feeds.
type Reader struct {
	parser *gofeed.Parser
}

// NewReader returns a Reader using cfg's timeout and User-Agent.
func NewReader(cfg types.HTTPConfig) *Reader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = types.DefaultFetchTimeout
	}
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: timeout}
	p.UserAgent = cfg.UserAgent
	if p.UserAgent == "" {
		p.UserAgent = types.DefaultUserAgent
	}
	return &Reader{parser: p}
}

// Parse fetches feedURL. An HTTP status of 400 or above returns a
// *StatusError. Content that is not a recognisable feed returns a Feed with
// Recognised=false and no error.
func (r *Reader) Parse(ctx context.Context, feedURL string) (Feed, error) {
	f, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		switch {
		case errors.As(err, &httpErr):
			return Feed{}, &StatusError{StatusCode: httpErr.StatusCode, Status: httpErr.Status}
		case errors.Is(err, gofeed.ErrFeedTypeNotDetected):
			return Feed{Recognised: false}, nil
		default:
			return Feed{}, fmt.Errorf("parsing feed %s: %w", feedURL, err)
		}
	}
	return convert(f), nil
}

func convert(f *gofeed.Feed) Feed {
	out := Feed{Title: f.Title, Recognised: true}
	for _, item := range f.Items {
		if item == nil {
			continue
		}
		e := types.FeedEntry{
			Link:    strings.TrimSpace(item.Link),
			Summary: item.Description,
		}
		if e.Summary == "" {
			e.Summary = item.Content
		}
		switch {
		case item.PublishedParsed != nil:
			t := *item.PublishedParsed
			e.Published = &t
		case item.UpdatedParsed != nil:
			t := *item.UpdatedParsed
			e.Published = &t
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}

// LoadList reads a feeds file: one URL per line, blank lines and lines
// starting with '#' ignored.
func LoadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening feeds file %s: %w", path, err)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading feeds file %s: %w", path, err)
	}
	return urls, nil
}
