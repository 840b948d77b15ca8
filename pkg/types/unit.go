// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"regexp"
	"strconv"
)

// Unit is a physical reference object that can sit on either side of a
// comparison (a double-decker bus, Wales, a football pitch).
type Unit struct {
	// ID is the stable lowercase snake_case identifier. Unique across the
	// catalogue and never reused once minted.
	ID string `json:"id" yaml:"id"`

	// Label is the display name.
	Label string `json:"label" yaml:"label"`

	// Emoji is optional display metadata.
	Emoji string `json:"emoji,omitempty" yaml:"emoji,omitempty"`

	// Aliases lists alternate textual forms (plurals, alternate names).
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`

	// Tags is optional category metadata.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Edge is a directed, factor-weighted comparison between two units:
// one From equals Factor of To.
type Edge struct {
	// ID is "e" followed by a zero-padded sequence number (e001, e002, ...).
	ID string `json:"id" yaml:"id"`

	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`

	// Factor is how many To equal one From. Always positive.
	Factor float64 `json:"factor" yaml:"factor"`

	// SourceURL is the article the comparison was taken from.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// SourceQuote is the verbatim sentence containing the comparison.
	SourceQuote string `json:"source_quote" yaml:"source_quote"`

	// DateScraped is the admission date as YYYY-MM-DD.
	DateScraped string `json:"date_scraped" yaml:"date_scraped"`

	// Verified is set by editorial review, never by the scraper.
	Verified bool `json:"verified" yaml:"verified"`
}

// DedupKey identifies a logically unique edge.
type DedupKey struct {
	From      string
	To        string
	Factor    float64
	SourceURL string
}

// Key returns the deduplication key for the edge.
func (e Edge) Key() DedupKey {
	return DedupKey{From: e.From, To: e.To, Factor: e.Factor, SourceURL: e.SourceURL}
}

// edgeIDPattern matches sequence edge IDs such as "e004" or "e1234".
var edgeIDPattern = regexp.MustCompile(`^e(\d+)$`)

// EdgeSeq returns the sequence number encoded in an edge ID. IDs that do
// not follow the "e<digits>" form report ok=false.
func EdgeSeq(id string) (n int, ok bool) {
	m := edgeIDPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatEdgeID renders a sequence number as an edge ID. The width is at
// least three digits and grows as needed.
func FormatEdgeID(n int) string {
	return fmt.Sprintf("e%03d", n)
}
