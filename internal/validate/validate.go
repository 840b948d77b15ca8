// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate is the admission filter applied to every candidate
// comparison before it is trusted. Checks run in a fixed order and stop at
// the first failure.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// Rejection reasons. Check wraps one of these so callers can match with
// errors.Is.
var (
	ErrNotObject          = errors.New("candidate is not an object")
	ErrMissingUnit        = errors.New("candidate is missing from or to")
	ErrBadFactor          = errors.New("factor is not a positive number")
	ErrMissingQuote       = errors.New("source_quote is missing or empty")
	ErrNoComparisonPhrase = errors.New("source_quote has no recognised comparison phrase")
)

// ComparisonPhrases are the lowercase fragments a quote must contain to be
// accepted as a physical-scale comparison.
var ComparisonPhrases = []string{
	"times the size",
	"times the area",
	"times the weight",
	"times the height",
	"times the length",
	"times the volume",
	"times larger than",
	"times bigger than",
	"times smaller than",
	"the size of",
	"the area of",
	"the weight of",
	"the height of",
	"as big as",
	"as heavy as",
	"as tall as",
	"as wide as",
	"as long as",
	"weighs as much as",
	"equivalent to",
}

// Comparison is a candidate that passed every check. From and To are still
// unresolved references.
type Comparison struct {
	From        types.UnitRef
	To          types.UnitRef
	Factor      float64
	SourceQuote string
}

type rawCandidate struct {
	From        *types.UnitRef   `json:"from"`
	To          *types.UnitRef   `json:"to"`
	Factor      *json.RawMessage `json:"factor"`
	SourceQuote *json.RawMessage `json:"source_quote"`
}

// Check validates a raw candidate: object shape with from and to, a strictly
// positive numeric factor, a non-empty source_quote, and a recognised
// comparison phrase in that quote.
func Check(c types.Candidate) (Comparison, error) {
	trimmed := bytes.TrimSpace(c)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Comparison{}, ErrNotObject
	}

	var raw rawCandidate
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Comparison{}, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if raw.From == nil || raw.To == nil {
		return Comparison{}, ErrMissingUnit
	}

	factor, err := positiveFactor(raw.Factor)
	if err != nil {
		return Comparison{}, err
	}

	quote, err := quoteText(raw.SourceQuote)
	if err != nil {
		return Comparison{}, err
	}
	if !HasComparisonPhrase(quote) {
		return Comparison{}, fmt.Errorf("%w: %q", ErrNoComparisonPhrase, quote)
	}

	return Comparison{From: *raw.From, To: *raw.To, Factor: factor, SourceQuote: quote}, nil
}

// HasComparisonPhrase reports whether quote contains any ComparisonPhrases
// entry, ignoring case.
func HasComparisonPhrase(quote string) bool {
	lower := strings.ToLower(quote)
	for _, p := range ComparisonPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func positiveFactor(raw *json.RawMessage) (float64, error) {
	if raw == nil {
		return 0, ErrBadFactor
	}
	var f float64
	if err := json.Unmarshal(*raw, &f); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadFactor, string(*raw))
	}
	if !(f > 0) {
		return 0, fmt.Errorf("%w: %v", ErrBadFactor, f)
	}
	return f, nil
}

func quoteText(raw *json.RawMessage) (string, error) {
	if raw == nil {
		return "", ErrMissingQuote
	}
	var s string
	if err := json.Unmarshal(*raw, &s); err != nil {
		return "", ErrMissingQuote
	}
	if strings.TrimSpace(s) == "" {
		return "", ErrMissingQuote
	}
	return s, nil
}
