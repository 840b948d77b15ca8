// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalogue

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	nonWordPattern    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	underscoreRun     = regexp.MustCompile(`_+`)
)

// fallbackID is used when a label slugifies to nothing (e.g. "!!!").
const fallbackID = "unit"

// Slugify converts free text to a lowercase snake_case identifier:
// punctuation is removed and whitespace runs become single underscores.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWordPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Humanize turns an identifier back into words ("blue_whale" → "blue whale").
func Humanize(id string) string {
	return strings.TrimSpace(strings.ReplaceAll(id, "_", " "))
}

var titleCaser = cases.Title(language.English)

// Title capitalises each word of s ("blue whale" → "Blue Whale").
func Title(s string) string {
	return titleCaser.String(s)
}
