// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Article is one unit of work for the admission pipeline.
type Article struct {
	// URL is the article address and becomes the edge SourceURL.
	URL string

	// Text is caller-supplied article text (HTML allowed). When set, no
	// fetching is attempted.
	Text string

	// Summary is the feed's short summary, used when fetching fails.
	Summary string
}

// FeedEntry is a single item from a syndication feed.
type FeedEntry struct {
	Link    string
	Summary string

	// Published is the entry's publication (or last update) time. Nil when
	// the feed carries no date information.
	Published *time.Time
}
