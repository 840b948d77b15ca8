// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// ErrEmptyQuery is returned when a query has neither search text nor a
// filter.
var ErrEmptyQuery = errors.New("query or filter required")

// EdgeQuery selects edges from a snapshot.
type EdgeQuery struct {
	// Text is a full-text match against source quotes.
	Text string

	// Unit keeps edges with this unit on either side.
	Unit string

	// Verified, when set, keeps only edges with that review state.
	Verified *bool

	// MaxResults limits result count. Zero means no limit.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q EdgeQuery) IsEmpty() bool {
	return q.Text == "" && q.Unit == "" && q.Verified == nil
}

// Edges returns edges matching q, ordered by edge ID.
func (s *Store) Edges(ctx context.Context, q EdgeQuery) ([]types.Edge, error) {
	if q.IsEmpty() {
		return nil, ErrEmptyQuery
	}
	return s.queryEdges(ctx, q)
}

func (s *Store) queryEdges(ctx context.Context, q EdgeQuery) ([]types.Edge, error) {
	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(
		`SELECT e.id, e.from_unit, e.to_unit, e.factor, e.source_url,
			e.source_quote, e.date_scraped, e.verified
		FROM edges e`)
	if q.Text != "" {
		qb.WriteString(` JOIN edges_fts ON edges_fts.rowid = e.rowid WHERE edges_fts MATCH ?`)
		args = append(args, q.Text)
	} else {
		qb.WriteString(` WHERE 1=1`)
	}
	if q.Unit != "" {
		qb.WriteString(` AND (e.from_unit = ? OR e.to_unit = ?)`)
		args = append(args, q.Unit, q.Unit)
	}
	if q.Verified != nil {
		qb.WriteString(` AND e.verified = ?`)
		args = append(args, *q.Verified)
	}
	qb.WriteString(` ORDER BY e.rowid`)
	if q.MaxResults > 0 {
		qb.WriteString(` LIMIT ?`)
		args = append(args, q.MaxResults)
	}

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var out []types.Edge
	for rows.Next() {
		var e types.Edge
		if err := rows.Scan(&e.ID, &e.From, &e.To, &e.Factor, &e.SourceURL,
			&e.SourceQuote, &e.DateScraped, &e.Verified); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Units returns every unit in the snapshot, ordered by ID.
func (s *Store) Units(ctx context.Context) ([]types.Unit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, emoji, aliases, tags FROM units ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying units: %w", err)
	}
	defer rows.Close()

	var out []types.Unit
	for rows.Next() {
		var (
			u                     types.Unit
			aliasesJSON, tagsJSON string
		)
		if err := rows.Scan(&u.ID, &u.Label, &u.Emoji, &aliasesJSON, &tagsJSON); err != nil {
			return nil, fmt.Errorf("scanning unit: %w", err)
		}
		if err := json.Unmarshal([]byte(aliasesJSON), &u.Aliases); err != nil {
			return nil, fmt.Errorf("decoding aliases for %s: %w", u.ID, err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &u.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags for %s: %w", u.ID, err)
		}
		if len(u.Aliases) == 0 {
			u.Aliases = nil
		}
		if len(u.Tags) == 0 {
			u.Tags = nil
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Document is the YAML rendering of a snapshot.
type Document struct {
	Units []types.Unit `yaml:"units"`
	Edges []types.Edge `yaml:"edges"`
}

// WriteYAML writes the whole snapshot to path as a single YAML document.
func (s *Store) WriteYAML(ctx context.Context, path string) error {
	units, err := s.Units(ctx)
	if err != nil {
		return err
	}
	edges, err := s.queryEdges(ctx, EdgeQuery{})
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(Document{Units: units, Edges: edges})
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
