// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package admit

import (
	"log/slog"

	"github.com/pdiddy/anything-but-metric/internal/catalogue"
	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// State is everything one run accumulates: the unit catalogue, the dedup
// keys of every known edge, the edge sequence counter and the edges admitted
// so far. It is owned by a single run and is not safe for concurrent use.
type State struct {
	Catalogue *catalogue.Catalogue

	keys  map[types.DedupKey]struct{}
	seq   int
	edges []types.Edge
}

// NewState seeds run state from the persisted datasets. The sequence counter
// starts at the highest "e<digits>" edge ID found; other ID forms are
// ignored for numbering but still count for deduplication.
func NewState(units []types.Unit, edges []types.Edge, logger *slog.Logger) *State {
	s := &State{
		Catalogue: catalogue.New(units, logger),
		keys:      make(map[types.DedupKey]struct{}, len(edges)),
	}
	for _, e := range edges {
		s.keys[e.Key()] = struct{}{}
		if n, ok := types.EdgeSeq(e.ID); ok && n > s.seq {
			s.seq = n
		}
	}
	return s
}

// HasKey reports whether an edge with key k is already known.
func (s *State) HasKey(k types.DedupKey) bool {
	_, ok := s.keys[k]
	return ok
}

// Seq returns the highest edge sequence number allocated so far.
func (s *State) Seq() int {
	return s.seq
}

// NewEdges returns the edges admitted during this run, in admission order.
func (s *State) NewEdges() []types.Edge {
	return append([]types.Edge(nil), s.edges...)
}

// NewUnits returns the units minted during this run.
func (s *State) NewUnits() []types.Unit {
	return s.Catalogue.Minted()
}

// admit allocates the next ID for e, records its key and appends it.
func (s *State) admit(e types.Edge) types.Edge {
	s.seq++
	e.ID = types.FormatEdgeID(s.seq)
	s.keys[e.Key()] = struct{}{}
	s.edges = append(s.edges, e)
	return e
}
