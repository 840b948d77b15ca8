// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalogue holds the run's view of known units and resolves the
// free-form unit references a provider returns to canonical unit IDs,
// minting new units when a reference names something not yet catalogued.
//
// A Catalogue is owned by a single run and is not safe for concurrent use.
package catalogue

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// Catalogue is the term index over loaded units plus the units minted during
// the current run.
type Catalogue struct {
	existing    []types.Unit
	existingIDs map[string]bool

	minted    []types.Unit
	mintedIDs map[string]bool

	// fromBase maps a suggested ID to the ID it was minted as, so a repeated
	// proposal reuses the earlier unit even when it needed a suffix.
	fromBase map[string]string
	bases    []string

	// terms maps a lowercased ID, label or alias to its canonical unit ID.
	// The first unit to claim a term keeps it.
	terms   map[string]string
	termLog []string

	logger *slog.Logger
}

// New builds a catalogue from previously persisted units. Units with an
// empty ID are ignored.
func New(units []types.Unit, logger *slog.Logger) *Catalogue {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalogue{
		existingIDs: make(map[string]bool, len(units)),
		mintedIDs:   make(map[string]bool),
		fromBase:    make(map[string]string),
		terms:       make(map[string]string, len(units)*3),
		logger:      logger,
	}
	for _, u := range units {
		if u.ID == "" || c.existingIDs[u.ID] {
			continue
		}
		c.existing = append(c.existing, u)
		c.existingIDs[u.ID] = true
		c.indexUnit(u)
	}
	return c
}

// Checkpoint marks the current minting position.
type Checkpoint struct {
	minted int
	terms  int
	bases  int
}

// Checkpoint returns a position that Rollback can return to.
func (c *Catalogue) Checkpoint() Checkpoint {
	return Checkpoint{minted: len(c.minted), terms: len(c.termLog), bases: len(c.bases)}
}

// Rollback forgets every unit minted since cp, along with the terms they
// indexed. Units minted before cp are untouched.
func (c *Catalogue) Rollback(cp Checkpoint) {
	if cp.minted > len(c.minted) || cp.terms > len(c.termLog) || cp.bases > len(c.bases) {
		return
	}
	for _, u := range c.minted[cp.minted:] {
		delete(c.mintedIDs, u.ID)
	}
	c.minted = c.minted[:cp.minted]

	for _, t := range c.termLog[cp.terms:] {
		delete(c.terms, t)
	}
	c.termLog = c.termLog[:cp.terms]

	for _, b := range c.bases[cp.bases:] {
		delete(c.fromBase, b)
	}
	c.bases = c.bases[:cp.bases]
}

// Resolve maps a unit reference to a canonical unit ID. created reports
// whether this call minted a new unit. ok is false only for references of
// an unrecognised shape.
func (c *Catalogue) Resolve(ref types.UnitRef) (id string, created bool, ok bool) {
	switch ref.Kind {
	case types.RefID:
		return c.resolveID(strings.TrimSpace(ref.ID))
	case types.RefProposal:
		return c.resolveProposal(ref.Proposal)
	default:
		return "", false, false
	}
}

func (c *Catalogue) resolveID(ref string) (string, bool, bool) {
	if ref == "" {
		return "", false, false
	}
	if c.Has(ref) {
		return ref, false, true
	}
	if canonical, found := c.terms[normalizeTerm(ref)]; found {
		c.logger.Debug("unknown unit id matched existing unit", "ref", ref, "unit", canonical)
		return canonical, false, true
	}

	// The model sometimes returns a plausible snake_case ID instead of a
	// proposal object. Treat it as a low-confidence proposal.
	c.logger.Debug("unknown unit id treated as new unit", "ref", ref)
	human := Humanize(ref)
	p := types.UnitProposal{ID: ref, Label: Title(human)}
	if human != "" {
		p.Aliases = []string{human}
	}
	return c.resolveProposal(p)
}

func (c *Catalogue) resolveProposal(p types.UnitProposal) (string, bool, bool) {
	checks := make([]string, 0, len(p.Aliases)+1)
	if p.Label != "" {
		checks = append(checks, p.Label)
	}
	checks = append(checks, p.Aliases...)
	for _, term := range checks {
		if canonical, found := c.terms[normalizeTerm(term)]; found {
			c.logger.Debug("proposed unit matched existing unit", "label", p.Label, "unit", canonical)
			return canonical, false, true
		}
	}

	seed := p.ID
	if strings.TrimSpace(seed) == "" {
		seed = p.Label
	}
	base := Slugify(seed)
	if base == "" {
		base = fallbackID
	}

	if c.mintedIDs[base] {
		return base, false, true
	}
	if prior, found := c.fromBase[base]; found {
		return prior, false, true
	}

	final := base
	for n := 2; c.Has(final); n++ {
		final = fmt.Sprintf("%s_%d", base, n)
	}

	u := types.Unit{ID: final, Label: strings.TrimSpace(p.Label), Emoji: p.Emoji}
	if u.Label == "" {
		u.Label = Title(Humanize(final))
	}
	if len(p.Aliases) > 0 {
		u.Aliases = append([]string(nil), p.Aliases...)
	}
	if len(p.Tags) > 0 {
		u.Tags = append([]string(nil), p.Tags...)
	}

	c.minted = append(c.minted, u)
	c.mintedIDs[final] = true
	c.fromBase[base] = final
	c.bases = append(c.bases, base)
	c.indexUnit(u)

	c.logger.Debug("minted unit", "unit", final, "label", u.Label)
	return final, true, true
}

// Has reports whether id is a loaded or minted unit ID.
func (c *Catalogue) Has(id string) bool {
	return c.existingIDs[id] || c.mintedIDs[id]
}

// IsMinted reports whether id was minted during this run.
func (c *Catalogue) IsMinted(id string) bool {
	return c.mintedIDs[id]
}

// Units returns loaded units followed by minted units, in order.
func (c *Catalogue) Units() []types.Unit {
	out := make([]types.Unit, 0, len(c.existing)+len(c.minted))
	out = append(out, c.existing...)
	return append(out, c.minted...)
}

// Minted returns the units minted during this run, in minting order.
func (c *Catalogue) Minted() []types.Unit {
	return append([]types.Unit(nil), c.minted...)
}

// Len returns the number of loaded plus minted units.
func (c *Catalogue) Len() int {
	return len(c.existing) + len(c.minted)
}

func (c *Catalogue) indexUnit(u types.Unit) {
	c.addTerm(u.ID, u.ID)
	c.addTerm(u.Label, u.ID)
	for _, a := range u.Aliases {
		c.addTerm(a, u.ID)
	}
}

func (c *Catalogue) addTerm(term, id string) {
	key := normalizeTerm(term)
	if key == "" {
		return
	}
	if _, taken := c.terms[key]; taken {
		return
	}
	c.terms[key] = id
	c.termLog = append(c.termLog, key)
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
