// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Candidate is one untrusted comparison object exactly as a provider
// returned it. It is only trusted after validation.
type Candidate = json.RawMessage

// RefKind discriminates the two shapes a unit reference can take in
// provider output.
type RefKind int

const (
	// RefInvalid is any shape that is neither a string nor an object.
	RefInvalid RefKind = iota
	// RefID is a bare identifier string.
	RefID
	// RefProposal is a structured new-unit proposal.
	RefProposal
)

func (k RefKind) String() string {
	switch k {
	case RefID:
		return "id"
	case RefProposal:
		return "proposal"
	default:
		return "invalid"
	}
}

// UnitProposal is a structured description of a unit the model believes is
// not yet in the catalogue.
type UnitProposal struct {
	ID      string   `json:"id,omitempty"`
	Label   string   `json:"label,omitempty"`
	Emoji   string   `json:"emoji,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// UnitRef is the "from" or "to" side of a candidate: either a reference to
// an existing unit ID or a new-unit proposal.
type UnitRef struct {
	Kind     RefKind
	ID       string
	Proposal UnitProposal
}

// IDRef returns a reference to a unit by identifier.
func IDRef(id string) UnitRef {
	return UnitRef{Kind: RefID, ID: id}
}

// ProposalRef returns a reference carrying a new-unit proposal.
func ProposalRef(p UnitProposal) UnitRef {
	return UnitRef{Kind: RefProposal, Proposal: p}
}

// UnmarshalJSON decodes either shape. Malformed or unexpected shapes decode
// to RefInvalid rather than failing, so one bad side never hides the rest of
// the candidate from validation and logging.
func (r *UnitRef) UnmarshalJSON(data []byte) error {
	*r = UnitRef{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if strings.TrimSpace(s) == "" {
			return nil
		}
		r.Kind = RefID
		r.ID = s
	case '{':
		var p UnitProposal
		if err := json.Unmarshal(data, &p); err != nil {
			return nil
		}
		if strings.TrimSpace(p.Label) == "" && strings.TrimSpace(p.ID) == "" {
			return nil
		}
		r.Kind = RefProposal
		r.Proposal = p
	}
	return nil
}

// MarshalJSON encodes the reference in the same shape it was decoded from.
func (r UnitRef) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RefID:
		return json.Marshal(r.ID)
	case RefProposal:
		return json.Marshal(r.Proposal)
	default:
		return []byte("null"), nil
	}
}
