// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// wrapperKeys are the object keys a model commonly wraps its array in when
// forced into JSON-object mode. Checked in order.
var wrapperKeys = []string{"comparisons", "results", "data", "items"}

// ParseCandidates decodes a model answer into raw candidates. It accepts a
// bare JSON array, or an object holding the array under one of wrapperKeys.
// A surrounding Markdown code fence is ignored. Any other shape returns
// ErrMalformedOutput. A genuine empty answer returns an empty, non-nil slice.
func ParseCandidates(raw string) ([]types.Candidate, error) {
	body := bytes.TrimSpace([]byte(stripFence(raw)))
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedOutput)
	}

	switch body[0] {
	case '[':
		return decodeArray(body)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		for _, key := range wrapperKeys {
			v, ok := obj[key]
			if !ok {
				continue
			}
			v = bytes.TrimSpace(v)
			if len(v) > 0 && v[0] == '[' {
				return decodeArray(v)
			}
		}
		return nil, fmt.Errorf("%w: object without a candidate array", ErrMalformedOutput)
	default:
		return nil, fmt.Errorf("%w: unexpected JSON shape", ErrMalformedOutput)
	}
}

func decodeArray(body []byte) ([]types.Candidate, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	out := make([]types.Candidate, 0, len(items))
	for _, it := range items {
		out = append(out, types.Candidate(it))
	}
	return out, nil
}

// stripFence removes a ```json ... ``` wrapper if present.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSuffix(s, "```")
}
