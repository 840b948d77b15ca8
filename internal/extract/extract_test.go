// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// --- mock providers ---

type reply struct {
	out string
	err error
}

// scriptedProvider returns replies in order and repeats the last one.
type scriptedProvider struct {
	replies []reply
	calls   int
	prompts []string
}

func (p *scriptedProvider) Generate(_ context.Context, prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	r := p.replies[min(p.calls, len(p.replies)-1)]
	p.calls++
	return r.out, r.err
}

type sleepRecorder struct {
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	return nil
}

func newTestExtractor(primary, secondary Provider, rec *sleepRecorder) *Extractor {
	backends := []Backend{
		{Name: "groq", Provider: primary},
		{Name: "gemini", Provider: secondary},
	}
	return New(backends, WithSleep(rec.sleep))
}

const oneCandidate = `[{"from":"wales","to":"a_football_pitch","factor":2,"source_quote":"twice the size of Wales"}]`

// --- fallback ---

func TestExtract_PrimaryEmptyAnswerIsFinal(t *testing.T) {
	primary := &scriptedProvider{replies: []reply{{out: "[]"}}}
	secondary := &scriptedProvider{replies: []reply{{out: oneCandidate}}}
	e := newTestExtractor(primary, secondary, &sleepRecorder{})

	got := e.Extract(context.Background(), "article", nil)

	require.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, secondary.calls)
}

func TestExtract_FallsBackOnQuotaExhaustion(t *testing.T) {
	primary := &scriptedProvider{replies: []reply{{err: fmt.Errorf("groq: %w", ErrQuotaExhausted)}}}
	secondary := &scriptedProvider{replies: []reply{{out: oneCandidate}}}
	e := newTestExtractor(primary, secondary, &sleepRecorder{})

	got := e.Extract(context.Background(), "article one", nil)
	require.Len(t, got, 1)
	assert.Equal(t, 1, secondary.calls)

	// The exhausted primary is not called again.
	e.Extract(context.Background(), "article two", nil)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 2, secondary.calls)

	assert.False(t, e.AllExhausted())
	assert.Equal(t, []string{"groq"}, e.Exhausted())
}

func TestExtract_RateLimitSleepsAndKeepsProviderAlive(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantSleep time.Duration
	}{
		{"reported delay", &RateLimitError{RetryAfter: 7 * time.Second, Err: errors.New("429")}, 7 * time.Second},
		{"default delay", &RateLimitError{Err: errors.New("429")}, types.DefaultRetryAfter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &scriptedProvider{replies: []reply{{err: tt.err}, {out: "[]"}}}
			secondary := &scriptedProvider{replies: []reply{{out: oneCandidate}}}
			rec := &sleepRecorder{}
			e := newTestExtractor(primary, secondary, rec)

			got := e.Extract(context.Background(), "article", nil)
			assert.Len(t, got, 1, "secondary answers for the rate-limited article")
			assert.Equal(t, []time.Duration{tt.wantSleep}, rec.sleeps)

			got = e.Extract(context.Background(), "next article", nil)
			assert.Empty(t, got)
			assert.Equal(t, 2, primary.calls, "primary is retried for the next article")
			assert.Equal(t, 1, secondary.calls)
			assert.Empty(t, e.Exhausted())
		})
	}
}

func TestExtract_NoAnswerFallsThrough(t *testing.T) {
	tests := []struct {
		name  string
		reply reply
	}{
		{"malformed json", reply{out: "not json"}},
		{"unexpected object", reply{out: `{"answer": 3}`}},
		{"bare number", reply{out: "42"}},
		{"generic error", reply{err: errors.New("connection reset")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &scriptedProvider{replies: []reply{tt.reply}}
			secondary := &scriptedProvider{replies: []reply{{out: oneCandidate}}}
			e := newTestExtractor(primary, secondary, &sleepRecorder{})

			got := e.Extract(context.Background(), "article", nil)
			assert.Len(t, got, 1)
			assert.Equal(t, 1, secondary.calls)
			assert.Empty(t, e.Exhausted())
		})
	}
}

func TestExtract_MissingCredentialsCountAsExhausted(t *testing.T) {
	secondary := &scriptedProvider{replies: []reply{{out: oneCandidate}}}
	e := New([]Backend{{Name: "groq"}, {Name: "gemini", Provider: secondary}}, WithSleep((&sleepRecorder{}).sleep))

	got := e.Extract(context.Background(), "article", nil)
	assert.Len(t, got, 1)
	assert.Equal(t, []string{"groq"}, e.Exhausted())
	assert.False(t, e.AllExhausted())

	none := New([]Backend{{Name: "groq"}, {Name: "gemini"}})
	assert.True(t, none.AllExhausted())
	assert.Nil(t, none.Extract(context.Background(), "article", nil))
}

func TestExtract_BothQuotasExhausted(t *testing.T) {
	primary := &scriptedProvider{replies: []reply{{err: ErrQuotaExhausted}}}
	secondary := &scriptedProvider{replies: []reply{{err: ErrQuotaExhausted}}}
	e := newTestExtractor(primary, secondary, &sleepRecorder{})

	assert.Nil(t, e.Extract(context.Background(), "article", nil))
	assert.True(t, e.AllExhausted())
	assert.Equal(t, []string{"groq", "gemini"}, e.Exhausted())
}

func TestExtract_SecondaryEmptyAnswerIsFinal(t *testing.T) {
	primary := &scriptedProvider{replies: []reply{{err: errors.New("boom")}}}
	secondary := &scriptedProvider{replies: []reply{{out: `{"comparisons": []}`}}}
	e := newTestExtractor(primary, secondary, &sleepRecorder{})

	got := e.Extract(context.Background(), "article", nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExtract_SpacesCallsByRPM(t *testing.T) {
	primary := &scriptedProvider{replies: []reply{{out: "[]"}}}
	rec := &sleepRecorder{}
	e := New([]Backend{{Name: "groq", Provider: primary, RPM: 60}}, WithSleep(rec.sleep))

	e.Extract(context.Background(), "a", nil)
	e.Extract(context.Background(), "b", nil)

	require.Len(t, rec.sleeps, 1, "first call is immediate")
	assert.Greater(t, rec.sleeps[0], 900*time.Millisecond)
	assert.LessOrEqual(t, rec.sleeps[0], time.Second)
}

func TestExtract_CancelledContext(t *testing.T) {
	primary := &scriptedProvider{replies: []reply{{out: oneCandidate}}}
	e := newTestExtractor(primary, nil, &sleepRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Nil(t, e.Extract(ctx, "article", nil))
	assert.Equal(t, 0, primary.calls)
}

// --- prompt ---

func TestExtract_PromptCarriesUnitsAndTruncatedText(t *testing.T) {
	primary := &scriptedProvider{replies: []reply{{out: "[]"}}}
	e := New([]Backend{{Name: "groq", Provider: primary}}, WithMaxChars(12))

	units := []types.Unit{
		{ID: "wales", Label: "Wales"},
		{ID: "a_football_pitch", Label: "Football pitch", Aliases: []string{"football pitches"}},
	}
	e.Extract(context.Background(), "The reef is the size of Wales & more.", units)

	require.Len(t, primary.prompts, 1)
	prompt := primary.prompts[0]
	assert.Contains(t, prompt, `{"id":"wales","label":"Wales","aliases":[]}`)
	assert.Contains(t, prompt, `"aliases":["football pitches"]`)
	assert.Contains(t, prompt, "---\nThe reef is \n---")
	assert.NotContains(t, prompt, "size of Wales & more")
}

func TestRenderPrompt_DefaultTemplateHasNoLeftoverActions(t *testing.T) {
	out, err := renderPrompt(defaultPromptTmpl, "text", nil, 0)
	require.NoError(t, err)
	assert.NotContains(t, out, "{{")
	assert.Contains(t, out, "Known units")
	assert.Contains(t, out, "[]\n")
}

// --- parsing ---

func TestParseCandidates(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"bare array", oneCandidate, 1, false},
		{"empty array", "[]", 0, false},
		{"comparisons wrapper", `{"comparisons": ` + oneCandidate + `}`, 1, false},
		{"results wrapper", `{"results": []}`, 0, false},
		{"data wrapper", `{"data": ` + oneCandidate + `}`, 1, false},
		{"items wrapper", `{"items": ` + oneCandidate + `}`, 1, false},
		{"first array key wins", `{"comparisons": null, "items": ` + oneCandidate + `}`, 1, false},
		{"markdown fence", "```json\n" + oneCandidate + "\n```", 1, false},
		{"unknown wrapper", `{"found": []}`, 0, true},
		{"string", `"[]"`, 0, true},
		{"empty", "  ", 0, true},
		{"truncated", `[{"from":`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCandidates(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedOutput)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestParseCandidates_KeepsRawObjects(t *testing.T) {
	got, err := ParseCandidates(`[{"from":"a"}, 7, null]`)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.JSONEq(t, `{"from":"a"}`, string(got[0]))
	assert.Equal(t, "7", strings.TrimSpace(string(got[1])))
}
