// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package admit turns one article into zero or more trusted edges: it gets
// the article text, asks the extractor for candidates, validates them,
// resolves both sides against the catalogue, drops duplicates and appends
// what is left to the run state.
package admit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/pdiddy/anything-but-metric/internal/fetch"
	"github.com/pdiddy/anything-but-metric/internal/validate"
	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// Extractor returns untrusted candidates for article text.
type Extractor interface {
	Extract(ctx context.Context, text string, units []types.Unit) []types.Candidate
}

// Fetcher returns the plain text of the article at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Config controls admission policy.
type Config struct {
	// MaxEdgesPerArticle caps admitted edges per article. Zero uses the
	// default.
	MaxEdgesPerArticle int

	// FilterBothNew rejects edges whose sides were both minted this run.
	FilterBothNew bool

	// Clock supplies the admission date. Nil uses time.Now.
	Clock func() time.Time
}

// Rejection reasons beyond those from package validate.
var (
	ErrUnresolved = errors.New("unit reference could not be resolved")
	ErrSelfLoop   = errors.New("from and to are the same unit")
	ErrBothNew    = errors.New("both units were minted this run")
	ErrDuplicate  = errors.New("edge already exists")
)

// Result summarises one article.
type Result struct {
	// Candidates is the number of candidates the extractor returned.
	Candidates int

	// Rejected counts candidates dropped before the per-article cap.
	Rejected int

	// Edges and Units are what this article added to the run.
	Edges []types.Edge
	Units []types.Unit
}

// Pipeline processes articles one at a time.
type Pipeline struct {
	extractor Extractor
	fetcher   Fetcher
	cfg       Config
	logger    *slog.Logger
}

// New creates a Pipeline. fetcher may be nil, in which case only supplied
// text and feed summaries are used.
func New(extractor Extractor, fetcher Fetcher, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.MaxEdgesPerArticle <= 0 {
		cfg.MaxEdgesPerArticle = types.DefaultMaxEdgesPerArticle
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		fetcher:   fetcher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Process runs one article through the pipeline and records accepted edges
// and minted units in st.
func (p *Pipeline) Process(ctx context.Context, st *State, a types.Article) Result {
	log := p.logger.With("url", a.URL)
	log.Debug("processing article")

	var res Result
	text := p.articleText(ctx, a, log)
	if text == "" {
		log.Debug("no text, skipping")
		return res
	}

	mintedBefore := len(st.Catalogue.Minted())
	cands := p.extractor.Extract(ctx, text, st.Catalogue.Units())
	res.Candidates = len(cands)
	if len(cands) == 0 {
		log.Debug("no comparisons found")
		return res
	}
	log.Debug("comparisons found", "count", len(cands))

	today := p.cfg.Clock().Format("2006-01-02")
	for _, c := range cands {
		if len(res.Edges) >= p.cfg.MaxEdgesPerArticle {
			log.Debug("per-article cap reached", "cap", p.cfg.MaxEdgesPerArticle)
			break
		}
		e, err := p.admitCandidate(st, c, a.URL, today)
		if err != nil {
			res.Rejected++
			log.Debug("candidate rejected", "reason", err, "candidate", string(c))
			continue
		}
		res.Edges = append(res.Edges, e)
		log.Debug("edge admitted", "id", e.ID, "from", e.From, "to", e.To, "factor", e.Factor)
	}

	res.Units = st.Catalogue.Minted()[mintedBefore:]
	return res
}

// admitCandidate validates and resolves c. Units minted while resolving a
// candidate that is then rejected are rolled back.
func (p *Pipeline) admitCandidate(st *State, c types.Candidate, sourceURL, today string) (types.Edge, error) {
	cmp, err := validate.Check(c)
	if err != nil {
		return types.Edge{}, err
	}

	cp := st.Catalogue.Checkpoint()
	reject := func(err error) (types.Edge, error) {
		st.Catalogue.Rollback(cp)
		return types.Edge{}, err
	}

	from, _, ok := st.Catalogue.Resolve(cmp.From)
	if !ok {
		return reject(ErrUnresolved)
	}
	to, _, ok := st.Catalogue.Resolve(cmp.To)
	if !ok {
		return reject(ErrUnresolved)
	}
	if from == to {
		return reject(ErrSelfLoop)
	}
	if p.cfg.FilterBothNew && st.Catalogue.IsMinted(from) && st.Catalogue.IsMinted(to) {
		return reject(ErrBothNew)
	}

	e := types.Edge{
		From:        from,
		To:          to,
		Factor:      cmp.Factor,
		SourceURL:   sourceURL,
		SourceQuote: cmp.SourceQuote,
		DateScraped: today,
		Verified:    false,
	}
	if st.HasKey(e.Key()) {
		return reject(ErrDuplicate)
	}
	return st.admit(e), nil
}

// articleText prefers caller-supplied text, then a fetch, then the feed
// summary. HTML in supplied text and summaries is reduced to plain text.
func (p *Pipeline) articleText(ctx context.Context, a types.Article, log *slog.Logger) string {
	if strings.TrimSpace(a.Text) != "" {
		text := fetch.HTMLToText(a.Text)
		log.Debug("using supplied text", "chars", len(text))
		return text
	}

	if p.fetcher != nil && a.URL != "" {
		text, err := p.fetcher.Fetch(ctx, a.URL)
		if err == nil && strings.TrimSpace(text) != "" {
			return text
		}
		log.Debug("fetch failed", "error", err)
	}

	if strings.TrimSpace(a.Summary) != "" {
		text := fetch.HTMLToText(a.Summary)
		log.Debug("falling back to feed summary", "chars", len(text))
		return text
	}
	return ""
}
