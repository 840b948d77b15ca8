// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// FromConfig builds the primary-then-secondary chain described by cfg.
// A provider without an API key is kept in the chain but never called.
// The returned closer releases SDK clients and must be called when the run
// ends.
func FromConfig(ctx context.Context, cfg types.ExtractionConfig, httpClient *http.Client, opts ...Option) (*Extractor, io.Closer, error) {
	var closers multiCloser
	var backends []Backend

	for _, pc := range []types.ProviderConfig{cfg.Primary, cfg.Secondary} {
		b := Backend{Name: pc.Name, RPM: pc.RPM, RetryAfter: pc.RetryAfter}
		if strings.TrimSpace(pc.APIKey) != "" {
			p, err := newProvider(ctx, pc, httpClient)
			if err != nil {
				closers.Close()
				return nil, nil, err
			}
			if c, ok := p.(io.Closer); ok {
				closers = append(closers, c)
			}
			b.Provider = p
		}
		backends = append(backends, b)
	}

	if cfg.PromptFile != "" {
		tmpl, err := LoadPromptFile(cfg.PromptFile)
		if err != nil {
			closers.Close()
			return nil, nil, err
		}
		opts = append([]Option{WithPrompt(tmpl)}, opts...)
	}
	if cfg.MaxArticleChars > 0 {
		opts = append([]Option{WithMaxChars(cfg.MaxArticleChars)}, opts...)
	}

	return New(backends, opts...), closers, nil
}

func newProvider(ctx context.Context, pc types.ProviderConfig, httpClient *http.Client) (Provider, error) {
	switch strings.ToLower(pc.Name) {
	case "groq":
		return NewGroq(pc, httpClient), nil
	case "gemini":
		return NewGemini(ctx, pc)
	default:
		return nil, fmt.Errorf("unknown provider %q", pc.Name)
	}
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
