// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/anything-but-metric/internal/secrets"
	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// providerKeys maps a provider name to the environment variable and
// secrets file holding its key.
var providerKeys = map[string]struct{ env, file string }{
	"groq":   {secrets.GroqKeyEnv, secrets.GroqKeyFile},
	"gemini": {secrets.GoogleKeyEnv, secrets.GoogleKeyFile},
}

// setDefaults registers every config key so that ABM_* environment
// variables are seen by Unmarshal.
func setDefaults(v *viper.Viper) {
	d := types.DefaultScraperConfig()

	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("feeds_file", d.FeedsFile)
	v.SetDefault("max_feeds", d.MaxFeeds)
	v.SetDefault("max_entries", d.MaxEntries)
	v.SetDefault("max_age", d.MaxAge)
	v.SetDefault("filter_both_new", d.FilterBothNew)
	v.SetDefault("max_edges_per_article", d.MaxEdgesPerArticle)

	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("fetch.reader_base_url", d.Fetch.ReaderBaseURL)
	v.SetDefault("fetch.reader_timeout", d.Fetch.ReaderTimeout)
	v.SetDefault("fetch.min_chars", d.Fetch.MinChars)

	v.SetDefault("extraction.max_article_chars", d.Extraction.MaxArticleChars)
	v.SetDefault("extraction.prompt_file", d.Extraction.PromptFile)
	for prefix, pc := range map[string]types.ProviderConfig{
		"extraction.primary":   d.Extraction.Primary,
		"extraction.secondary": d.Extraction.Secondary,
	} {
		v.SetDefault(prefix+".name", pc.Name)
		v.SetDefault(prefix+".model", pc.Model)
		v.SetDefault(prefix+".base_url", pc.BaseURL)
		v.SetDefault(prefix+".api_key", "")
		v.SetDefault(prefix+".rpm", pc.RPM)
		v.SetDefault(prefix+".retry_after", pc.RetryAfter)
	}
}

// loadConfig decodes the merged config file, environment and bound flags,
// then fills provider keys from the environment and secrets files.
func loadConfig(v *viper.Viper, loaded map[string]string) (types.ScraperConfig, error) {
	cfg := types.DefaultScraperConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	resolveKey(&cfg.Extraction.Primary, loaded)
	resolveKey(&cfg.Extraction.Secondary, loaded)
	return cfg, nil
}

func resolveKey(pc *types.ProviderConfig, loaded map[string]string) {
	k, ok := providerKeys[strings.ToLower(pc.Name)]
	if !ok {
		return
	}
	pc.APIKey = secrets.Resolve(pc.APIKey, k.env, k.file, loaded)
}
