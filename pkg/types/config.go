package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "AnythingButMetric-Scraper/1.0").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// FetchConfig holds settings for turning an article URL into plain text.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// ReaderBaseURL is the reader service used when direct extraction yields
	// too little text. The article URL is appended verbatim. Empty disables
	// the fallback.
	ReaderBaseURL string `json:"reader_base_url" yaml:"reader_base_url" mapstructure:"reader_base_url"`

	// ReaderTimeout bounds reader-service requests, which render pages in a
	// headless browser and need longer than a plain GET.
	ReaderTimeout time.Duration `json:"reader_timeout" yaml:"reader_timeout" mapstructure:"reader_timeout"`

	// MinChars is the minimum text length accepted from either strategy.
	MinChars int `json:"min_chars" yaml:"min_chars" mapstructure:"min_chars"`
}

// ProviderConfig configures one extraction provider.
type ProviderConfig struct {
	// Name identifies the provider in logs ("groq", "gemini").
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Model is the model identifier (e.g. "llama-3.3-70b-versatile").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// BaseURL overrides the provider endpoint. Empty uses the default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// APIKey is the provider credential. Empty marks the provider unavailable.
	APIKey string `json:"-" yaml:"-" mapstructure:"api_key"`

	// RPM is the requests-per-minute ceiling. Zero disables call spacing.
	RPM int `json:"rpm" yaml:"rpm" mapstructure:"rpm"`

	// RetryAfter is the backoff applied after a transient rate limit when the
	// provider does not report its own delay.
	RetryAfter time.Duration `json:"retry_after" yaml:"retry_after" mapstructure:"retry_after"`
}

// ExtractionConfig holds settings for the candidate extractor.
type ExtractionConfig struct {
	// MaxArticleChars truncates article text before prompting.
	MaxArticleChars int `json:"max_article_chars" yaml:"max_article_chars" mapstructure:"max_article_chars"`

	// PromptFile is an optional TOML file overriding the extraction prompt.
	PromptFile string `json:"prompt_file,omitempty" yaml:"prompt_file,omitempty" mapstructure:"prompt_file"`

	// Primary is tried first for every article.
	Primary ProviderConfig `json:"primary" yaml:"primary" mapstructure:"primary"`

	// Secondary is tried only when the primary gives no answer.
	Secondary ProviderConfig `json:"secondary" yaml:"secondary" mapstructure:"secondary"`
}

// ScraperConfig groups all settings for a scrape run.
type ScraperConfig struct {
	// DataDir contains units.json and edges.json.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// FeedsFile lists feed URLs, one per line.
	FeedsFile string `json:"feeds_file" yaml:"feeds_file" mapstructure:"feeds_file"`

	// MaxFeeds limits the number of feeds processed. Zero means all.
	MaxFeeds int `json:"max_feeds" yaml:"max_feeds" mapstructure:"max_feeds"`

	// MaxEntries limits entries processed per feed. Zero means all.
	MaxEntries int `json:"max_entries" yaml:"max_entries" mapstructure:"max_entries"`

	// MaxAge skips feed entries published longer ago than this. Zero
	// disables the filter; undated entries are always processed.
	MaxAge time.Duration `json:"max_age" yaml:"max_age" mapstructure:"max_age"`

	// FilterBothNew rejects edges whose two sides were both minted this run.
	FilterBothNew bool `json:"filter_both_new" yaml:"filter_both_new" mapstructure:"filter_both_new"`

	// MaxEdgesPerArticle caps admitted edges per article.
	MaxEdgesPerArticle int `json:"max_edges_per_article" yaml:"max_edges_per_article" mapstructure:"max_edges_per_article"`

	Fetch      FetchConfig      `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
}

// Defaults used when a setting is left at its zero value.
const (
	DefaultDataDir            = "data"
	DefaultFeedsFile          = "feeds.txt"
	DefaultMaxAge             = 26 * time.Hour
	DefaultMaxEdgesPerArticle = 3
	DefaultMaxArticleChars    = 4000
	DefaultFetchTimeout       = 15 * time.Second
	DefaultReaderTimeout      = 30 * time.Second
	DefaultReaderBaseURL      = "https://r.jina.ai/"
	DefaultMinChars           = 200
	DefaultUserAgent          = "AnythingButMetric-Scraper/1.0"
	DefaultRetryAfter         = 60 * time.Second

	DefaultPrimaryName    = "groq"
	DefaultPrimaryModel   = "llama-3.3-70b-versatile"
	DefaultPrimaryRPM     = 25
	DefaultSecondaryName  = "gemini"
	DefaultSecondaryModel = "gemini-2.5-flash"
	DefaultSecondaryRPM   = 5
)

// DefaultScraperConfig returns the configuration used when no config file
// or flags override anything.
func DefaultScraperConfig() ScraperConfig {
	return ScraperConfig{
		DataDir:            DefaultDataDir,
		FeedsFile:          DefaultFeedsFile,
		MaxAge:             DefaultMaxAge,
		MaxEdgesPerArticle: DefaultMaxEdgesPerArticle,
		Fetch: FetchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   DefaultFetchTimeout,
				UserAgent: DefaultUserAgent,
			},
			ReaderBaseURL: DefaultReaderBaseURL,
			ReaderTimeout: DefaultReaderTimeout,
			MinChars:      DefaultMinChars,
		},
		Extraction: ExtractionConfig{
			MaxArticleChars: DefaultMaxArticleChars,
			Primary: ProviderConfig{
				Name:       DefaultPrimaryName,
				Model:      DefaultPrimaryModel,
				RPM:        DefaultPrimaryRPM,
				RetryAfter: DefaultRetryAfter,
			},
			Secondary: ProviderConfig{
				Name:       DefaultSecondaryName,
				Model:      DefaultSecondaryModel,
				RPM:        DefaultSecondaryRPM,
				RetryAfter: DefaultRetryAfter,
			},
		},
	}
}
