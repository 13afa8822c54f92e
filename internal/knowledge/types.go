package knowledge

import "time"

// SourceType categorizes where a record's content came from.
type SourceType string

// Source type values for knowledge records.
const (
	// SourceKnowledge is curated technical documentation.
	SourceKnowledge SourceType = "knowledge"

	// SourceTicket is issue-tracker content (tickets, bugs, sprint items).
	SourceTicket SourceType = "ticket"

	// SourceCode is source code chunks (files, commits, pull requests).
	SourceCode SourceType = "code"

	// SourceCommunication is email and meeting-note content.
	SourceCommunication SourceType = "communication"

	// SourceCrawl is web-crawled documentation.
	SourceCrawl SourceType = "crawl"

	// SourceMetrics is system metrics and performance data.
	SourceMetrics SourceType = "metrics"
)

// AllSourceTypes lists every valid source type in declaration order.
var AllSourceTypes = []SourceType{
	SourceKnowledge,
	SourceTicket,
	SourceCode,
	SourceCommunication,
	SourceCrawl,
	SourceMetrics,
}

// ValidSourceType reports whether s is a known source type.
func ValidSourceType(s SourceType) bool {
	for _, t := range AllSourceTypes {
		if t == s {
			return true
		}
	}
	return false
}

// Record is one chunk of ingested content.
// Content must be non-empty after sanitization; Embedding dimension must
// match the store schema (see config.EmbedderDimension).
type Record struct {
	ID         string
	SourceType SourceType
	SourceID   string // ticket key, file path + range, crawled URL, ...
	Content    string
	Embedding  []float32
	Metadata   map[string]string
	CreatedAt  time.Time
}

// Result is a search hit with its cosine similarity score.
type Result struct {
	Record     Record
	Similarity float32 // [0,1], higher is closer
}

// Search bounds. Limits are clamped rather than rejected so a sloppy
// caller degrades to sane behavior instead of an error on the read path.
const (
	DefaultSearchLimit     = 10
	MaxSearchLimit         = 50
	DefaultSearchThreshold = 0.55
)

// SearchOption configures a search using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	limit       int
	threshold   float32
	sourceTypes []SourceType
	timeout     time.Duration
}

// WithLimit sets the maximum number of results. Values are clamped to
// [1, MaxSearchLimit].
func WithLimit(n int) SearchOption {
	return func(c *searchConfig) {
		c.limit = n
	}
}

// WithThreshold sets the minimum similarity score. Values are clamped
// to [0, 1].
func WithThreshold(t float32) SearchOption {
	return func(c *searchConfig) {
		c.threshold = t
	}
}

// WithSourceTypes restricts the search to the given source types.
// Zero types means all types. Unknown types are dropped.
func WithSourceTypes(types ...SourceType) SearchOption {
	return func(c *searchConfig) {
		for _, t := range types {
			if ValidSourceType(t) {
				c.sourceTypes = append(c.sourceTypes, t)
			}
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		limit:     DefaultSearchLimit,
		threshold: DefaultSearchThreshold,
		timeout:   searchTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.limit < 1 {
		cfg.limit = DefaultSearchLimit
	}
	if cfg.limit > MaxSearchLimit {
		cfg.limit = MaxSearchLimit
	}
	if cfg.threshold < 0 {
		cfg.threshold = 0
	}
	if cfg.threshold > 1 {
		cfg.threshold = 1
	}
	return cfg
}
