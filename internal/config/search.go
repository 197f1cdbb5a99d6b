package config

// SearchConfig holds the retrieval-and-ranking pipeline settings.
//
// FeaturedDomain is the partner domain the guarantee engine must represent
// among search results whenever possible. ExtraDomains are admin-configured
// allowed domains merged with the core trust list at runtime; the block list
// lives in the domain_rules table, not in static config.
type SearchConfig struct {
	FeaturedDomain string   `mapstructure:"featured_domain" json:"featured_domain"`
	ExtraDomains   []string `mapstructure:"extra_domains" json:"extra_domains"`

	// ChunkThreshold is the minimum cosine similarity for a chunk to be
	// served as a local answer.
	ChunkThreshold float64 `mapstructure:"chunk_threshold" json:"chunk_threshold"`

	// ChunkTopN bounds how many chunks the index returns per query.
	ChunkTopN int `mapstructure:"chunk_top_n" json:"chunk_top_n"`

	// ResultLimit is the number of results requested from the web search
	// provider per call.
	ResultLimit int `mapstructure:"result_limit" json:"result_limit"`

	// MaxHistory is how many prior conversation turns feed the query prompt.
	MaxHistory int `mapstructure:"max_history" json:"max_history"`

	// TimeoutSeconds bounds each outbound network call (embedding, primary
	// search, fallback search). Timeouts are treated like provider errors:
	// no retry, degrade for the turn.
	TimeoutSeconds int `mapstructure:"timeout_seconds" json:"timeout_seconds"`
}
