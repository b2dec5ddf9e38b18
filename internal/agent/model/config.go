package model

// ================ Config ================

// RewriteModelConfig configures the model that compresses the user's request
// into a single search query. The original pipeline ran this step at
// temperature 1.0, so that stays the default.
type RewriteModelConfig struct {
	Model       string  `envconfig:"REWRITE_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"REWRITE_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"REWRITE_TEMPERATURE" default:"1.0"`
}

// FormatModelConfig configures the model that reshapes raw search results
// into the structured travel report.
type FormatModelConfig struct {
	Model       string  `envconfig:"FORMAT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"FORMAT_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"FORMAT_TEMPERATURE" default:"0.4"`
}

// SearchConfig configures the web search provider.
type SearchConfig struct {
	MaxResults     int `envconfig:"SEARCH_MAX_RESULTS" default:"5"`
	TimeoutSeconds int `envconfig:"SEARCH_TIMEOUT_SECONDS" default:"15"`
}

// CacheConfig configures the optional Redis-backed search result cache.
// Caching is disabled when REDIS_URL is empty.
type CacheConfig struct {
	TTL string `envconfig:"CACHE_TTL" default:"15m"`
}

// ConversationConfig bounds how much history is loaded into pipeline state
// per turn. The transcript itself is unbounded for the life of the process.
type ConversationConfig struct {
	MaxTurns int `envconfig:"CONVERSATION_MAX_TURNS" default:"50"`
}
