package llm

// Search context sizes understood by providers that support them.
const (
	SearchContextLow    = "low"
	SearchContextMedium = "medium"
	SearchContextHigh   = "high"
)

// WebSearch asks the provider to ground the reply in live web results.
// Providers without server-side search ignore it.
type WebSearch struct {
	// AllowedDomains restricts results to these hosts. Empty means any.
	AllowedDomains []string `json:"allowed_domains,omitempty"`

	// ContextSize is one of the SearchContext constants. Empty uses the
	// provider default.
	ContextSize string `json:"context_size,omitempty"`

	// MaxUses caps the number of searches per request where supported.
	MaxUses int `json:"max_uses,omitempty"`
}

// Citation is a source the provider reported for the reply.
type Citation struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}
