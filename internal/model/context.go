package model

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// ValidationSource is a trimmed search hit from a code lookup site.
type ValidationSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Validation holds the outcome of the code validation search.
type Validation struct {
	Code    string             `json:"code"`
	IsValid bool               `json:"is_valid"`
	Sources []ValidationSource `json:"sources"`
	Error   string             `json:"error,omitempty"`
}

// Coherence describes how well a user-supplied name matches the validation
// sources. It is advisory and never blocks analysis.
type Coherence struct {
	Score     float64  `json:"score"`
	NameMatch bool     `json:"name_match"`
	Issues    []string `json:"issues,omitempty"`
}

// EnrichedContext bundles the web context shared by all task prompts of one
// run. It must not be modified after the enricher returns it.
type EnrichedContext struct {
	Validation *Validation    `json:"validation,omitempty"`
	Coherence  *Coherence     `json:"coherence,omitempty"`
	Results    []SearchResult `json:"results,omitempty"`
}

// Snippets returns at most n search results.
func (c *EnrichedContext) Snippets(n int) []SearchResult {
	if c == nil || n <= 0 {
		return nil
	}
	if len(c.Results) < n {
		n = len(c.Results)
	}
	return c.Results[:n]
}
