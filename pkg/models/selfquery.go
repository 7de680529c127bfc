package models

// ParsedQuery is the outcome of decomposing a natural-language query into a
// semantic-search portion and a set of structured filters.
type ParsedQuery struct {
	SemanticQuery  string
	Filters        map[string]any
	Interpretation string
	Confidence     float64
	RawQuery       string
}
