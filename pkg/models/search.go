package models

// Value is a tagged union over the few scalar/list kinds the vector store's
// extras columns actually carry, replacing a dynamic map[string]any result
// shape with something a caller can switch over exhaustively.
type Value struct {
	Kind   ValueKind
	Str    string
	Num    float64
	Bool   bool
	Strs   []string
}

type ValueKind int

const (
	ValueString ValueKind = iota
	ValueNumber
	ValueBool
	ValueStringList
)

func StringValue(s string) Value       { return Value{Kind: ValueString, Str: s} }
func NumberValue(n float64) Value      { return Value{Kind: ValueNumber, Num: n} }
func BoolValue(b bool) Value           { return Value{Kind: ValueBool, Bool: b} }
func StringListValue(v []string) Value { return Value{Kind: ValueStringList, Strs: v} }

// SearchHit is the uniform shape every search/insights operation returns,
// replacing provider-specific dynamic dictionaries. Fields common to every
// result sit at the top level; anything provider- or query-specific lands
// in Extras.
type SearchHit struct {
	Key     string
	Summary string
	Type    string
	Status  string
	Project string
	Score   float64
	Extras  map[string]Value
}

// SearchResult is the paginated outcome of search_issues/hybrid_search:
// the page of hits plus the total count of matches post-threshold.
type SearchResult struct {
	Hits  []SearchHit
	Total int
}

// DuplicateVerdict is the outcome of a pre-creation duplicate check: a
// coarse signal for whether a proposed issue is likely a re-report of an
// existing one.
type DuplicateVerdict string

const (
	VerdictDuplicateLikely   DuplicateVerdict = "DUPLICATE_LIKELY"
	VerdictReviewSuggested   DuplicateVerdict = "REVIEW_SUGGESTED"
	VerdictNoDuplicatesFound DuplicateVerdict = "NO_DUPLICATES_FOUND"
	VerdictCannotCheck       DuplicateVerdict = "CANNOT_CHECK"
)

// DuplicateCandidate is one existing issue whose similarity to a proposed
// issue cleared the duplicate-check threshold.
type DuplicateCandidate struct {
	Key             string
	Summary         string
	Project         string
	Status          string
	Similarity      float64
	LikelyDuplicate bool // similarity exceeds the high-confidence cutoff
}

// DuplicateCheckResult is the outcome of a duplicate-detection query
// against a proposed issue's summary/description.
type DuplicateCheckResult struct {
	Threshold  float64
	Candidates []DuplicateCandidate
	Verdict    DuplicateVerdict
}
