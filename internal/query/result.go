package query

import "github.com/trans/xerp-sub001/internal/types"

// ExpandedToken records one nearest-neighbor expansion applied to the
// query (spec.md §6 JSON result "expanded_tokens").
type ExpandedToken struct {
	From       string
	To         string
	Similarity float64
}

// SnippetLine is one rendered line of a result's excerpt.
type SnippetLine struct {
	Line  int
	Text  string
	IsHit bool
}

// TermExplain is one query term's contribution to a result, emitted only
// when Options.Explain is set (spec.md §6 --explain:
// {"token", "from_query", "similarity", "lines"}).
type TermExplain struct {
	Token      string
	FromQuery  string // "" for an original query term, else the term it expanded from
	Similarity float64
	Lines      []int

	contribution float64 // ranking-only, not emitted
}

// ExplainData is the optional per-result scoring breakdown.
type ExplainData struct {
	Terms       []TermExplain
	Salience    float64
	Cluster     float64
	ClusterMode types.ClusterMode
}

// Result is one ranked block (spec.md §6 JSON result schema).
type Result struct {
	ResultID  string
	FilePath  string
	FileType  types.FileType
	LineStart int
	LineEnd   int
	Ancestors []string
	Snippet   []SnippetLine
	Score     float64
	Salience  float64
	Cluster   float64
	Hits      int

	Explain *ExplainData

	// distinctTerms/depth are ranking-only fields, not part of the
	// emitted result payload (spec.md §4.6.4 tie-break: distinct-tokens,
	// hits, depth, then ascending result_id).
	distinctTerms int
	depth         int
}

// Response is the full JSON payload one Run call produces (spec.md §6).
type Response struct {
	Query          string
	Top            int
	TimingMs       int64
	ExpandedTokens []ExpandedToken
	Results        []Result
}
