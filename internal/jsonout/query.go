package jsonout

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/trans/xerp-sub001/internal/query"
)

// ExpandedToken, SnippetLine, TermExplain, ExplainData, QueryResult, and
// QueryResponse mirror internal/query's Response tree field-for-field, but
// with the lowercase JSON names spec.md §6's schema fixes: the two structs
// are kept separate so internal/query stays free to rename its own Go
// fields without touching the wire contract.
type ExpandedToken struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Similarity float64 `json:"similarity"`
}

type SnippetLine struct {
	Line  int    `json:"line"`
	Text  string `json:"text"`
	IsHit bool   `json:"is_hit"`
}

type TermExplain struct {
	Token      string  `json:"token"`
	FromQuery  string  `json:"from_query"`
	Similarity float64 `json:"similarity"`
	Lines      []int   `json:"lines"`
}

type ExplainData struct {
	Terms []TermExplain `json:"terms"`
}

type QueryResult struct {
	ResultID  string        `json:"result_id"`
	FilePath  string        `json:"file_path"`
	FileType  string        `json:"file_type"`
	LineStart int           `json:"line_start"`
	LineEnd   int           `json:"line_end"`
	Ancestors []string      `json:"ancestors"`
	Snippet   []SnippetLine `json:"snippet"`
	Score     float64       `json:"score"`
	Salience  float64       `json:"salience"`
	Cluster   float64       `json:"cluster"`
	Hits      int           `json:"hits"`
	Explain   *ExplainData  `json:"explain,omitempty"`
}

// QueryResponse is the exact `query --json` payload (spec.md §6 "JSON
// result schema (query)").
type QueryResponse struct {
	Query          string          `json:"query"`
	Top            int             `json:"top"`
	TimingMs       int64           `json:"timing_ms"`
	ExpandedTokens []ExpandedToken `json:"expanded_tokens,omitempty"`
	Results        []QueryResult   `json:"results"`
}

// FromQueryResponse converts internal/query's Response into the wire shape.
// Ancestors/Snippet are always non-nil so they marshal as `[]`, not `null`,
// for a query with zero results or a block with no ancestors.
func FromQueryResponse(resp query.Response) QueryResponse {
	out := QueryResponse{
		Query:    resp.Query,
		Top:      resp.Top,
		TimingMs: resp.TimingMs,
		Results:  make([]QueryResult, 0, len(resp.Results)),
	}
	for _, t := range resp.ExpandedTokens {
		out.ExpandedTokens = append(out.ExpandedTokens, ExpandedToken{
			From: t.From, To: t.To, Similarity: t.Similarity,
		})
	}
	for _, r := range resp.Results {
		qr := QueryResult{
			ResultID:  r.ResultID,
			FilePath:  r.FilePath,
			FileType:  string(r.FileType),
			LineStart: r.LineStart,
			LineEnd:   r.LineEnd,
			Ancestors: r.Ancestors,
			Score:     r.Score,
			Salience:  r.Salience,
			Cluster:   r.Cluster,
			Hits:      r.Hits,
		}
		if qr.Ancestors == nil {
			qr.Ancestors = []string{}
		}
		snippet := make([]SnippetLine, 0, len(r.Snippet))
		for _, ln := range r.Snippet {
			snippet = append(snippet, SnippetLine{Line: ln.Line, Text: ln.Text, IsHit: ln.IsHit})
		}
		qr.Snippet = snippet
		if r.Explain != nil {
			terms := make([]TermExplain, 0, len(r.Explain.Terms))
			for _, te := range r.Explain.Terms {
				terms = append(terms, TermExplain{
					Token: te.Token, FromQuery: te.FromQuery,
					Similarity: te.Similarity, Lines: te.Lines,
				})
			}
			qr.Explain = &ExplainData{Terms: terms}
		}
		out.Results = append(out.Results, qr)
	}
	return out
}

// querySchema is the jsonschema-go literal form of spec.md §6's query
// result schema, built the way the teacher builds every MCP tool's
// InputSchema in internal/mcp/server.go: a *jsonschema.Schema tree of
// struct literals rather than a parsed JSON string.
var querySchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"query":     {Type: "string"},
		"top":       {Type: "integer"},
		"timing_ms": {Type: "integer"},
		"expanded_tokens": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"from":       {Type: "string"},
					"to":         {Type: "string"},
					"similarity": {Type: "number"},
				},
				Required: []string{"from", "to", "similarity"},
			},
		},
		"results": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"result_id":  {Type: "string", Pattern: "^[0-9a-f]{64}$"},
					"file_path":  {Type: "string"},
					"file_type":  {Type: "string", Enum: []any{"code", "markdown", "config", "text"}},
					"line_start": {Type: "integer"},
					"line_end":   {Type: "integer"},
					"ancestors": {
						Type:  "array",
						Items: &jsonschema.Schema{Type: "string"},
					},
					"snippet": {
						Type: "array",
						Items: &jsonschema.Schema{
							Type: "object",
							Properties: map[string]*jsonschema.Schema{
								"line":   {Type: "integer"},
								"text":   {Type: "string"},
								"is_hit": {Type: "boolean"},
							},
							Required: []string{"line", "text", "is_hit"},
						},
					},
					"score":    {Type: "number"},
					"salience": {Type: "number"},
					"cluster":  {Type: "number"},
					"hits":     {Type: "integer"},
					"explain": {
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"terms": {
								Type: "array",
								Items: &jsonschema.Schema{
									Type: "object",
									Properties: map[string]*jsonschema.Schema{
										"token":      {Type: "string"},
										"from_query": {Type: "string"},
										"similarity": {Type: "number"},
										"lines":      {Type: "array", Items: &jsonschema.Schema{Type: "integer"}},
									},
									Required: []string{"token", "from_query", "similarity", "lines"},
								},
							},
						},
						Required: []string{"terms"},
					},
				},
				Required: []string{
					"result_id", "file_path", "file_type", "line_start", "line_end",
					"ancestors", "snippet", "score", "salience", "cluster", "hits",
				},
			},
		},
	},
	Required: []string{"query", "top", "timing_ms", "results"},
}

// MarshalQuery validates resp against spec.md §6's query schema and
// returns its JSON encoding.
func MarshalQuery(resp query.Response) ([]byte, error) {
	return marshalValidated(querySchema, FromQueryResponse(resp))
}
