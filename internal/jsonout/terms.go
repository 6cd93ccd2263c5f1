package jsonout

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// TermNeighbor is one co-occurring token reported under a given model.
type TermNeighbor struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// TermsResult is the `terms --json` payload (SPEC_FULL.md "terms command":
// df/kind plus top co-occurring neighbors per selected model).
type TermsResult struct {
	Token     string                    `json:"token"`
	Found     bool                      `json:"found"`
	Kind      string                    `json:"kind,omitempty"`
	DF        int                       `json:"df"`
	DFPercent float64                   `json:"df_percent"`
	Source    string                    `json:"source"`
	Neighbors map[string][]TermNeighbor `json:"neighbors,omitempty"`
}

var termsSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"token":      {Type: "string"},
		"found":      {Type: "boolean"},
		"kind":       {Type: "string"},
		"df":         {Type: "integer"},
		"df_percent": {Type: "number"},
		"source":     {Type: "string", Enum: []any{"scope", "line", "block", "vector", "combined"}},
		"neighbors":  {Type: "object"},
	},
	Required: []string{"token", "found", "df", "df_percent", "source"},
}

// MarshalTerms validates and encodes one terms lookup result.
func MarshalTerms(r TermsResult) ([]byte, error) {
	return marshalValidated(termsSchema, r)
}
