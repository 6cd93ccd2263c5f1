package jsonout

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/trans/xerp-sub001/internal/indexing"
)

// IndexSummary is the `index --json` run report: indexing.Summary plus the
// duration the CLI timed around the Run call (SPEC_FULL.md "Indexing run
// summary": files_indexed/files_skipped/files_removed/duration_ms).
type IndexSummary struct {
	FilesScanned   int               `json:"files_scanned"`
	FilesIndexed   int               `json:"files_indexed"`
	FilesUnchanged int               `json:"files_unchanged"`
	FilesSkipped   int               `json:"files_skipped"`
	FilesRemoved   int               `json:"files_removed"`
	SkippedReasons map[string]string `json:"skipped_reasons,omitempty"`
	DurationMs     int64             `json:"duration_ms"`
}

// FromIndexSummary converts the core's run report plus a caller-timed
// duration into the wire payload.
func FromIndexSummary(s indexing.Summary, durationMs int64) IndexSummary {
	return IndexSummary{
		FilesScanned:   s.FilesScanned,
		FilesIndexed:   s.FilesIndexed,
		FilesUnchanged: s.FilesUnchanged,
		FilesSkipped:   s.FilesSkipped,
		FilesRemoved:   s.FilesRemoved,
		SkippedReasons: s.SkippedReasons,
		DurationMs:     durationMs,
	}
}

var indexSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"files_scanned":   {Type: "integer"},
		"files_indexed":   {Type: "integer"},
		"files_unchanged": {Type: "integer"},
		"files_skipped":   {Type: "integer"},
		"files_removed":   {Type: "integer"},
		"skipped_reasons": {Type: "object"},
		"duration_ms":     {Type: "integer"},
	},
	Required: []string{
		"files_scanned", "files_indexed", "files_unchanged",
		"files_skipped", "files_removed", "duration_ms",
	},
}

// MarshalIndex validates and encodes one index run summary.
func MarshalIndex(s IndexSummary) ([]byte, error) {
	return marshalValidated(indexSchema, s)
}
