package jsonout

import "github.com/google/jsonschema-go/jsonschema"

// MarkAck is the `mark --json` acknowledgement: spec.md §6 doesn't fix this
// shape the way it fixes query's, so it's kept minimal and named after
// exactly what internal/feedback.Recorder.Mark does (spec.md §4.7).
type MarkAck struct {
	ResultID string  `json:"result_id"`
	Score    float64 `json:"score"`
	Note     string  `json:"note,omitempty"`
	Recorded bool    `json:"recorded"`
}

var markSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"result_id": {Type: "string", Pattern: "^[0-9a-f]{64}$"},
		"score":     {Type: "number", Minimum: ptrFloat(-1), Maximum: ptrFloat(1)},
		"note":      {Type: "string"},
		"recorded":  {Type: "boolean"},
	},
	Required: []string{"result_id", "score", "recorded"},
}

func ptrFloat(f float64) *float64 { return &f }

// MarshalMark validates and encodes one mark acknowledgement.
func MarshalMark(ack MarkAck) ([]byte, error) {
	return marshalValidated(markSchema, ack)
}
