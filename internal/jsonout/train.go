package jsonout

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/trans/xerp-sub001/internal/vectors"
)

// TrainSummary is the `train --json` run report, converting
// vectors.Trainer's Result (keyed by types.ContextModel) into a
// JSON-stable shape with string model keys.
type TrainSummary struct {
	FilesTrained   int            `json:"files_trained"`
	TokensVectors  map[string]int `json:"tokens_vectors"`
	BlocksCentroid int            `json:"blocks_centroid"`
}

// FromTrainResult converts the core's Result into the wire payload.
func FromTrainResult(r vectors.Result) TrainSummary {
	tv := make(map[string]int, len(r.TokensVectors))
	for model, n := range r.TokensVectors {
		tv[string(model)] = n
	}
	return TrainSummary{
		FilesTrained:   r.FilesTrained,
		TokensVectors:  tv,
		BlocksCentroid: r.BlocksCentroid,
	}
}

var trainSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"files_trained":   {Type: "integer"},
		"tokens_vectors":  {Type: "object"},
		"blocks_centroid": {Type: "integer"},
	},
	Required: []string{"files_trained", "tokens_vectors", "blocks_centroid"},
}

// MarshalTrain validates and encodes one training run summary.
func MarshalTrain(s TrainSummary) ([]byte, error) {
	return marshalValidated(trainSchema, s)
}
