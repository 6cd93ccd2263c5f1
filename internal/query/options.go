// Package query implements C8/C9 from spec.md §4.6: the query engine
// (tokenize -> expand -> candidate-gather -> assemble) and the scorer
// (TF*IDF salience, concentration/centroid clustering, feedback boost).
// Grounded on the teacher's internal/search/engine.go for the overall
// tokenize -> gather -> score -> truncate pipeline shape, and
// internal/semantic/semantic_scorer.go for combining several weighted
// factors into one final score.
package query

import (
	"github.com/trans/xerp-sub001/internal/config"
	"github.com/trans/xerp-sub001/internal/types"
)

// Options controls one Run call; every field has a config-derived default
// via DefaultOptions so CLI flags only need to override what the operator
// actually passed (spec.md §6 query flags table).
type Options struct {
	TopK          int
	MaxCandidates int
	ExpansionTopK int
	MinSimilarity float64
	MaxDFPercent  float64
	WIDF          float64
	WFeedback     float64
	ClusterMode   types.ClusterMode

	// Augment turns on query expansion (nearest-neighbor tokens admitted
	// as re-rank or, per ExpansionAdmitsCandidates, new candidates) and
	// switches clustering to centroid mode (spec.md §4.6.1/§4.6.2).
	Augment bool
	// NoSalience, combined with Augment, selects semantic-only mode
	// (spec.md §4.6.3): candidates are the top blocks by centroid cosine
	// similarity to the query centroid, bypassing lexical matching.
	NoSalience bool

	// ExpansionAdmitsCandidates resolves Open Question 1 (see DESIGN.md):
	// by default an expansion token only widens the candidate set when
	// the original token it came from has zero lexical hits, or when
	// semantic-only mode is active; otherwise it only re-ranks blocks
	// already reached lexically. Exposed so a caller can force it on.
	ExpansionAdmitsCandidates bool

	// ExpansionModel selects which trained context model's token vectors
	// feed nearest-neighbor expansion. Not named explicitly by spec.md;
	// the block/scope model is the default because its vectors carry
	// scope-aware co-occurrence rather than raw line adjacency.
	ExpansionModel types.ContextModel

	FilePathRegex string // spec.md §6 query --file REGEX, matched against rel_path
	FileType      types.FileType
	ContextLines  int
	MaxBlockLines int

	Explain bool
}

// DefaultOptions seeds Options from the loaded config's query group
// (spec.md §6 defaults table).
func DefaultOptions(cfg *config.Config) Options {
	return Options{
		TopK:                      cfg.Query.TopK,
		MaxCandidates:             cfg.Query.MaxCandidates,
		ExpansionTopK:             cfg.Query.ExpansionTopK,
		MinSimilarity:             cfg.Query.MinSimilarity,
		MaxDFPercent:              cfg.Query.MaxDFPercent,
		WIDF:                      cfg.Query.WIDF,
		WFeedback:                 cfg.Query.WFeedback,
		ClusterMode:               cfg.Query.ResolvedClusterMode(),
		Augment:                   false,
		NoSalience:                false,
		ExpansionAdmitsCandidates: false,
		ExpansionModel:            types.ModelBlock,
		MaxBlockLines:             cfg.Index.MaxBlockLines,
	}
}

// semanticOnly reports whether both augment and no-salience are set, the
// mode spec.md §4.6.3 defines entirely separately from lexical scoring.
func (o Options) semanticOnly() bool {
	return o.Augment && o.NoSalience
}

// effectiveClusterMode is concentration unless augment is set, in which
// case centroid mode is used (spec.md §4.6.1: "augment ... also switches
// clustering to centroid mode").
func (o Options) effectiveClusterMode() types.ClusterMode {
	if o.Augment {
		return types.ClusterCentroid
	}
	return types.ClusterConcentration
}
