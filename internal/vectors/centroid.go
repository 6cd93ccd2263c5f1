package vectors

import (
	"math"
	"sort"

	"github.com/trans/xerp-sub001/internal/types"
)

// LeafCentroid builds a leaf block's centroid (spec.md §4.5): collect its
// eligible tokens, keep the top `percent` by IDF (clamped to [min, max]),
// average their sparse vectors weighted by IDF, dense-project, normalize.
// idf and sparse are callbacks so the trainer can serve them from
// in-memory maps built once per training run rather than hitting the store
// per token.
func LeafCentroid(eligibleTokens []types.TokenID, idf func(types.TokenID) float64, sparse func(types.TokenID) map[types.TokenID]int, percent float64, min, max int) ([]float64, float64) {
	uniq := dedupeTokenIDs(eligibleTokens)
	if len(uniq) == 0 {
		return make([]float64, Dim), 0
	}

	sort.Slice(uniq, func(i, j int) bool { return idf(uniq[i]) > idf(uniq[j]) })

	k := int(math.Round(percent * float64(len(uniq))))
	if k < min {
		k = min
	}
	if k > max {
		k = max
	}
	if k > len(uniq) {
		k = len(uniq)
	}
	if k < 1 {
		k = 1
	}
	selected := uniq[:k]

	combined := map[types.TokenID]float64{}
	var totalWeight float64
	for _, tok := range selected {
		w := idf(tok)
		totalWeight += w
		for ctx, count := range sparse(tok) {
			combined[ctx] += w * float64(count)
		}
	}
	if totalWeight > 0 {
		for ctx := range combined {
			combined[ctx] /= totalWeight
		}
	}

	dense := Project(combined)
	norm := Normalize(dense)
	return dense, norm
}

// ParentCentroid builds a non-leaf block's centroid as the unweighted mean
// of its children's already-computed dense centroids, renormalized
// (spec.md §4.5).
func ParentCentroid(childDense [][]float64) ([]float64, float64) {
	if len(childDense) == 0 {
		return make([]float64, Dim), 0
	}
	mean := make([]float64, Dim)
	for _, v := range childDense {
		for i, x := range v {
			mean[i] += x
		}
	}
	for i := range mean {
		mean[i] /= float64(len(childDense))
	}
	norm := Normalize(mean)
	return mean, norm
}

// QueryCentroid builds a query's centroid as the IDF-weighted mean of its
// tokens' dense vectors, renormalized (spec.md §4.6.2 centroid-mode
// clustering: "the IDF-weighted mean of its tokens' dense vectors").
func QueryCentroid(tokenVectors map[types.TokenID][]float64, idf func(types.TokenID) float64) ([]float64, float64) {
	mean := make([]float64, Dim)
	var totalWeight float64
	for tok, vec := range tokenVectors {
		w := idf(tok)
		totalWeight += w
		for i, x := range vec {
			mean[i] += w * x
		}
	}
	if totalWeight > 0 {
		for i := range mean {
			mean[i] /= totalWeight
		}
	}
	norm := Normalize(mean)
	return mean, norm
}

func dedupeTokenIDs(ids []types.TokenID) []types.TokenID {
	seen := make(map[types.TokenID]struct{}, len(ids))
	out := make([]types.TokenID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
