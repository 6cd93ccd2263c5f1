package query

import "sort"

// rankAndTruncate orders scored blocks by descending score, breaking ties
// by (distinct-tokens, hits, depth) descending and finally by ascending
// result_id (Open Question decision 3, DESIGN.md), then keeps the top k.
// result_id must already be set on every Result before calling this.
func rankAndTruncate(results []scored, k int) []scored {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Result, results[j].Result
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.distinctTerms != b.distinctTerms {
			return a.distinctTerms > b.distinctTerms
		}
		if a.Hits != b.Hits {
			return a.Hits > b.Hits
		}
		if a.depth != b.depth {
			return a.depth > b.depth
		}
		return a.ResultID < b.ResultID
	})
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results
}
