package query

import (
	"context"
	"math"
	"sort"

	"github.com/trans/xerp-sub001/internal/store"
	"github.com/trans/xerp-sub001/internal/types"
	"github.com/trans/xerp-sub001/internal/vectors"
)

// clusterLambda is the fixed weight spec.md §4.6.2 gives the clustering
// bonus: `score(B) = S(B) * (1 + lambda*cluster(B))`.
const clusterLambda = 0.2

// scored pairs a half-built Result with the BlockRow it was computed
// against, since assembly (ancestry, snippet, result_id) still needs the
// block's file id and content hash.
type scored struct {
	Result Result
	Block  store.BlockRow
}

// scoreCandidates implements spec.md §4.6.2's salience formula over every
// candidate block, then spec.md §4.6.1's clustering bonus, grounded on the
// teacher's semantic_scorer.go pattern of combining several independently
// computed weighted factors into one final score.
func (e *Engine) scoreCandidates(ctx context.Context, candidateIDs map[types.BlockID]bool, terms []term, opts Options, idf func(types.TokenID) float64, queryCentroid []float64) ([]scored, error) {
	ids := make([]types.BlockID, 0, len(candidateIDs))
	for id := range candidateIDs {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	blocks, err := e.store.BlocksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	hitLines, err := e.termHitLines(ctx, terms)
	if err != nil {
		return nil, err
	}

	clusterMode := opts.effectiveClusterMode()

	out := make([]scored, 0, len(ids))
	for _, id := range ids {
		block, ok := blocks[id]
		if !ok {
			continue
		}
		s, err := e.scoreBlock(ctx, block, terms, hitLines, idf, opts, clusterMode, queryCentroid)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// termHitLines precomputes, per distinct resolved token, the per-file line
// set it occurs on, so scoring each candidate block is a pure in-memory
// range lookup rather than a store round trip.
func (e *Engine) termHitLines(ctx context.Context, terms []term) (map[types.TokenID]map[types.FileID][]int, error) {
	out := map[types.TokenID]map[types.FileID][]int{}
	for _, t := range terms {
		if !t.Found {
			continue
		}
		if _, done := out[t.TokenID]; done {
			continue
		}
		postings, err := e.store.PostingsForToken(ctx, t.TokenID)
		if err != nil {
			return nil, err
		}
		perFile := make(map[types.FileID][]int, len(postings))
		for _, p := range postings {
			lines, err := store.DecodeLines(p.LinesBlob)
			if err != nil {
				return nil, err
			}
			ls := make([]int, len(lines))
			for i, l := range lines {
				ls[i] = int(l)
			}
			perFile[p.FileID] = ls
		}
		out[t.TokenID] = perFile
	}
	return out, nil
}

func (e *Engine) scoreBlock(ctx context.Context, block store.BlockRow, terms []term, hitLines map[types.TokenID]map[types.FileID][]int, idf func(types.TokenID) float64, opts Options, clusterMode types.ClusterMode, queryCentroid []float64) (scored, error) {
	var sumC float64
	var hits int
	distinctSeen := map[types.TokenID]bool{}
	var explainTerms []TermExplain

	for _, t := range terms {
		if !t.Found {
			continue
		}
		linesInRange := linesWithin(hitLines[t.TokenID][block.FileID], block.LineStart, block.LineEnd)
		tf := len(linesInRange)
		if tf == 0 {
			continue
		}
		sim, err := e.feedback.SimilarityBoost(ctx, t.TokenID, opts.WFeedback, opts.WFeedback)
		if err != nil {
			sim = 1
		}
		effSim := t.Similarity * sim
		c := math.Log(1+float64(tf)) * idf(t.TokenID) * types.KindWeight[t.Kind] * effSim
		sumC += c
		hits += tf
		distinctSeen[t.TokenID] = true
		if opts.Explain {
			explainTerms = append(explainTerms, TermExplain{
				Token: t.Text, FromQuery: t.FromQuery, Similarity: effSim,
				Lines: linesInRange, contribution: c,
			})
		}
	}

	salience := sumC / math.Sqrt(1+float64(block.TokenCount))

	var clusterVal float64
	switch clusterMode {
	case types.ClusterCentroid:
		clusterVal = e.centroidCluster(ctx, block, queryCentroid)
	default:
		clusterVal = e.concentrationCluster(ctx, block, hitLines)
	}

	score := salience * (1 + clusterLambda*clusterVal)

	res := Result{
		LineStart:     block.LineStart,
		LineEnd:       block.LineEnd,
		Score:         score,
		Salience:      salience,
		Cluster:       clusterVal,
		Hits:          hits,
		distinctTerms: len(distinctSeen),
		depth:         block.Level,
	}
	if opts.Explain {
		sort.SliceStable(explainTerms, func(i, j int) bool { return explainTerms[i].contribution > explainTerms[j].contribution })
		res.Explain = &ExplainData{Terms: explainTerms, Salience: salience, Cluster: clusterVal, ClusterMode: clusterMode}
	}
	return scored{Result: res, Block: block}, nil
}

// concentrationCluster implements spec.md §4.6.2's default clustering
// measure: entropy of hits distributed across a block's immediate children.
// A block with no children, or fewer than two children actually hit, has no
// meaningful concentration to measure and scores 0.
func (e *Engine) concentrationCluster(ctx context.Context, block store.BlockRow, hitLines map[types.TokenID]map[types.FileID][]int) float64 {
	children, err := e.store.ChildrenOf(ctx, block.ID)
	if err != nil || len(children) == 0 {
		return 0
	}

	counts := make([]int, 0, len(children))
	var total int
	for _, c := range children {
		n := 0
		for _, perFile := range hitLines {
			n += countInRange(perFile[c.FileID], c.LineStart, c.LineEnd)
		}
		if n > 0 {
			counts = append(counts, n)
			total += n
		}
	}
	if total < 2 || len(counts) < 2 {
		return 0
	}

	var h float64
	for _, n := range counts {
		p := float64(n) / float64(total)
		h -= p * math.Log(p)
	}
	hmax := math.Log(float64(len(counts)))
	if hmax == 0 {
		return 0
	}
	cluster := 1 - h/hmax
	if cluster < 0 {
		cluster = 0
	}
	if cluster > 1 {
		cluster = 1
	}
	return cluster
}

// centroidCluster implements augment mode's clustering measure: cosine
// similarity between the query centroid and the block's own centroid,
// clamped below at 0 by vectors.Cosine itself.
func (e *Engine) centroidCluster(ctx context.Context, block store.BlockRow, queryCentroid []float64) float64 {
	if queryCentroid == nil {
		return 0
	}
	blob, ok, err := e.store.BlockCentroid(ctx, block.ID)
	if err != nil || !ok {
		return 0
	}
	vec, err := vectors.DecodeVector(blob)
	if err != nil {
		return 0
	}
	return vectors.Cosine(queryCentroid, vec)
}

func countInRange(lines []int, start, end int) int {
	n := 0
	for _, l := range lines {
		if l >= start && l <= end {
			n++
		}
	}
	return n
}

func linesWithin(lines []int, start, end int) []int {
	var out []int
	for _, l := range lines {
		if l >= start && l <= end {
			out = append(out, l)
		}
	}
	return out
}
