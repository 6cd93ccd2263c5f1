package query

import (
	"context"
	"math"

	"github.com/trans/xerp-sub001/internal/ann"
	"github.com/trans/xerp-sub001/internal/feedback"
	"github.com/trans/xerp-sub001/internal/store"
	"github.com/trans/xerp-sub001/internal/tokenizer"
	"github.com/trans/xerp-sub001/internal/types"
	"github.com/trans/xerp-sub001/internal/vectors"
)

// Engine runs queries against a trained store: tokenize -> expand ->
// gather -> score -> rank -> assemble (spec.md §4.6). Grounded on the
// teacher's internal/search.Engine (one long-lived engine wrapping the
// index, exposing a single entry point per query).
type Engine struct {
	store     *store.Store
	feedback  *feedback.Recorder
	tokenizer *tokenizer.Tokenizer
}

// New wraps a trained store.
func New(st *store.Store) *Engine {
	return &Engine{
		store:     st,
		feedback:  feedback.New(st),
		tokenizer: tokenizer.New(tokenizer.DefaultConfig()),
	}
}

// Run executes one query end to end and returns the JSON-ready response
// (spec.md §6 JSON result schema). elapsedMs is supplied by the caller
// (the CLI layer) so this package never reaches for wall-clock time itself.
func (e *Engine) Run(ctx context.Context, queryText string, opts Options, elapsedMs func() int64) (Response, error) {
	tokenized := e.tokenizer.Tokenize([]string{queryText})
	originals := distinctQueryTerms(tokenized)
	if len(originals) == 0 {
		return Response{Query: queryText, Top: opts.TopK, TimingMs: elapsedMs()}, nil
	}

	terms, expanded, err := e.resolveTerms(ctx, originals, opts)
	if err != nil {
		return Response{}, err
	}

	nFiles, err := e.store.TotalFileCount(ctx)
	if err != nil {
		return Response{}, err
	}
	dfByToken := make(map[types.TokenID]int, len(terms))
	for _, t := range terms {
		if t.Found {
			dfByToken[t.TokenID] = t.DF
		}
	}
	// w_idf dampens the IDF term's pull toward 1.0 (spec.md §6 "w_idf ...
	// boost weight"); at the default 0.1 it mostly neutralizes IDF,
	// at 1.0 it reproduces the raw formula. See DESIGN.md decision 5.
	idf := func(tokenID types.TokenID) float64 {
		raw := math.Log(float64(nFiles+1)/float64(dfByToken[tokenID]+1)) + 1
		return 1 + opts.WIDF*(raw-1)
	}

	var queryCentroid []float64
	if opts.Augment {
		queryCentroid, err = e.buildQueryCentroid(ctx, terms, idf)
		if err != nil {
			return Response{}, err
		}
	}

	var results []scored
	var hitLines map[types.TokenID]map[types.FileID][]int
	if opts.semanticOnly() {
		results, err = e.semanticOnlyCandidates(ctx, queryCentroid, opts)
		if err != nil {
			return Response{}, err
		}
	} else {
		candidateIDs, err := e.gatherCandidates(ctx, terms, opts)
		if err != nil {
			return Response{}, err
		}
		results, err = e.scoreCandidates(ctx, candidateIDs, terms, opts, idf, queryCentroid)
		if err != nil {
			return Response{}, err
		}
		hitLines, err = e.termHitLines(ctx, terms)
		if err != nil {
			return Response{}, err
		}
	}

	fileRows, err := e.fileRowsFor(ctx, results)
	if err != nil {
		return Response{}, err
	}
	results, err = filterResultsByFile(results, fileRows, opts)
	if err != nil {
		return Response{}, err
	}
	assembled, err := e.assemble(ctx, results, fileRows, hitLines, opts)
	if err != nil {
		return Response{}, err
	}
	for i := range assembled {
		results[i].Result = assembled[i]
	}

	ranked := rankAndTruncate(results, opts.TopK)
	final := make([]Result, len(ranked))
	for i, r := range ranked {
		final[i] = r.Result
	}

	return Response{
		Query:          queryText,
		Top:            opts.TopK,
		TimingMs:       elapsedMs(),
		ExpandedTokens: expanded,
		Results:        final,
	}, nil
}

// buildQueryCentroid decodes every resolved original term's block-model
// token vector and folds them into an IDF-weighted centroid (spec.md
// §4.6.2 centroid-mode clustering and §4.6.3 semantic-only mode share this
// centroid).
func (e *Engine) buildQueryCentroid(ctx context.Context, terms []term, idf func(types.TokenID) float64) ([]float64, error) {
	vecs := map[types.TokenID][]float64{}
	for _, t := range terms {
		if !t.Found || t.FromQuery != "" {
			continue
		}
		blob, ok, err := e.store.TokenVector(ctx, string(types.ModelBlock), t.TokenID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		vec, err := vectors.DecodeVector(blob)
		if err != nil {
			continue
		}
		vecs[t.TokenID] = vec
	}
	centroid, _ := vectors.QueryCentroid(vecs, idf)
	return centroid, nil
}

// semanticOnlyCandidates implements spec.md §4.6.3: when both augment and
// no-salience are set, the candidate set and the score are both the
// centroid cosine similarity to the query centroid, bypassing lexical
// matching and the salience/cluster formula entirely.
func (e *Engine) semanticOnlyCandidates(ctx context.Context, queryCentroid []float64, opts Options) ([]scored, error) {
	if queryCentroid == nil {
		return nil, nil
	}
	blobs, err := e.store.AllBlockCentroids(ctx)
	if err != nil {
		return nil, err
	}
	idx := ann.New(vectors.Dim)
	for blockID, blob := range blobs {
		vec, err := vectors.DecodeVector(blob)
		if err != nil {
			continue
		}
		_ = idx.Add(ann.Key(blockID), vec)
	}
	n := opts.MaxCandidates
	if n <= 0 {
		n = opts.TopK
	}
	matches, err := idx.Search(queryCentroid, n)
	if err != nil {
		return nil, err
	}

	out := make([]scored, 0, len(matches))
	for _, m := range matches {
		block, err := e.store.BlockByID(ctx, types.BlockID(m.Key))
		if err != nil || block == nil {
			continue
		}
		out = append(out, scored{
			Result: Result{
				LineStart: block.LineStart,
				LineEnd:   block.LineEnd,
				Score:     m.Similarity,
				Salience:  0,
				Cluster:   m.Similarity,
				Hits:      0,
				depth:     block.Level,
			},
			Block: *block,
		})
	}
	return out, nil
}

func (e *Engine) fileRowsFor(ctx context.Context, results []scored) (map[types.FileID]store.FileRow, error) {
	out := map[types.FileID]store.FileRow{}
	files, err := e.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[types.FileID]store.FileRow, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}
	for _, r := range results {
		if f, ok := byID[r.Block.FileID]; ok {
			out[r.Block.FileID] = f
		}
	}
	return out, nil
}
