// Package feedback implements C10 from spec.md §4.7: append-only feedback
// events, the per-result running aggregate, and the per-token useful/
// not-useful accumulator the scorer reads back as a boost. Grounded on the
// teacher's internal/cache/metrics_cache.go for the shape of an
// in-process aggregate sitting in front of a slower backing store (there:
// sync.Map + atomic counters over an LRU; here: the store's own aggregate
// columns, since SQLite already serializes writers and a second in-memory
// cache would just be a second source of truth to keep consistent).
package feedback

import (
	"context"
	"database/sql"
	"time"

	"github.com/trans/xerp-sub001/internal/store"
	"github.com/trans/xerp-sub001/internal/types"
)

// Recorder records marks and answers the scorer's boost queries.
type Recorder struct {
	store *store.Store
}

// New wraps a store handle.
func New(st *store.Store) *Recorder {
	return &Recorder{store: st}
}

// Mark appends a FeedbackEvent for resultID, clamping score to [-1, +1]
// (spec.md §3 FeedbackEvent, §4.7). When fileID/lineStart/lineEnd are all
// supplied, every token with at least one occurrence inside
// [lineStart, lineEnd] in that file has the score folded into its
// per-token aggregate.
func (r *Recorder) Mark(ctx context.Context, resultID string, score float64, note string, fileID *types.FileID, lineStart, lineEnd *int) error {
	score = clamp(score, -1, 1)

	var tokenIDs []types.TokenID
	if fileID != nil && lineStart != nil && lineEnd != nil {
		ids, err := r.tokensInRange(ctx, *fileID, *lineStart, *lineEnd)
		if err != nil {
			return err
		}
		tokenIDs = ids
	}

	ev := store.FeedbackEventRow{
		ResultID:  resultID,
		Score:     score,
		Note:      note,
		FileID:    fileID,
		LineStart: lineStart,
		LineEnd:   lineEnd,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	return r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		return store.RecordFeedback(ctx, tx, ev, tokenIDs)
	})
}

func (r *Recorder) tokensInRange(ctx context.Context, fileID types.FileID, lineStart, lineEnd int) ([]types.TokenID, error) {
	postings, err := r.store.PostingsForFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	var out []types.TokenID
	for _, p := range postings {
		lines, err := store.DecodeLines(p.LinesBlob)
		if err != nil {
			return nil, err
		}
		for _, l := range lines {
			if int(l) >= lineStart && int(l) <= lineEnd {
				out = append(out, p.TokenID)
				break
			}
		}
	}
	return out, nil
}

// ResultAggregate returns the running feedback aggregate for a result id.
func (r *Recorder) ResultAggregate(ctx context.Context, resultID string) (float64, bool, error) {
	agg, _, ok, err := r.store.ResultStats(ctx, resultID)
	return agg, ok, err
}

// SimilarityBoost computes the effective-similarity multiplier spec.md
// §4.6.2 defines: `sim(t) <- sim(t) * (1 + a*useful - b*not_useful)`,
// floored at 0 so feedback can never flip a term's sign.
func (r *Recorder) SimilarityBoost(ctx context.Context, tokenID types.TokenID, a, b float64) (float64, error) {
	useful, notUseful, err := r.store.TokenStats(ctx, tokenID)
	if err != nil {
		return 1, err
	}
	factor := 1 + a*useful - b*notUseful
	if factor < 0 {
		factor = 0
	}
	return factor, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
