package query

import (
	"context"
	"sort"

	"github.com/trans/xerp-sub001/internal/ann"
	"github.com/trans/xerp-sub001/internal/store"
	"github.com/trans/xerp-sub001/internal/tokenizer"
	"github.com/trans/xerp-sub001/internal/types"
	"github.com/trans/xerp-sub001/internal/vectors"
)

// term is one resolved query term: either an original query token or a
// nearest-neighbor expansion of one (spec.md §4.6.1).
type term struct {
	Text             string
	Kind             types.TokenKind
	TokenID          types.TokenID
	DF               int
	Found            bool // token exists in the vocabulary
	Similarity       float64
	FromQuery        string // "" for an original term, the source text for an expansion
	AdmitsCandidates bool
}

// distinctQueryTerms walks Occurrences in first-seen order so term order
// (and therefore any output depending on it) is deterministic regardless of
// Go's randomized map iteration over tokenizer.Result.Aggregate.
func distinctQueryTerms(res tokenizer.Result) []struct {
	Text string
	Kind types.TokenKind
} {
	seen := make(map[string]bool, len(res.Occurrences))
	var out []struct {
		Text string
		Kind types.TokenKind
	}
	for _, occ := range res.Occurrences {
		if seen[occ.Text] {
			continue
		}
		seen[occ.Text] = true
		kind := occ.Kind
		if agg, ok := res.Aggregate[occ.Text]; ok {
			kind = agg.Kind
		}
		out = append(out, struct {
			Text string
			Kind types.TokenKind
		}{occ.Text, kind})
	}
	return out
}

// resolveTerms resolves every distinct query token against the vocabulary
// and, when augment is set, appends up to ExpansionTopK nearest-neighbor
// expansions per eligible original term (spec.md §4.6.1). It returns the
// full term list plus the subset worth reporting as "expanded_tokens".
func (e *Engine) resolveTerms(ctx context.Context, originals []struct {
	Text string
	Kind types.TokenKind
}, opts Options) ([]term, []ExpandedToken, error) {
	nFiles, err := e.store.TotalFileCount(ctx)
	if err != nil {
		return nil, nil, err
	}

	terms := make([]term, 0, len(originals))
	hitCounts := make(map[string]int, len(originals))
	for _, o := range originals {
		t := term{Text: o.Text, Kind: o.Kind, Similarity: 1.0, AdmitsCandidates: true}
		row, err := e.store.GetTokenByText(ctx, o.Text)
		if err != nil {
			return nil, nil, err
		}
		if row != nil {
			t.Found = true
			t.TokenID = row.ID
			t.DF = row.DF
			postings, err := e.store.PostingsForToken(ctx, row.ID)
			if err != nil {
				return nil, nil, err
			}
			hitCounts[o.Text] = len(postings)
		}
		terms = append(terms, t)
	}

	var expanded []ExpandedToken
	if !opts.Augment {
		return terms, expanded, nil
	}

	neighborIndex, err := e.neighborIndex(ctx, opts.ExpansionModel)
	if err != nil {
		// Degrade to exact-only expansion (spec.md §7.4): no neighbors,
		// original terms still score and gather candidates normally.
		return terms, expanded, nil
	}

	for _, o := range originals {
		if !types.Eligible(o.Kind) {
			continue
		}
		base := findTerm(terms, o.Text)
		if base == nil || !base.Found {
			continue
		}
		vecBlob, ok, err := e.store.TokenVector(ctx, string(opts.ExpansionModel), base.TokenID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		vec, err := vectors.DecodeVector(vecBlob)
		if err != nil {
			continue
		}
		matches, err := neighborIndex.Search(vec, opts.ExpansionTopK+1)
		if err != nil {
			continue
		}
		admits := opts.ExpansionAdmitsCandidates || hitCounts[o.Text] == 0 || opts.semanticOnly()
		count := 0
		for _, m := range matches {
			if count >= opts.ExpansionTopK {
				break
			}
			if types.TokenID(m.Key) == base.TokenID {
				continue
			}
			if m.Similarity < opts.MinSimilarity {
				continue
			}
			row, err := e.store.GetTokenByID(ctx, types.TokenID(m.Key))
			if err != nil || row == nil {
				continue
			}
			if nFiles > 0 && float64(row.DF)/float64(nFiles) > opts.MaxDFPercent/100 {
				continue
			}
			terms = append(terms, term{
				Text:             row.Text,
				Kind:             row.Kind,
				TokenID:          row.ID,
				DF:               row.DF,
				Found:            true,
				Similarity:       m.Similarity,
				FromQuery:        o.Text,
				AdmitsCandidates: admits,
			})
			expanded = append(expanded, ExpandedToken{From: o.Text, To: row.Text, Similarity: m.Similarity})
			count++
		}
	}

	sort.SliceStable(expanded, func(i, j int) bool {
		if expanded[i].From != expanded[j].From {
			return expanded[i].From < expanded[j].From
		}
		return expanded[i].Similarity > expanded[j].Similarity
	})
	return terms, expanded, nil
}

func findTerm(terms []term, text string) *term {
	for i := range terms {
		if terms[i].Text == text && terms[i].FromQuery == "" {
			return &terms[i]
		}
	}
	return nil
}

// neighborIndex builds a brute-force ann.Index over every trained token
// vector for model, used to look up nearest neighbors for expansion. Built
// fresh per query rather than cached: spec.md §1 scopes ANN persistence to
// training-time acceleration, and re-decoding a few thousand blobs per
// query is well inside the reference's own performance envelope.
func (e *Engine) neighborIndex(ctx context.Context, model types.ContextModel) (*ann.Index, error) {
	blobs, err := e.store.AllTokenVectors(ctx, string(model))
	if err != nil {
		return nil, err
	}
	idx := ann.New(vectors.Dim)
	for tokenID, blob := range blobs {
		vec, err := vectors.DecodeVector(blob)
		if err != nil {
			continue
		}
		_ = idx.Add(ann.Key(tokenID), vec)
	}
	return idx, nil
}

// gatherCandidates resolves every admitting term's postings into a
// candidate block set: each (file, line) hit's block plus every ancestor
// up to the file root (spec.md §4.6.1). Capped at MaxCandidates; once the
// cap is hit no further blocks are admitted, though already-admitted blocks
// keep accumulating hits from later terms.
func (e *Engine) gatherCandidates(ctx context.Context, terms []term, opts Options) (map[types.BlockID]bool, error) {
	candidates := map[types.BlockID]bool{}
	lineMapCache := map[types.FileID][]types.BlockID{}
	blockCache := map[types.BlockID]*store.BlockRow{}

	admit := func(id types.BlockID) error {
		if candidates[id] {
			return nil
		}
		if len(candidates) >= opts.MaxCandidates {
			return nil
		}
		candidates[id] = true
		cur := id
		for {
			b, err := blockLookup(ctx, e.store, blockCache, cur)
			if err != nil {
				return err
			}
			if b == nil || b.ParentBlockID == nil {
				return nil
			}
			cur = *b.ParentBlockID
			candidates[cur] = true
		}
	}

	ordered := make([]term, len(terms))
	copy(ordered, terms)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Text < ordered[j].Text })

	for _, t := range ordered {
		if !t.Found || !t.AdmitsCandidates {
			continue
		}
		postings, err := e.store.PostingsForToken(ctx, t.TokenID)
		if err != nil {
			return nil, err
		}
		sort.Slice(postings, func(i, j int) bool { return postings[i].FileID < postings[j].FileID })
		for _, p := range postings {
			lineMap, ok := lineMapCache[p.FileID]
			if !ok {
				lm, err := e.store.ReadLineMap(ctx, p.FileID)
				if err != nil {
					return nil, err
				}
				lineMap = lm
				lineMapCache[p.FileID] = lineMap
			}
			lines, err := store.DecodeLines(p.LinesBlob)
			if err != nil {
				return nil, err
			}
			for _, ln := range lines {
				idx := int(ln) - 1
				if idx < 0 || idx >= len(lineMap) {
					continue
				}
				if err := admit(lineMap[idx]); err != nil {
					return nil, err
				}
			}
		}
	}
	return candidates, nil
}

func blockLookup(ctx context.Context, st *store.Store, cache map[types.BlockID]*store.BlockRow, id types.BlockID) (*store.BlockRow, error) {
	if b, ok := cache[id]; ok {
		return b, nil
	}
	b, err := st.BlockByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = b
	return b, nil
}
