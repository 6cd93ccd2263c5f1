package vectors

import (
	"github.com/trans/xerp-sub001/internal/types"
)

// Accumulator collects symmetric co-occurrence counts for one context
// model sweep (spec.md §4.5: "accumulate count[(token_a, token_b)]
// symmetrically"). It is not safe for concurrent writes; callers sweep one
// file (or one block subtree) per Accumulator and merge afterward with
// Merge.
type Accumulator struct {
	counts map[types.TokenID]map[types.TokenID]int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{counts: map[types.TokenID]map[types.TokenID]int{}}
}

// Add records one symmetric co-occurrence observation between x and y,
// writing both (x, y) and (y, x) so either token's sparse vector can be
// read back directly. Self-pairs are not meaningful co-occurrence and are
// skipped.
func (a *Accumulator) Add(x, y types.TokenID, delta int) {
	if x == y || delta == 0 {
		return
	}
	a.bump(x, y, delta)
	a.bump(y, x, delta)
}

func (a *Accumulator) bump(tok, ctx types.TokenID, delta int) {
	m, ok := a.counts[tok]
	if !ok {
		m = map[types.TokenID]int{}
		a.counts[tok] = m
	}
	m[ctx] += delta
}

// Merge folds other's counts into a.
func (a *Accumulator) Merge(other *Accumulator) {
	for tok, ctxs := range other.counts {
		for ctx, count := range ctxs {
			a.bump(tok, ctx, count)
		}
	}
}

// Sparse returns the {context_id -> count} map accumulated for tok so far,
// or nil if tok was never observed.
func (a *Accumulator) Sparse(tok types.TokenID) map[types.TokenID]int {
	return a.counts[tok]
}

// Tokens returns every token with at least one accumulated pair.
func (a *Accumulator) Tokens() []types.TokenID {
	out := make([]types.TokenID, 0, len(a.counts))
	for tok := range a.counts {
		out = append(out, tok)
	}
	return out
}

// sweepAll emits every unordered pair within a single context unit (a line
// window, a leaf block, or a set of sibling headers) exactly once; Add
// mirrors it into the symmetric direction.
func sweepAll(acc *Accumulator, tokens []types.TokenID) {
	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			acc.Add(tokens[i], tokens[j], 1)
		}
	}
}

// LineSweep builds the line model for one file (spec.md §4.5): the sweep
// unit is the whole file's token stream; each position pairs with every
// position within window W ahead of it (Add mirrors the other direction),
// giving a symmetric window of radius W.
func LineSweep(stream []types.TokenID, window int) *Accumulator {
	acc := NewAccumulator()
	n := len(stream)
	for p := 0; p < n; p++ {
		limit := p + window
		if limit >= n {
			limit = n - 1
		}
		for q := p + 1; q <= limit; q++ {
			acc.Add(stream[p], stream[q], 1)
		}
	}
	return acc
}

// BlockNode is the minimal block-forest shape the scope sweep needs: a
// flat, parent-index array exactly as blocks.Block represents it in memory
// before database insertion (spec.md §9).
type BlockNode struct {
	LineStart int
	LineEnd   int
	ParentIdx int // -1 for a root
}

// BlockSweep builds the block (scope) model for one file (spec.md §4.5):
// leaf blocks sweep every token in their line range together; non-leaf
// blocks sweep only the header (first-line) token set of each child
// together, excluding children's bodies; top-level blocks are swept at
// file level by the same rule, treating the whole set of roots as if they
// were children of an implicit file-level node.
func BlockSweep(nodes []BlockNode, lineTokens map[int][]types.TokenID) *Accumulator {
	acc := NewAccumulator()
	children := childrenIndex(nodes)

	var walk func(i int)
	walk = func(i int) {
		kids := children[i]
		if len(kids) == 0 {
			sweepAll(acc, tokensInRange(lineTokens, nodes[i].LineStart, nodes[i].LineEnd))
			return
		}
		var headers []types.TokenID
		for _, k := range kids {
			headers = append(headers, lineTokens[nodes[k].LineStart]...)
		}
		sweepAll(acc, headers)
		for _, k := range kids {
			walk(k)
		}
	}

	var roots []int
	for i, b := range nodes {
		if b.ParentIdx < 0 {
			roots = append(roots, i)
		}
	}
	if len(roots) > 0 {
		var fileHeaders []types.TokenID
		for _, r := range roots {
			fileHeaders = append(fileHeaders, lineTokens[nodes[r].LineStart]...)
		}
		sweepAll(acc, fileHeaders)
	}
	for _, r := range roots {
		walk(r)
	}
	return acc
}

func childrenIndex(nodes []BlockNode) map[int][]int {
	out := make(map[int][]int, len(nodes))
	for i, b := range nodes {
		if b.ParentIdx >= 0 {
			out[b.ParentIdx] = append(out[b.ParentIdx], i)
		}
	}
	return out
}

func tokensInRange(lineTokens map[int][]types.TokenID, start, end int) []types.TokenID {
	var out []types.TokenID
	for line := start; line <= end; line++ {
		out = append(out, lineTokens[line]...)
	}
	return out
}
