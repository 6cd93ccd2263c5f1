package blocks

import (
	"regexp"
	"sort"
)

// KeywordSet is the merged header/footer keyword tier used by the
// AlgolAdapter to decide sibling splits (spec.md §4.3.1): hardcoded
// defaults plus learned keywords persisted from prior training runs.
// Learned keywords win on conflict, i.e. they are always added to the
// effective set regardless of whether the default tier already has an
// opinion about that token.
type KeywordSet struct {
	defaults map[string]bool
	learned  map[string]bool
}

// hardcodedHeaderKeywords is spec.md §4.3.1's example list.
var hardcodedHeaderKeywords = []string{
	"def", "class", "function", "fn", "if", "for", "while", "import", "let", "const",
}

// DefaultKeywords returns a KeywordSet with only the hardcoded tier
// populated.
func DefaultKeywords() *KeywordSet {
	ks := &KeywordSet{
		defaults: make(map[string]bool, len(hardcodedHeaderKeywords)),
		learned:  map[string]bool{},
	}
	for _, k := range hardcodedHeaderKeywords {
		ks.defaults[k] = true
	}
	return ks
}

// WithLearned returns a copy of ks with the learned tier replaced. Learned
// keywords are tokens observed on the first or last line of existing blocks
// at ratio >= 3% with at least 5 occurrences (computed by LearnKeywords
// from the block edge lines the indexer reads back from the store).
func (ks *KeywordSet) WithLearned(learned []string) *KeywordSet {
	next := &KeywordSet{
		defaults: ks.defaults,
		learned:  make(map[string]bool, len(learned)),
	}
	for _, k := range learned {
		next.learned[k] = true
	}
	return next
}

// IsHeaderKeyword reports whether tok is a header keyword in either tier.
func (ks *KeywordSet) IsHeaderKeyword(tok string) bool {
	if ks == nil {
		return false
	}
	return ks.learned[tok] || ks.defaults[tok]
}

// learnedMinCount and learnedMinRatio are spec.md §4.3.1's thresholds for
// promoting an edge-line token into the learned tier.
const (
	learnedMinCount = 5
	learnedMinRatio = 0.03
)

// EdgeLines is one existing block's first and last source line, the raw
// material LearnKeywords trains the learned tier from.
type EdgeLines struct {
	First string
	Last  string
}

// LearnKeywords implements spec.md §4.3.1's learned tier: tokens appearing
// on the first or last line of existing blocks, at ratio >= 3% with at
// least 5 occurrences across every block edge supplied. A token appearing
// on both edges of the same block counts once for that block, not twice,
// so a one-line block can't inflate its own ratio contribution.
func LearnKeywords(edges []EdgeLines) []string {
	if len(edges) == 0 {
		return nil
	}
	counts := map[string]int{}
	for _, e := range edges {
		perBlock := map[string]bool{}
		if tok, ok := firstIdent(e.First); ok {
			perBlock[tok] = true
		}
		if tok, ok := firstIdent(e.Last); ok {
			perBlock[tok] = true
		}
		for tok := range perBlock {
			counts[tok]++
		}
	}
	total := float64(len(edges))
	var out []string
	for tok, c := range counts {
		if c >= learnedMinCount && float64(c)/total >= learnedMinRatio {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}

var firstIdentRe = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)`)

// firstIdent extracts the first non-whitespace identifier-shaped token on a
// line, used to test against the keyword tiers.
func firstIdent(line string) (string, bool) {
	m := firstIdentRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}
