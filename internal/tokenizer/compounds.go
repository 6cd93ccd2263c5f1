package tokenizer

import (
	"regexp"

	"github.com/trans/xerp-sub001/internal/types"
)

// Compound patterns run over the code-only mask of each line (string and
// comment interiors blanked to spaces), per spec.md §4.2 point 6: `A.B`,
// `A::B`, and optionally `A/N` (arity).
var (
	dotCompoundRe   = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)+\b`)
	scopeCompoundRe = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*(?:::[A-Za-z_][A-Za-z0-9_]*)+\b`)
	arityCompoundRe = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*/[0-9]+\b`)
)

// deriveCompounds scans each line's code mask and emits one compound
// occurrence per match of the dotted/scoped/arity patterns. Component atoms
// (e.g. `obj`, `method`) are already emitted separately by the main scan.
func deriveCompounds(codeMasks []string) []Occurrence {
	var occs []Occurrence
	for i, mask := range codeMasks {
		lineNum := i + 1
		for _, re := range []*regexp.Regexp{dotCompoundRe, scopeCompoundRe, arityCompoundRe} {
			for _, m := range re.FindAllString(mask, -1) {
				occs = append(occs, Occurrence{Text: m, Kind: types.KindCompound, Line: lineNum})
			}
		}
	}
	return occs
}
