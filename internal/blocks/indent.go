package blocks

import (
	"strings"

	"github.com/trans/xerp-sub001/internal/types"
)

// algolAdapter implements both the IndentAdapter and AlgolAdapter roles
// from spec.md §4.3: every code/config file goes through the same
// indentation-stack algorithm, with keyword-aware sibling splitting always
// enabled (the spec draws IndentAdapter/AlgolAdapter as the same primary
// algorithm, differing only in whether sibling-splitting is active; xerp
// enables it uniformly since code and config both benefit from splitting
// same-indent siblings like consecutive top-level functions).
type algolAdapter struct{}

func (algolAdapter) FileType() types.FileType { return types.FileTypeCode }

var codeExts = map[string]bool{
	".go": true, ".py": true, ".rb": true, ".cr": true, ".js": true, ".jsx": true,
	".ts": true, ".tsx": true, ".java": true, ".c": true, ".h": true, ".cpp": true,
	".hpp": true, ".cs": true, ".php": true, ".rs": true, ".swift": true, ".kt": true,
	".scala": true, ".lua": true, ".sh": true, ".bash": true, ".zig": true,
	".ex": true, ".exs": true, ".erl": true, ".hs": true, ".ml": true, ".clj": true,
	".yaml": true, ".yml": true, ".toml": true, ".json": true, ".ini": true, ".cfg": true,
}

func (algolAdapter) Supports(ext string) bool { return codeExts[ext] }

func (a algolAdapter) BuildBlocks(lines []string, opts Options) BuildResult {
	n := len(lines)
	if n == 0 {
		return BuildResult{}
	}

	tabWidth := opts.TabWidth
	if tabWidth <= 0 {
		tabWidth = detectTabWidth(lines)
	}
	indent := computeIndent(lines, tabWidth)

	firstNonBlank := -1
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			firstNonBlank = i
			break
		}
	}
	if firstNonBlank == -1 {
		// Entirely blank file: one empty root block covers it.
		return BuildResult{
			Blocks:    []Block{{Kind: types.BlockLayout, Level: 0, LineStart: 1, LineEnd: n, ParentIdx: -1, ContentHash: hashLines(lines, 1, n)}},
			LineBlock: make([]int, n),
		}
	}

	type frame struct {
		idx           int
		openingIndent int
		level         int
	}

	var blocks []Block
	lineAssign := make([]int, n) // 0-idx line -> block idx, filled for non-blank lines as we go
	for i := range lineAssign {
		lineAssign[i] = -1
	}

	push := func(parentIdx, level, lineStart1, openingIndent int) int {
		blocks = append(blocks, Block{
			Kind:      types.BlockLayout,
			Level:     level,
			LineStart: lineStart1,
			ParentIdx: parentIdx,
		})
		return len(blocks) - 1
	}

	rootIdx := push(-1, 0, firstNonBlank+1, indent[firstNonBlank])
	stack := []frame{{idx: rootIdx, openingIndent: indent[firstNonBlank], level: 0}}

	closeAt := func(idx int, endLine1 int) {
		blocks[idx].LineEnd = endLine1
	}

	for ln0 := firstNonBlank; ln0 < n; ln0++ {
		if strings.TrimSpace(lines[ln0]) == "" {
			continue
		}
		ln1 := ln0 + 1
		cur := indent[ln0]

		for len(stack) > 1 && cur < stack[len(stack)-1].openingIndent {
			top := stack[len(stack)-1]
			closeAt(top.idx, ln1-1)
			stack = stack[:len(stack)-1]
		}

		top := stack[len(stack)-1]
		switch {
		case cur > top.openingIndent:
			child := push(top.idx, top.level+1, ln1, cur)
			stack = append(stack, frame{idx: child, openingIndent: cur, level: top.level + 1})
			top = stack[len(stack)-1]
		case cur == top.openingIndent && ln1 != blocks[top.idx].LineStart && isSiblingSplit(lines[ln0], opts.Keywords):
			closeAt(top.idx, ln1-1)
			stack = stack[:len(stack)-1]
			parent := -1
			if len(stack) > 0 {
				parent = stack[len(stack)-1].idx
			}
			sib := push(parent, top.level, ln1, cur)
			stack = append(stack, frame{idx: sib, openingIndent: cur, level: top.level})
			top = stack[len(stack)-1]
		default:
			// line extends the current block
		}
		lineAssign[ln0] = top.idx
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		closeAt(top.idx, n)
		stack = stack[:len(stack)-1]
	}

	// Fill blank lines: inherit the following non-blank line's assignment,
	// falling back to the nearest preceding assignment for trailing blanks.
	for i := n - 1; i >= 0; i-- {
		if lineAssign[i] == -1 {
			if i+1 < n && lineAssign[i+1] != -1 {
				lineAssign[i] = lineAssign[i+1]
			}
		}
	}
	for i := 0; i < n; i++ {
		if lineAssign[i] == -1 {
			if i > 0 {
				lineAssign[i] = lineAssign[i-1]
			} else {
				lineAssign[i] = rootIdx
			}
		}
	}

	for i := range blocks {
		blocks[i].ContentHash = hashLines(lines, blocks[i].LineStart, blocks[i].LineEnd)
		blocks[i].Header = capText(firstLineText(lines, blocks[i].LineStart), 80)
	}

	return BuildResult{Blocks: blocks, LineBlock: lineAssign}
}

func firstLineText(lines []string, line1 int) string {
	if line1 < 1 || line1 > len(lines) {
		return ""
	}
	return lines[line1-1]
}

// isSiblingSplit implements spec.md §4.3.1 step 3: same indent as the open
// block, and the first token on the line is a header keyword.
func isSiblingSplit(line string, keywords *KeywordSet) bool {
	tok, ok := firstIdent(line)
	if !ok {
		return false
	}
	return keywords.IsHeaderKeyword(tok)
}

// detectTabWidth auto-detects indentation step as the most common positive
// leading-indent delta between consecutive non-blank lines, defaulting to 2
// when no signal is present (spec.md §4.3.1).
func detectTabWidth(lines []string) int {
	prev := -1
	counts := map[int]int{}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		cur := leadingSpaces(l)
		if prev >= 0 {
			d := cur - prev
			if d < 0 {
				d = -d
			}
			if d > 0 {
				counts[d]++
			}
		}
		prev = cur
	}
	best, bestCount := 2, 0
	for d, c := range counts {
		if c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

// leadingSpaces counts leading whitespace columns, expanding tabs to the
// next multiple of 8 the way a terminal would, before any tabWidth-based
// division happens in computeIndent.
func leadingSpaces(line string) int {
	col := 0
	for _, r := range line {
		switch r {
		case ' ':
			col++
		case '\t':
			col += 8 - (col % 8)
		default:
			return col
		}
	}
	return col
}

// computeIndent returns, for each 0-indexed line, indent[i] = leading
// columns / tabWidth (rounded down), with blank lines inheriting the
// following non-blank line's indent.
func computeIndent(lines []string, tabWidth int) []int {
	if tabWidth <= 0 {
		tabWidth = 2
	}
	n := len(lines)
	indent := make([]int, n)
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			indent[i] = -1 // placeholder, filled below
			continue
		}
		indent[i] = leadingSpaces(l) / tabWidth
	}
	for i := n - 1; i >= 0; i-- {
		if indent[i] == -1 {
			if i+1 < n {
				indent[i] = indent[i+1]
			} else {
				indent[i] = 0
			}
		}
	}
	return indent
}
