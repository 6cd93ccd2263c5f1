package blocks

import (
	"regexp"

	"github.com/trans/xerp-sub001/internal/types"
)

// markdownAdapter implements spec.md §4.3's Markdown rule: a line matching
// `^(#{1,6})\s+` opens a heading block of level = #-count, closing just
// before the next heading of equal-or-lower level.
type markdownAdapter struct{}

func (markdownAdapter) FileType() types.FileType { return types.FileTypeMarkdown }

var markdownExts = map[string]bool{".md": true, ".markdown": true}

func (markdownAdapter) Supports(ext string) bool { return markdownExts[ext] }

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

func (markdownAdapter) BuildBlocks(lines []string, opts Options) BuildResult {
	n := len(lines)
	if n == 0 {
		return BuildResult{}
	}

	type heading struct {
		level     int
		lineStart int // 1-indexed
		text      string
		parentIdx int
	}
	var headings []heading
	var stack []int // indices into headings, by level (stack top = innermost open heading)

	for i, l := range lines {
		m := headingRe.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		level := len(m[1])
		for len(stack) > 0 && headings[stack[len(stack)-1]].level >= level {
			stack = stack[:len(stack)-1]
		}
		parent := -1
		if len(stack) > 0 {
			parent = stack[len(stack)-1]
		}
		headings = append(headings, heading{level: level, lineStart: i + 1, text: m[2], parentIdx: parent})
		stack = append(stack, len(headings)-1)
	}

	capChars := opts.HeaderCapChars
	if capChars <= 0 {
		capChars = 80
	}

	if len(headings) == 0 {
		// No headings at all: whole file is one heading-less block, still
		// reported with Kind=heading/level 0 so the adapter contract is
		// uniform (every line maps to exactly one block).
		return BuildResult{
			Blocks:    []Block{{Kind: types.BlockHeading, Level: 0, LineStart: 1, LineEnd: n, ParentIdx: -1, ContentHash: hashLines(lines, 1, n)}},
			LineBlock: make([]int, n),
		}
	}

	// Lines before the first heading belong to no heading's [LineStart,
	// LineEnd] range (spec.md §3.3: a line's block must actually contain
	// it), so they get their own level-0 preamble block instead of being
	// folded into the first heading's range.
	offset := 0
	blocks := make([]Block, 0, len(headings)+1)
	if headings[0].lineStart > 1 {
		blocks = append(blocks, Block{
			Kind:        types.BlockHeading,
			Level:       0,
			LineStart:   1,
			LineEnd:     headings[0].lineStart - 1,
			ParentIdx:   -1,
			ContentHash: hashLines(lines, 1, headings[0].lineStart-1),
		})
		offset = 1
	}

	for idx, h := range headings {
		end := n
		for j := idx + 1; j < len(headings); j++ {
			if headings[j].level <= h.level {
				end = headings[j].lineStart - 1
				break
			}
		}
		parentIdx := h.parentIdx
		if parentIdx >= 0 {
			parentIdx += offset
		}
		blocks = append(blocks, Block{
			Kind:        types.BlockHeading,
			Level:       h.level,
			LineStart:   h.lineStart,
			LineEnd:     end,
			ParentIdx:   parentIdx,
			ContentHash: hashLines(lines, h.lineStart, end),
			Header:      capText(h.text, capChars),
		})
	}

	lineBlock := make([]int, n)
	for i := 0; i < n; i++ {
		ln1 := i + 1
		// Prefer the innermost (deepest, i.e. highest level) containing block.
		best := -1
		for idx, b := range blocks {
			if ln1 >= b.LineStart && ln1 <= b.LineEnd {
				if best == -1 || b.Level > blocks[best].Level {
					best = idx
				}
			}
		}
		if best == -1 {
			best = 0
		}
		lineBlock[i] = best
	}

	return BuildResult{Blocks: blocks, LineBlock: lineBlock}
}
