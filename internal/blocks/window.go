package blocks

import "github.com/trans/xerp-sub001/internal/types"

// windowAdapter implements spec.md §4.3's fallback for unknown/plain text:
// flat windows of <= W lines, consecutive windows overlapping by O lines,
// all kind=window, level=0.
type windowAdapter struct{}

func (windowAdapter) FileType() types.FileType { return types.FileTypeText }

// Supports is never consulted directly; ClassifyAndSelect falls back to
// windowAdapter whenever no other adapter recognizes the extension.
func (windowAdapter) Supports(ext string) bool { return false }

func (windowAdapter) BuildBlocks(lines []string, opts Options) BuildResult {
	n := len(lines)
	if n == 0 {
		return BuildResult{}
	}
	w := opts.WindowSize
	if w <= 0 {
		w = 50
	}
	o := opts.WindowOverlap
	if o < 0 || o >= w {
		o = 0
	}
	step := w - o

	var blocks []Block
	lineBlock := make([]int, n)
	start := 1
	for start <= n {
		end := start + w - 1
		if end > n {
			end = n
		}
		idx := len(blocks)
		blocks = append(blocks, Block{
			Kind:        types.BlockWindow,
			Level:       0,
			LineStart:   start,
			LineEnd:     end,
			ParentIdx:   -1,
			ContentHash: hashLines(lines, start, end),
		})
		// Non-overlapping ownership for the line->block map: each window
		// owns its lines up to where the next window starts, so lines in an
		// overlap belong to the later window, and the last window owns every
		// line through the end of the file. Every line thus maps to exactly
		// one block that contains it (spec.md §3 invariant 3).
		ownEnd := end
		if end < n && start+step-1 < ownEnd {
			ownEnd = start + step - 1
		}
		for l := start; l <= ownEnd; l++ {
			lineBlock[l-1] = idx
		}
		if end == n {
			break
		}
		start += step
	}
	return BuildResult{Blocks: blocks, LineBlock: lineBlock}
}
