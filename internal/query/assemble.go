package query

import (
	"context"
	"regexp"

	"github.com/trans/xerp-sub001/internal/hashutil"
	"github.com/trans/xerp-sub001/internal/store"
	"github.com/trans/xerp-sub001/internal/types"
)

// matchesFileFilters reports whether file passes the query's --file REGEX
// and --type filters (spec.md §6). fileRE is nil when --file wasn't set.
func matchesFileFilters(file store.FileRow, fileRE *regexp.Regexp, opts Options) bool {
	if opts.FileType != "" && file.FileType != opts.FileType {
		return false
	}
	if fileRE != nil && !fileRE.MatchString(file.RelPath) {
		return false
	}
	return true
}

// filterResultsByFile drops every result whose file doesn't pass matchesFileFilters,
// applied before ranking so --top N counts post-filter results (spec.md §6
// --file/--type narrow the search, they don't just trim the display).
func filterResultsByFile(results []scored, fileRows map[types.FileID]store.FileRow, opts Options) ([]scored, error) {
	if opts.FilePathRegex == "" && opts.FileType == "" {
		return results, nil
	}
	var fileRE *regexp.Regexp
	if opts.FilePathRegex != "" {
		re, err := regexp.Compile(opts.FilePathRegex)
		if err != nil {
			return nil, err
		}
		fileRE = re
	}
	out := make([]scored, 0, len(results))
	for _, s := range results {
		file, ok := fileRows[s.Block.FileID]
		if !ok || !matchesFileFilters(file, fileRE, opts) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// assemble fills in the fields that only matter for display: result_id,
// the file path/type, the ancestor header chain, and a bounded snippet
// window (spec.md §6 JSON result schema).
func (e *Engine) assemble(ctx context.Context, results []scored, fileRows map[types.FileID]store.FileRow, hitLines map[types.TokenID]map[types.FileID][]int, opts Options) ([]Result, error) {
	out := make([]Result, 0, len(results))
	blockCache := map[types.BlockID]*store.BlockRow{}

	maxLines := opts.MaxBlockLines
	if maxLines <= 0 {
		maxLines = 24
	}

	for _, s := range results {
		file, ok := fileRows[s.Block.FileID]
		if !ok {
			continue
		}
		r := s.Result
		r.FilePath = file.RelPath
		r.FileType = file.FileType
		r.ResultID = hashutil.ResultID(file.RelPath, s.Block.LineStart, s.Block.LineEnd, s.Block.ContentHash)
		// Best-effort: `mark` needs this to resolve a location from a bare
		// result_id later, but a write failure here shouldn't fail the query.
		_ = e.store.RecordResultLocation(ctx, r.ResultID, s.Block.FileID, s.Block.LineStart, s.Block.LineEnd)

		ancestors, err := e.ancestorHeaders(ctx, blockCache, s.Block)
		if err != nil {
			return nil, err
		}
		r.Ancestors = ancestors

		start, end := s.Block.LineStart, s.Block.LineEnd
		if opts.ContextLines > 0 {
			start -= opts.ContextLines
			end += opts.ContextLines
			if start < 1 {
				start = 1
			}
			if file.LineCount > 0 && end > file.LineCount {
				end = file.LineCount
			}
		}

		hitSet := unionHitLines(hitLines, s.Block.FileID, start, end)
		snippet, err := e.buildSnippet(ctx, file.ID, start, end, hitSet, maxLines)
		if err != nil {
			return nil, err
		}
		r.Snippet = snippet

		out = append(out, r)
	}
	return out, nil
}

// ancestorHeaders walks the parent chain from root to immediate parent,
// returning each ancestor's header text (spec.md §6 "ancestors").
func (e *Engine) ancestorHeaders(ctx context.Context, cache map[types.BlockID]*store.BlockRow, block store.BlockRow) ([]string, error) {
	var chain []string
	cur := block.ParentBlockID
	for cur != nil {
		b, err := blockLookup(ctx, e.store, cache, *cur)
		if err != nil {
			return nil, err
		}
		if b == nil {
			break
		}
		header := b.Header
		if header == "" {
			if text, ok, _ := e.store.ReadLine(ctx, b.FileID, b.LineStart); ok {
				header = text
			}
		}
		chain = append(chain, header)
		cur = b.ParentBlockID
	}
	// reverse: we walked leaf->root, ancestors are reported root->leaf
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func unionHitLines(hitLines map[types.TokenID]map[types.FileID][]int, fileID types.FileID, start, end int) map[int]bool {
	out := map[int]bool{}
	for _, perFile := range hitLines {
		for _, l := range perFile[fileID] {
			if l >= start && l <= end {
				out[l] = true
			}
		}
	}
	return out
}

// buildSnippet renders the block's lines, bounded to maxLines. A block
// within the bound is rendered whole; an oversized block is cropped to the
// densest maxLines-wide window of hit lines (spec.md §6 "snippet ...
// bounded by max_block_lines").
func (e *Engine) buildSnippet(ctx context.Context, fileID types.FileID, start, end int, hitSet map[int]bool, maxLines int) ([]SnippetLine, error) {
	winStart, winEnd := start, end
	if end-start+1 > maxLines {
		winStart, winEnd = densestWindow(start, end, hitSet, maxLines)
	}

	out := make([]SnippetLine, 0, winEnd-winStart+1)
	for ln := winStart; ln <= winEnd; ln++ {
		text, _, err := e.store.ReadLine(ctx, fileID, ln)
		if err != nil {
			return nil, err
		}
		out = append(out, SnippetLine{Line: ln, Text: text, IsHit: hitSet[ln]})
	}
	return out, nil
}

// densestWindow slides a width-wide window over [start, end] and returns
// the bounds of the window covering the most hit lines, ties broken toward
// the earliest window.
func densestWindow(start, end int, hitSet map[int]bool, width int) (int, int) {
	bestStart := start
	bestCount := -1
	lastStart := end - width + 1
	if lastStart < start {
		lastStart = start
	}
	for ws := start; ws <= lastStart; ws++ {
		we := ws + width - 1
		if we > end {
			we = end
		}
		count := 0
		for ln := ws; ln <= we; ln++ {
			if hitSet[ln] {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			bestStart = ws
		}
	}
	we := bestStart + width - 1
	if we > end {
		we = end
	}
	return bestStart, we
}
