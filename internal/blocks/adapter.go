// Package blocks implements file classification and the block (scope)
// detection adapters described in spec.md §4.3: indentation/Algol,
// Markdown headings, and the flat window fallback. Blocks form a forest per
// file; this package builds that forest plus the line->block map, deferring
// token_count and content storage to the indexer (spec.md §4.4).
package blocks

import (
	"path/filepath"
	"strings"

	"github.com/trans/xerp-sub001/internal/hashutil"
	"github.com/trans/xerp-sub001/internal/types"
)

// Block is one node in a file's block forest, built with flat-array parent
// indices during construction (spec.md §9 "Cyclic ancestry is impossible by
// construction") and materialized into DB parent ids only after insertion.
type Block struct {
	Kind        types.BlockKind
	Level       int
	LineStart   int // 1-indexed, inclusive
	LineEnd     int // 1-indexed, inclusive
	ParentIdx   int // index into the same []Block, -1 for a root
	ContentHash string
	Header      string // heading text / opening line, capped; used for ancestry rendering
}

// BuildResult is the adapter's output for one file.
type BuildResult struct {
	Blocks    []Block
	LineBlock []int // 0-indexed line -> index into Blocks; len == line count
}

// Options configures adapter behavior (spec.md §6 index.* keys).
type Options struct {
	TabWidth       int // 0 = auto-detect
	WindowSize     int // WindowAdapter line cap, default 50
	WindowOverlap  int // WindowAdapter overlap, default 10
	Keywords       *KeywordSet
	HeaderCapChars int // markdown heading text cap, default 80
}

// DefaultOptions matches the config defaults in spec.md §6.
func DefaultOptions() Options {
	return Options{
		TabWidth:       0,
		WindowSize:     50,
		WindowOverlap:  10,
		Keywords:       DefaultKeywords(),
		HeaderCapChars: 80,
	}
}

// Adapter is the capability set spec.md §9 describes: {supports?,
// file_type, build_blocks}.
type Adapter interface {
	Supports(ext string) bool
	FileType() types.FileType
	BuildBlocks(lines []string, opts Options) BuildResult
}

var registry = []Adapter{
	markdownAdapter{},
	algolAdapter{}, // code & config share the indentation algorithm; algol variant adds sibling splitting
}

// ClassifyAndSelect returns the file type and the adapter responsible for
// it, falling back to WindowAdapter for anything unrecognized.
func ClassifyAndSelect(relPath string) (types.FileType, Adapter) {
	ext := strings.ToLower(filepath.Ext(relPath))
	for _, a := range registry {
		if a.Supports(ext) {
			if ft := classifyLoose(ext); ft == types.FileTypeConfig {
				return ft, a
			}
			return a.FileType(), a
		}
	}
	return types.FileType(classifyLoose(ext)), windowAdapter{}
}

// classifyLoose assigns a coarse FileType from the extension alone, for
// query --type filtering purposes: config for config-file extensions
// (whether or not the indent adapter builds their blocks), text otherwise.
func classifyLoose(ext string) types.FileType {
	switch ext {
	case ".yaml", ".yml", ".toml", ".ini", ".cfg", ".conf", ".ini", ".json":
		return types.FileTypeConfig
	default:
		return types.FileTypeText
	}
}

func hashLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return hashutil.Lines(nil)
	}
	return hashutil.Lines(lines[start-1 : end])
}

func capText(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
