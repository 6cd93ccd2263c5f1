// Package indexing implements the C6 per-file indexing pipeline from
// spec.md §4.4: read → hash → classify → block → tokenize → persist, with
// the incremental-by-content-hash policy and the per-file failure isolation
// from spec.md §7.2. Grounded on the teacher's indexing package (binary
// detection, index locking, debounced rebuilds) generalized from a
// symbol-graph pipeline to xerp's block/token pipeline, and on the bounded
// worker-pool pattern in internal/analysis/relationship_analyzer.go,
// rewritten atop golang.org/x/sync/errgroup in place of the teacher's
// hand-rolled semaphore channel.
package indexing

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"github.com/trans/xerp-sub001/internal/blocks"
	"github.com/trans/xerp-sub001/internal/discovery"
	"github.com/trans/xerp-sub001/internal/hashutil"
	"github.com/trans/xerp-sub001/internal/store"
	"github.com/trans/xerp-sub001/internal/tokenizer"
	"github.com/trans/xerp-sub001/internal/types"
	"github.com/trans/xerp-sub001/internal/xerrors"
)

// FileOutcome is what happened to one candidate file.
type FileOutcome int

const (
	OutcomeIndexed FileOutcome = iota
	OutcomeUnchanged
	OutcomeSkipped
)

// fileResult is the pipeline's per-file verdict, reported up to the run
// summary.
type fileResult struct {
	RelPath string
	Outcome FileOutcome
	Err     error
}

// indexFile runs the full single-file pipeline and commits it in one write
// transaction. It returns a *xerrors.FileError for anything that should be
// skipped-and-counted (spec.md §7.2), or a *xerrors.StoreError for anything
// that should fail the whole run (spec.md §7.3).
func indexFile(ctx context.Context, st *store.Store, tok *tokenizer.Tokenizer, opts blocks.Options, cand discovery.Candidate) (FileOutcome, error) {
	raw, err := os.ReadFile(cand.AbsPath)
	if err != nil {
		return OutcomeSkipped, xerrors.NewFileError(cand.RelPath, "read", err)
	}
	contentHash := hashutil.Hex(raw)

	existing, err := st.GetFileByPath(ctx, cand.RelPath)
	if err != nil {
		return OutcomeSkipped, err
	}
	if existing != nil && existing.MTime == cand.MTime && existing.ContentHash == contentHash {
		return OutcomeUnchanged, nil
	}

	lines := splitLines(string(raw))
	fileType, adapter := blocks.ClassifyAndSelect(cand.RelPath)
	built := adapter.BuildBlocks(lines, opts)
	tokenized := tok.Tokenize(lines)

	var staleTokenIDs []types.TokenID
	if existing != nil {
		stale, err := st.PostingsForFile(ctx, existing.ID)
		if err != nil {
			return OutcomeSkipped, err
		}
		for _, p := range stale {
			staleTokenIDs = append(staleTokenIDs, p.TokenID)
		}
	}

	eligibleCounts := make([]int, len(built.Blocks))
	for _, occ := range tokenized.Occurrences {
		if !types.Eligible(occ.Kind) {
			continue
		}
		if occ.Line-1 < len(built.LineBlock) {
			eligibleCounts[built.LineBlock[occ.Line-1]]++
		}
	}

	err = st.WithWriteTx(ctx, func(tx *sql.Tx) error {
		if existing != nil {
			if err := store.PurgeFileDependents(ctx, tx, existing.ID); err != nil {
				return err
			}
		}

		fileID, err := store.UpsertFile(ctx, tx, store.FileRow{
			RelPath:     cand.RelPath,
			FileType:    fileType,
			MTime:       cand.MTime,
			Size:        cand.Size,
			LineCount:   len(lines),
			ContentHash: contentHash,
			IndexedAt:   cand.MTime,
		})
		if err != nil {
			return err
		}

		blockRows := make([]store.BlockRow, len(built.Blocks))
		for i, b := range built.Blocks {
			blockRows[i] = store.BlockRow{
				FileID:      fileID,
				Kind:        b.Kind,
				Level:       b.Level,
				LineStart:   b.LineStart,
				LineEnd:     b.LineEnd,
				ContentHash: b.ContentHash,
				TokenCount:  eligibleCounts[i],
				Header:      b.Header,
			}
		}
		blockIDs, err := store.InsertBlocks(ctx, tx, fileID, blockRows)
		if err != nil {
			return err
		}
		for i, b := range built.Blocks {
			if b.ParentIdx >= 0 {
				if err := store.UpdateBlockParent(ctx, tx, blockIDs[i], blockIDs[b.ParentIdx]); err != nil {
					return err
				}
			}
		}

		lineBlockIDs := make([]types.BlockID, len(built.LineBlock))
		for i, idx := range built.LineBlock {
			lineBlockIDs[i] = blockIDs[idx]
		}
		if err := store.WriteLineMap(ctx, tx, fileID, lineBlockIDs); err != nil {
			return err
		}
		if err := store.WriteLineCacheEntries(ctx, tx, fileID, ancestryCacheLines(lines, built)); err != nil {
			return err
		}

		touched := append([]types.TokenID{}, staleTokenIDs...)
		for text, agg := range tokenized.Aggregate {
			tokenID, err := store.GetOrCreateToken(ctx, tx, text, agg.Kind)
			if err != nil {
				return err
			}
			lines32 := make([]uint32, len(agg.Lines))
			for i, l := range agg.Lines {
				lines32[i] = uint32(l)
			}
			if err := store.UpsertPosting(ctx, tx, tokenID, fileID, lines32); err != nil {
				return err
			}
			touched = append(touched, tokenID)
		}

		return store.RecomputeDF(ctx, tx, dedupTokenIDs(touched))
	})
	if err != nil {
		return OutcomeSkipped, err
	}
	return OutcomeIndexed, nil
}

// ancestryCacheLines caches each block's opening line, the line immediately
// preceding it (the minimum needed to render result ancestry without
// re-reading the source file, spec.md §3 LineCache), and its closing line
// (so the learned-keyword tier can later read both block edges straight
// back out of the cache, spec.md §4.3.1).
func ancestryCacheLines(lines []string, built blocks.BuildResult) map[int]string {
	entries := map[int]string{}
	for _, b := range built.Blocks {
		if b.LineStart >= 1 && b.LineStart <= len(lines) {
			entries[b.LineStart] = lines[b.LineStart-1]
		}
		if b.LineStart > 1 && b.LineStart-1 <= len(lines) {
			entries[b.LineStart-1] = lines[b.LineStart-2]
		}
		if b.LineEnd >= 1 && b.LineEnd <= len(lines) {
			entries[b.LineEnd] = lines[b.LineEnd-1]
		}
	}
	return entries
}

func dedupTokenIDs(ids []types.TokenID) []types.TokenID {
	seen := make(map[types.TokenID]struct{}, len(ids))
	out := make([]types.TokenID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// splitLines splits file content on "\n", trimming a single trailing "\r"
// per line (CRLF tolerance) and dropping the final empty element a trailing
// newline produces, matching the line numbering every other package in xerp
// assumes (1-indexed, no phantom last line).
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	raw := strings.Split(content, "\n")
	if len(raw) > 0 && raw[len(raw)-1] == "" {
		raw = raw[:len(raw)-1]
	}
	for i, l := range raw {
		raw[i] = strings.TrimSuffix(l, "\r")
	}
	return raw
}
