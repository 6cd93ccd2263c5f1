package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trans/xerp-sub001/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xerp.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFileUpsertAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var id types.FileID
	err := s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = UpsertFile(ctx, tx, FileRow{
			RelPath: "src/retry.cr", FileType: types.FileTypeCode,
			MTime: 100, Size: 42, LineCount: 5, ContentHash: "abc", IndexedAt: 100,
		})
		return err
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := s.GetFileByPath(ctx, "src/retry.cr")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "abc", got.ContentHash)

	// Re-upsert with the same rel_path updates in place rather than
	// creating a second row (spec.md §3 invariant: one File row per path).
	err = s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		again, err := UpsertFile(ctx, tx, FileRow{
			RelPath: "src/retry.cr", FileType: types.FileTypeCode,
			MTime: 200, Size: 50, LineCount: 6, ContentHash: "def", IndexedAt: 200,
		})
		require.Equal(t, id, again)
		return err
	})
	require.NoError(t, err)

	files, err := s.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "def", files[0].ContentHash)
}

func TestTokenKindUpgrade(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var id types.TokenID
	err := s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = GetOrCreateToken(ctx, tx, "retry", types.KindWord)
		return err
	})
	require.NoError(t, err)

	tok, err := s.GetTokenByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.KindWord, tok.Kind)

	// A heavier kind for the same text upgrades the stored kind in place.
	err = s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		again, err := GetOrCreateToken(ctx, tx, "retry", types.KindIdent)
		require.Equal(t, id, again)
		return err
	})
	require.NoError(t, err)

	tok, err = s.GetTokenByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.KindIdent, tok.Kind)

	// A lighter kind never downgrades it back.
	err = s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := GetOrCreateToken(ctx, tx, "retry", types.KindWord)
		return err
	})
	require.NoError(t, err)
	tok, err = s.GetTokenByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.KindIdent, tok.Kind)
}

func TestPostingRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var tokID types.TokenID
	var fileID types.FileID
	err := s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		var err error
		tokID, err = GetOrCreateToken(ctx, tx, "backoff", types.KindIdent)
		if err != nil {
			return err
		}
		fileID, err = UpsertFile(ctx, tx, FileRow{RelPath: "a.cr", FileType: types.FileTypeCode, ContentHash: "x", LineCount: 10})
		if err != nil {
			return err
		}
		return UpsertPosting(ctx, tx, tokID, fileID, []uint32{2, 5, 5, 9})
	})
	require.NoError(t, err)

	rows, err := s.PostingsForToken(ctx, tokID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	lines, err := DecodeLines(rows[0].LinesBlob)
	require.NoError(t, err)
	require.Equal(t, []uint32{2, 5, 9}, lines)
	require.Equal(t, fileID, rows[0].FileID)
}

func TestRecomputeDFSweepsOrphans(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var tokID types.TokenID
	var fileID types.FileID
	err := s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		var err error
		tokID, err = GetOrCreateToken(ctx, tx, "ephemeral", types.KindIdent)
		if err != nil {
			return err
		}
		fileID, err = UpsertFile(ctx, tx, FileRow{RelPath: "b.cr", FileType: types.FileTypeCode, ContentHash: "x", LineCount: 1})
		if err != nil {
			return err
		}
		if err := UpsertPosting(ctx, tx, tokID, fileID, []uint32{1}); err != nil {
			return err
		}
		return RecomputeDF(ctx, tx, []types.TokenID{tokID})
	})
	require.NoError(t, err)

	tok, err := s.GetTokenByID(ctx, tokID)
	require.NoError(t, err)
	require.Equal(t, 1, tok.DF)

	// Drop the only posting; df recompute must delete the now-orphaned token.
	err = s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM postings WHERE token_id = ?`, tokID); err != nil {
			return err
		}
		return RecomputeDF(ctx, tx, []types.TokenID{tokID})
	})
	require.NoError(t, err)

	tok, err = s.GetTokenByID(ctx, tokID)
	require.NoError(t, err)
	require.Nil(t, tok)
}

func TestLineMapAndCacheRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var fileID types.FileID
	err := s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		var err error
		fileID, err = UpsertFile(ctx, tx, FileRow{RelPath: "c.cr", FileType: types.FileTypeCode, ContentHash: "x", LineCount: 3})
		if err != nil {
			return err
		}
		if err := WriteLineMap(ctx, tx, fileID, []types.BlockID{1, 1, 2}); err != nil {
			return err
		}
		return WriteLineCacheEntries(ctx, tx, fileID, map[int]string{1: "def foo", 3: "  bar"})
	})
	require.NoError(t, err)

	blockIDs, err := s.ReadLineMap(ctx, fileID)
	require.NoError(t, err)
	require.Equal(t, []types.BlockID{1, 1, 2}, blockIDs)

	text, ok, err := s.ReadLine(ctx, fileID, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "def foo", text)

	_, ok, err = s.ReadLine(ctx, fileID, 99)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBlockEdgeLinesJoinsLineCache(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		fileID, err := UpsertFile(ctx, tx, FileRow{RelPath: "c.cr", FileType: types.FileTypeCode, ContentHash: "x", LineCount: 4})
		if err != nil {
			return err
		}
		if err := WriteLineCacheEntries(ctx, tx, fileID, map[int]string{1: "def foo", 4: "end"}); err != nil {
			return err
		}
		ids, err := InsertBlocks(ctx, tx, fileID, []BlockRow{
			{FileID: fileID, Kind: types.BlockLayout, LineStart: 1, LineEnd: 4, ContentHash: "h"},
		})
		_ = ids
		return err
	})
	require.NoError(t, err)

	edges, err := s.BlockEdgeLines(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, "def foo", edges[0].First)
	require.Equal(t, "end", edges[0].Last)
}

func TestCooccurrenceAccumulates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		if err := IncCooc(ctx, tx, "line", 1, 2, 3); err != nil {
			return err
		}
		return IncCooc(ctx, tx, "line", 1, 2, 4)
	})
	require.NoError(t, err)

	m, err := s.CoocForToken(ctx, "line", 1, 1)
	require.NoError(t, err)
	require.Equal(t, 7, m[2])

	// Below the minCount floor, the pair is dropped from the result.
	m, err = s.CoocForToken(ctx, "line", 1, 100)
	require.NoError(t, err)
	require.Empty(t, m)
}

func TestFeedbackAggregates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var tokID types.TokenID
	err := s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		var err error
		tokID, err = GetOrCreateToken(ctx, tx, "handler", types.KindIdent)
		if err != nil {
			return err
		}
		return RecordFeedback(ctx, tx, FeedbackEventRow{
			ResultID: "r1", Score: 0.5, CreatedAt: "2026-07-30T00:00:00Z",
		}, []types.TokenID{tokID})
	})
	require.NoError(t, err)

	err = s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		return RecordFeedback(ctx, tx, FeedbackEventRow{
			ResultID: "r1", Score: -0.25, CreatedAt: "2026-07-30T00:01:00Z",
		}, []types.TokenID{tokID})
	})
	require.NoError(t, err)

	agg, count, ok, err := s.ResultStats(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, count)
	require.InDelta(t, 0.25, agg, 1e-9)

	useful, notUseful, err := s.TokenStats(ctx, tokID)
	require.NoError(t, err)
	require.InDelta(t, 0.5, useful, 1e-9)
	require.InDelta(t, 0.25, notUseful, 1e-9)

	events, err := s.FeedbackEventsForResult(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, -0.25, events[0].Score) // most recent first
}

func TestResultLocationRoundtripAndOverwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var fileID types.FileID
	err := s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		var err error
		fileID, err = UpsertFile(ctx, tx, FileRow{RelPath: "a.rb", LineCount: 10, ContentHash: "h"})
		return err
	})
	require.NoError(t, err)

	_, _, _, ok, err := s.ResultLocation(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.RecordResultLocation(ctx, "r1", fileID, 2, 6))
	gotFile, ls, le, ok, err := s.ResultLocation(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fileID, gotFile)
	require.Equal(t, 2, ls)
	require.Equal(t, 6, le)

	// Re-assembly of the same result_id overwrites rather than erroring.
	require.NoError(t, s.RecordResultLocation(ctx, "r1", fileID, 3, 9))
	_, ls, le, ok, err = s.ResultLocation(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, ls)
	require.Equal(t, 9, le)
}

func TestMetaRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		return SetMeta(ctx, tx, MetaSchemaVersion, "1")
	})
	require.NoError(t, err)

	v, ok, err := s.GetMeta(ctx, MetaSchemaVersion)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	_, ok, err = s.GetMeta(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}
