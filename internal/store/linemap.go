package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/trans/xerp-sub001/internal/types"
	"github.com/trans/xerp-sub001/internal/varint"
)

// WriteLineMap persists the per-file line->block map as a varint-encoded
// sequence of block ids, one per line, in line order (spec.md §3
// BlockLineMap).
func WriteLineMap(ctx context.Context, tx *sql.Tx, fileID types.FileID, blockIDs []types.BlockID) error {
	u32 := make([]uint32, len(blockIDs))
	for i, id := range blockIDs {
		u32[i] = uint32(id)
	}
	blob := varint.EncodeU32List(u32)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO line_map (file_id, blob) VALUES (?, ?)
		ON CONFLICT(file_id) DO UPDATE SET blob = excluded.blob
	`, fileID, blob)
	return wrapStoreErr("write-line-map", err)
}

// ReadLineMap decodes the stored line->block map; its length must equal the
// file's line_count (spec.md §3 invariant 3).
func (s *Store) ReadLineMap(ctx context.Context, fileID types.FileID) ([]types.BlockID, error) {
	row := s.db.QueryRowContext(ctx, `SELECT blob FROM line_map WHERE file_id = ?`, fileID)
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapStoreErr("read-line-map", err)
	}
	u32, err := varint.DecodeU32List(blob)
	if err != nil {
		return nil, wrapStoreErr("decode-line-map", err)
	}
	out := make([]types.BlockID, len(u32))
	for i, v := range u32 {
		out[i] = types.BlockID(v)
	}
	return out, nil
}

// WriteLineCacheEntries caches ancestry header lines for a file: block start
// lines and the line immediately preceding each block start (spec.md §3
// LineCache).
func WriteLineCacheEntries(ctx context.Context, tx *sql.Tx, fileID types.FileID, entries map[int]string) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO line_cache (file_id, line_num, text) VALUES (?, ?, ?)
		ON CONFLICT(file_id, line_num) DO UPDATE SET text = excluded.text
	`)
	if err != nil {
		return wrapStoreErr("prepare-line-cache", err)
	}
	defer stmt.Close()

	for lineNum, text := range entries {
		if _, err := stmt.ExecContext(ctx, fileID, lineNum, text); err != nil {
			return wrapStoreErr("write-line-cache", err)
		}
	}
	return nil
}

// ReadLine returns a single cached line's text, or ("", false) on a cache
// miss.
func (s *Store) ReadLine(ctx context.Context, fileID types.FileID, lineNum int) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT text FROM line_cache WHERE file_id = ? AND line_num = ?`, fileID, lineNum)
	var text string
	if err := row.Scan(&text); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, wrapStoreErr("read-line", err)
	}
	return text, true, nil
}
