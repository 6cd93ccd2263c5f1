package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/trans/xerp-sub001/internal/types"
)

// GetFileByPath returns the stored row for relPath, or (nil, nil) if absent.
func (s *Store) GetFileByPath(ctx context.Context, relPath string) (*FileRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, rel_path, file_type, mtime, size, line_count, content_hash, indexed_at FROM files WHERE rel_path = ?`, relPath)
	var f FileRow
	if err := row.Scan(&f.ID, &f.RelPath, &f.FileType, &f.MTime, &f.Size, &f.LineCount, &f.ContentHash, &f.IndexedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapStoreErr("get-file", err)
	}
	return &f, nil
}

// ListFiles returns every indexed file, used by the full-scan removal pass
// and by `outline`/`terms`.
func (s *Store) ListFiles(ctx context.Context) ([]FileRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, rel_path, file_type, mtime, size, line_count, content_hash, indexed_at FROM files`)
	if err != nil {
		return nil, wrapStoreErr("list-files", err)
	}
	defer rows.Close()

	var out []FileRow
	for rows.Next() {
		var f FileRow
		if err := rows.Scan(&f.ID, &f.RelPath, &f.FileType, &f.MTime, &f.Size, &f.LineCount, &f.ContentHash, &f.IndexedAt); err != nil {
			return nil, wrapStoreErr("scan-file", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpsertFile inserts or updates a file row within tx, returning the
// (possibly new) FileID.
func UpsertFile(ctx context.Context, tx *sql.Tx, f FileRow) (types.FileID, error) {
	existing := tx.QueryRowContext(ctx, `SELECT id FROM files WHERE rel_path = ?`, f.RelPath)
	var id int64
	err := existing.Scan(&id)
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx, `UPDATE files SET file_type=?, mtime=?, size=?, line_count=?, content_hash=?, indexed_at=? WHERE id=?`,
			f.FileType, f.MTime, f.Size, f.LineCount, f.ContentHash, f.IndexedAt, id)
		if err != nil {
			return 0, wrapStoreErr("update-file", err)
		}
		return types.FileID(id), nil
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `INSERT INTO files (rel_path, file_type, mtime, size, line_count, content_hash, indexed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.RelPath, f.FileType, f.MTime, f.Size, f.LineCount, f.ContentHash, f.IndexedAt)
		if err != nil {
			return 0, wrapStoreErr("insert-file", err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return 0, wrapStoreErr("insert-file-id", err)
		}
		return types.FileID(newID), nil
	default:
		return 0, wrapStoreErr("lookup-file", err)
	}
}

// DeleteFile removes the file row only; its dependent rows (postings,
// blocks, line map, line cache, centroids) are removed beforehand by
// PurgeFileDependents.
func DeleteFile(ctx context.Context, tx *sql.Tx, id types.FileID) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	return wrapStoreErr("delete-file", err)
}

// PurgeFileDependents deletes postings, blocks, line map, line cache and
// centroids for a file, in preparation for re-indexing or removal (spec.md
// §4.4 incremental policy: "Changed files have all their postings/blocks/
// line-map purged before re-indexing").
func PurgeFileDependents(ctx context.Context, tx *sql.Tx, id types.FileID) error {
	stmts := []string{
		`DELETE FROM block_centroid WHERE block_id IN (SELECT id FROM blocks WHERE file_id = ?)`,
		`DELETE FROM line_cache WHERE file_id = ?`,
		`DELETE FROM line_map WHERE file_id = ?`,
		`DELETE FROM blocks WHERE file_id = ?`,
		`DELETE FROM postings WHERE file_id = ?`,
		`DELETE FROM result_location WHERE file_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return wrapStoreErr("purge-file-dependents", err)
		}
	}
	return nil
}
