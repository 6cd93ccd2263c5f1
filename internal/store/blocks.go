package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/trans/xerp-sub001/internal/types"
)

// InsertBlocks bulk-inserts a file's block rows in order and returns their
// database ids in the same order. Each row is inserted with the
// ParentBlockID it carries; the indexer passes nil and links parents
// afterwards with UpdateBlockParent, once every id in the file is known.
func InsertBlocks(ctx context.Context, tx *sql.Tx, fileID types.FileID, rows []BlockRow) ([]types.BlockID, error) {
	ids := make([]types.BlockID, len(rows))
	for i, b := range rows {
		var parentID *int64
		if b.ParentBlockID != nil {
			v := int64(*b.ParentBlockID)
			parentID = &v
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO blocks (file_id, kind, level, line_start, line_end, parent_block_id, content_hash, token_count, header)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, fileID, b.Kind, b.Level, b.LineStart, b.LineEnd, parentID, b.ContentHash, b.TokenCount, b.Header)
		if err != nil {
			return nil, wrapStoreErr("insert-block", err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return nil, wrapStoreErr("insert-block-id", err)
		}
		ids[i] = types.BlockID(newID)
	}
	return ids, nil
}

// UpdateBlockTokenCount sets the eligible-token count for a block (spec.md
// §3 invariant 6), computed by the indexer after tokenization.
func UpdateBlockTokenCount(ctx context.Context, tx *sql.Tx, id types.BlockID, count int) error {
	_, err := tx.ExecContext(ctx, `UPDATE blocks SET token_count = ? WHERE id = ?`, count, id)
	return wrapStoreErr("update-token-count", err)
}

// UpdateBlockParent sets a block's parent after both rows have been
// inserted. InsertBlocks is called with every ParentBlockID nil on first
// pass (parent ids are not yet known); the indexer resolves parent-index ->
// real id itself and calls this once per non-root block.
func UpdateBlockParent(ctx context.Context, tx *sql.Tx, id, parentID types.BlockID) error {
	_, err := tx.ExecContext(ctx, `UPDATE blocks SET parent_block_id = ? WHERE id = ?`, parentID, id)
	return wrapStoreErr("update-block-parent", err)
}

// BlocksForFile returns every block belonging to a file, ordered by id
// (construction order, which is also a valid topological parent-before-
// child order).
func (s *Store) BlocksForFile(ctx context.Context, fileID types.FileID) ([]BlockRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, kind, level, line_start, line_end, parent_block_id, content_hash, token_count, header
		FROM blocks WHERE file_id = ? ORDER BY id
	`, fileID)
	if err != nil {
		return nil, wrapStoreErr("blocks-for-file", err)
	}
	defer rows.Close()
	return scanBlockRows(rows)
}

// BlockByID returns a single block.
func (s *Store) BlockByID(ctx context.Context, id types.BlockID) (*BlockRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_id, kind, level, line_start, line_end, parent_block_id, content_hash, token_count, header
		FROM blocks WHERE id = ?
	`, id)
	var b BlockRow
	var parentID sql.NullInt64
	if err := row.Scan(&b.ID, &b.FileID, &b.Kind, &b.Level, &b.LineStart, &b.LineEnd, &parentID, &b.ContentHash, &b.TokenCount, &b.Header); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapStoreErr("get-block", err)
	}
	if parentID.Valid {
		p := types.BlockID(parentID.Int64)
		b.ParentBlockID = &p
	}
	return &b, nil
}

// BlocksByIDs batch-fetches blocks for candidate gathering in the query
// engine.
func (s *Store) BlocksByIDs(ctx context.Context, ids []types.BlockID) (map[types.BlockID]BlockRow, error) {
	out := make(map[types.BlockID]BlockRow, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}
	q := `SELECT id, file_id, kind, level, line_start, line_end, parent_block_id, content_hash, token_count, header
	      FROM blocks WHERE id IN (` + string(placeholders) + `)`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapStoreErr("blocks-by-ids", err)
	}
	defer rows.Close()
	list, err := scanBlockRows(rows)
	if err != nil {
		return nil, err
	}
	for _, b := range list {
		out[b.ID] = b
	}
	return out, nil
}

func scanBlockRows(rows *sql.Rows) ([]BlockRow, error) {
	var out []BlockRow
	for rows.Next() {
		var b BlockRow
		var parentID sql.NullInt64
		if err := rows.Scan(&b.ID, &b.FileID, &b.Kind, &b.Level, &b.LineStart, &b.LineEnd, &parentID, &b.ContentHash, &b.TokenCount, &b.Header); err != nil {
			return nil, wrapStoreErr("scan-block", err)
		}
		if parentID.Valid {
			p := types.BlockID(parentID.Int64)
			b.ParentBlockID = &p
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BlockEdgeText pairs one block's cached first and last source line
// (missing cache entries surface as ""), the raw material the indexer
// trains the learned header-keyword tier from (spec.md §4.3.1).
type BlockEdgeText struct {
	First string
	Last  string
}

// BlockEdgeLines returns one BlockEdgeText per block across the whole
// store, read entirely from line_cache (populated at index time alongside
// every block row) rather than re-reading any source file.
func (s *Store) BlockEdgeLines(ctx context.Context) ([]BlockEdgeText, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(ls.text, ''), COALESCE(le.text, '')
		FROM blocks b
		LEFT JOIN line_cache ls ON ls.file_id = b.file_id AND ls.line_num = b.line_start
		LEFT JOIN line_cache le ON le.file_id = b.file_id AND le.line_num = b.line_end
	`)
	if err != nil {
		return nil, wrapStoreErr("block-edge-lines", err)
	}
	defer rows.Close()

	var out []BlockEdgeText
	for rows.Next() {
		var e BlockEdgeText
		if err := rows.Scan(&e.First, &e.Last); err != nil {
			return nil, wrapStoreErr("scan-block-edge-lines", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ChildrenOf returns the immediate children of a block, ordered by
// line_start, used by the concentration-mode clustering formula (spec.md
// §4.6.2).
func (s *Store) ChildrenOf(ctx context.Context, parent types.BlockID) ([]BlockRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, kind, level, line_start, line_end, parent_block_id, content_hash, token_count, header
		FROM blocks WHERE parent_block_id = ? ORDER BY line_start
	`, parent)
	if err != nil {
		return nil, wrapStoreErr("children-of", err)
	}
	defer rows.Close()
	return scanBlockRows(rows)
}
