package store

import (
	"context"
	"database/sql"

	"github.com/trans/xerp-sub001/internal/types"
	"github.com/trans/xerp-sub001/internal/varint"
)

// UpsertPosting writes one (token, file) posting with its delta-varint
// encoded line list (spec.md §3 Posting entity, primary key (token_id,
// file_id)).
func UpsertPosting(ctx context.Context, tx *sql.Tx, tokenID types.TokenID, fileID types.FileID, lines []uint32) error {
	uniq := make([]uint32, 0, len(lines))
	for _, l := range lines {
		if n := len(uniq); n > 0 && uniq[n-1] == l {
			continue
		}
		uniq = append(uniq, l)
	}
	blob, err := varint.EncodeDeltaU32List(uniq)
	if err != nil {
		return wrapStoreErr("encode-posting-lines", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO postings (token_id, file_id, tf, lines_blob) VALUES (?, ?, ?, ?)
		ON CONFLICT(token_id, file_id) DO UPDATE SET tf = excluded.tf, lines_blob = excluded.lines_blob
	`, tokenID, fileID, len(uniq), blob)
	return wrapStoreErr("upsert-posting", err)
}

// PostingsForToken returns every (file, lines) posting for a token.
func (s *Store) PostingsForToken(ctx context.Context, tokenID types.TokenID) ([]PostingRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token_id, file_id, tf, lines_blob FROM postings WHERE token_id = ?`, tokenID)
	if err != nil {
		return nil, wrapStoreErr("postings-for-token", err)
	}
	defer rows.Close()

	var out []PostingRow
	for rows.Next() {
		var p PostingRow
		if err := rows.Scan(&p.TokenID, &p.FileID, &p.TF, &p.LinesBlob); err != nil {
			return nil, wrapStoreErr("scan-posting", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PostingsForFile returns every posting touching a single file, used by
// `mark --file/--line` feedback accumulation (spec.md §4.7).
func (s *Store) PostingsForFile(ctx context.Context, fileID types.FileID) ([]PostingRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token_id, file_id, tf, lines_blob FROM postings WHERE file_id = ?`, fileID)
	if err != nil {
		return nil, wrapStoreErr("postings-for-file", err)
	}
	defer rows.Close()

	var out []PostingRow
	for rows.Next() {
		var p PostingRow
		if err := rows.Scan(&p.TokenID, &p.FileID, &p.TF, &p.LinesBlob); err != nil {
			return nil, wrapStoreErr("scan-posting", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DecodeLines is a convenience wrapper matching spec.md §3 invariant 1.
func DecodeLines(blob []byte) ([]uint32, error) {
	return varint.DecodeDeltaU32List(blob)
}
