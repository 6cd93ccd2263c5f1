package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/trans/xerp-sub001/internal/types"
)

// GetOrCreateToken returns the token row for text, creating it with kind if
// absent, or upgrading its stored kind if kind outweighs the current one
// (spec.md §4.2 kind-upgrading rule).
func GetOrCreateToken(ctx context.Context, tx *sql.Tx, text string, kind types.TokenKind) (types.TokenID, error) {
	row := tx.QueryRowContext(ctx, `SELECT id, kind FROM tokens WHERE text = ?`, text)
	var id int64
	var curKind types.TokenKind
	err := row.Scan(&id, &curKind)
	switch {
	case err == nil:
		if types.KindWeight[kind] > types.KindWeight[curKind] {
			if _, err := tx.ExecContext(ctx, `UPDATE tokens SET kind = ? WHERE id = ?`, kind, id); err != nil {
				return 0, wrapStoreErr("upgrade-token-kind", err)
			}
		}
		return types.TokenID(id), nil
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `INSERT INTO tokens (text, kind, df) VALUES (?, ?, 0)`, text, kind)
		if err != nil {
			return 0, wrapStoreErr("insert-token", err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return 0, wrapStoreErr("insert-token-id", err)
		}
		return types.TokenID(newID), nil
	default:
		return 0, wrapStoreErr("lookup-token", err)
	}
}

// GetTokenByText looks up a token for query resolution; returns (nil, nil)
// if not present in the index.
func (s *Store) GetTokenByText(ctx context.Context, text string) (*TokenRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, text, kind, df FROM tokens WHERE text = ?`, text)
	var t TokenRow
	if err := row.Scan(&t.ID, &t.Text, &t.Kind, &t.DF); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapStoreErr("get-token", err)
	}
	return &t, nil
}

// GetTokenByID looks up a token by id.
func (s *Store) GetTokenByID(ctx context.Context, id types.TokenID) (*TokenRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, text, kind, df FROM tokens WHERE id = ?`, id)
	var t TokenRow
	if err := row.Scan(&t.ID, &t.Text, &t.Kind, &t.DF); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapStoreErr("get-token-by-id", err)
	}
	return &t, nil
}

// RecomputeDF recalculates df for each given token as the number of
// distinct files with a posting, per spec.md §3 invariant 2, and deletes
// tokens whose df drops to zero (orphan sweep, spec.md §4.4).
func RecomputeDF(ctx context.Context, tx *sql.Tx, tokenIDs []types.TokenID) error {
	for _, id := range tokenIDs {
		row := tx.QueryRowContext(ctx, `SELECT COUNT(DISTINCT file_id) FROM postings WHERE token_id = ?`, id)
		var df int
		if err := row.Scan(&df); err != nil {
			return wrapStoreErr("recompute-df", err)
		}
		if df == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM cooccurrence WHERE token_id = ?`, id); err != nil {
				return wrapStoreErr("sweep-cooc", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM token_vector_norm WHERE token_id = ?`, id); err != nil {
				return wrapStoreErr("sweep-norm", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM token_dense_vector WHERE token_id = ?`, id); err != nil {
				return wrapStoreErr("sweep-dense", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE id = ?`, id); err != nil {
				return wrapStoreErr("sweep-token", err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE tokens SET df = ? WHERE id = ?`, df, id); err != nil {
			return wrapStoreErr("update-df", err)
		}
	}
	return nil
}

// AllTokens returns every token row, used by the trainer to sweep
// co-occurrence over the whole vocabulary and by `terms`/`outline`
// diagnostics.
func (s *Store) AllTokens(ctx context.Context) ([]TokenRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, kind, df FROM tokens`)
	if err != nil {
		return nil, wrapStoreErr("all-tokens", err)
	}
	defer rows.Close()
	var out []TokenRow
	for rows.Next() {
		var t TokenRow
		if err := rows.Scan(&t.ID, &t.Text, &t.Kind, &t.DF); err != nil {
			return nil, wrapStoreErr("scan-token", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TotalFileCount returns N_files for the IDF formula (spec.md §4.6.2).
func (s *Store) TotalFileCount(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, wrapStoreErr("count-files", err)
	}
	return n, nil
}
