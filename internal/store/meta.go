package store

import (
	"context"
	"database/sql"
	"errors"
)

// Well-known meta keys (spec.md §3 Meta entity: schema version, trained
// hyperparameters, last-trained timestamps).
const (
	MetaSchemaVersion  = "schema_version"
	MetaLastTrainedAt  = "last_trained_at"
	MetaActiveModel    = "active_context_model"
	MetaClusterMode    = "cluster_mode"
	MetaTrainedOnCount = "trained_on_file_count"
)

// SetMeta upserts a single key/value pair in the meta table.
func SetMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return wrapStoreErr("set-meta", err)
}

// GetMeta reads a single meta value, returning ("", false) if absent.
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, wrapStoreErr("get-meta", err)
	}
	return v, true, nil
}

// AllMeta dumps the full meta table as a key/value map.
func (s *Store) AllMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, wrapStoreErr("all-meta", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, wrapStoreErr("scan-meta", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
