package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/trans/xerp-sub001/internal/types"
)

// IncCooc accumulates a symmetric co-occurrence count for one context-model
// sweep (spec.md §4.5). Called once per (token, context) pair observed; the
// trainer is responsible for emitting both directions of a symmetric pair.
func IncCooc(ctx context.Context, tx *sql.Tx, model string, tokenID, contextID types.TokenID, delta int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cooccurrence (model_id, token_id, context_id, count) VALUES (?, ?, ?, ?)
		ON CONFLICT(model_id, token_id, context_id) DO UPDATE SET count = count + excluded.count
	`, model, tokenID, contextID, delta)
	return wrapStoreErr("inc-cooc", err)
}

// CoocForToken returns the sparse {context_id: count} map for a token under
// a model, discarding pairs below minCount (spec.md §4.5).
func (s *Store) CoocForToken(ctx context.Context, model string, tokenID types.TokenID, minCount int) (map[types.TokenID]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT context_id, count FROM cooccurrence WHERE model_id = ? AND token_id = ? AND count >= ?`, model, tokenID, minCount)
	if err != nil {
		return nil, wrapStoreErr("cooc-for-token", err)
	}
	defer rows.Close()
	out := map[types.TokenID]int{}
	for rows.Next() {
		var ctxID types.TokenID
		var count int
		if err := rows.Scan(&ctxID, &count); err != nil {
			return nil, wrapStoreErr("scan-cooc", err)
		}
		out[ctxID] = count
	}
	return out, rows.Err()
}

// ClearCooc deletes all co-occurrence rows for a model (spec.md train
// --clear), in preparation for a full retrain.
func ClearCooc(ctx context.Context, tx *sql.Tx, model string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM cooccurrence WHERE model_id = ?`, model)
	return wrapStoreErr("clear-cooc", err)
}

// WriteTokenVector persists a token's dense vector and its L2 norm for a
// model.
func WriteTokenVector(ctx context.Context, tx *sql.Tx, model string, tokenID types.TokenID, vector []byte, norm float64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO token_dense_vector (model_id, token_id, vector) VALUES (?, ?, ?)
		ON CONFLICT(model_id, token_id) DO UPDATE SET vector = excluded.vector
	`, model, tokenID, vector); err != nil {
		return wrapStoreErr("write-token-vector", err)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO token_vector_norm (model_id, token_id, norm) VALUES (?, ?, ?)
		ON CONFLICT(model_id, token_id) DO UPDATE SET norm = excluded.norm
	`, model, tokenID, norm)
	return wrapStoreErr("write-token-norm", err)
}

// TokenVector reads a token's dense vector blob for a model.
func (s *Store) TokenVector(ctx context.Context, model string, tokenID types.TokenID) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT vector FROM token_dense_vector WHERE model_id = ? AND token_id = ?`, model, tokenID)
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, wrapStoreErr("read-token-vector", err)
	}
	return blob, true, nil
}

// AllTokenVectors returns every (token_id, vector) pair for a model, used by
// the query engine to build its in-memory neighbor index at query time.
func (s *Store) AllTokenVectors(ctx context.Context, model string) (map[types.TokenID][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token_id, vector FROM token_dense_vector WHERE model_id = ?`, model)
	if err != nil {
		return nil, wrapStoreErr("all-token-vectors", err)
	}
	defer rows.Close()
	out := map[types.TokenID][]byte{}
	for rows.Next() {
		var id types.TokenID
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, wrapStoreErr("scan-token-vector", err)
		}
		out[id] = blob
	}
	return out, rows.Err()
}

// WriteBlockCentroid persists a block's centroid vector.
func WriteBlockCentroid(ctx context.Context, tx *sql.Tx, blockID types.BlockID, vector []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO block_centroid (block_id, vector) VALUES (?, ?)
		ON CONFLICT(block_id) DO UPDATE SET vector = excluded.vector
	`, blockID, vector)
	return wrapStoreErr("write-centroid", err)
}

// BlockCentroid reads a block's centroid vector.
func (s *Store) BlockCentroid(ctx context.Context, blockID types.BlockID) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT vector FROM block_centroid WHERE block_id = ?`, blockID)
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, wrapStoreErr("read-centroid", err)
	}
	return blob, true, nil
}

// AllBlockCentroids returns every (block_id, vector) pair, used to build the
// centroid ANN index for semantic-only mode (spec.md §4.6.3).
func (s *Store) AllBlockCentroids(ctx context.Context) (map[types.BlockID][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT block_id, vector FROM block_centroid`)
	if err != nil {
		return nil, wrapStoreErr("all-centroids", err)
	}
	defer rows.Close()
	out := map[types.BlockID][]byte{}
	for rows.Next() {
		var id types.BlockID
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, wrapStoreErr("scan-centroid", err)
		}
		out[id] = blob
	}
	return out, rows.Err()
}
