package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/trans/xerp-sub001/internal/types"
)

// RecordFeedback appends a feedback_event row and folds it into the
// per-result and (for every eligible token the result's block contains)
// per-token running aggregates (spec.md §4.7 `mark`). score must already be
// clamped to [-1, +1] by the caller.
func RecordFeedback(ctx context.Context, tx *sql.Tx, ev FeedbackEventRow, tokenIDs []types.TokenID) error {
	var fileID *int64
	if ev.FileID != nil {
		v := int64(*ev.FileID)
		fileID = &v
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO feedback_event (result_id, score, note, file_id, line_start, line_end, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.ResultID, ev.Score, ev.Note, fileID, ev.LineStart, ev.LineEnd, ev.CreatedAt); err != nil {
		return wrapStoreErr("insert-feedback-event", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO feedback_result_stats (result_id, aggregate, count) VALUES (?, ?, 1)
		ON CONFLICT(result_id) DO UPDATE SET aggregate = aggregate + excluded.aggregate, count = count + 1
	`, ev.ResultID, ev.Score); err != nil {
		return wrapStoreErr("update-result-stats", err)
	}

	useful, notUseful := 0.0, 0.0
	if ev.Score > 0 {
		useful = ev.Score
	} else if ev.Score < 0 {
		notUseful = -ev.Score
	}
	for _, tid := range tokenIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO feedback_token_stats (token_id, useful, not_useful) VALUES (?, ?, ?)
			ON CONFLICT(token_id) DO UPDATE SET useful = useful + excluded.useful, not_useful = not_useful + excluded.not_useful
		`, tid, useful, notUseful); err != nil {
			return wrapStoreErr("update-token-stats", err)
		}
	}
	return nil
}

// RecordResultLocation persists the block a result_id was computed from, so
// a later `mark` call can resolve a location from the id alone (spec.md
// §4.7). Called outside any write transaction the caller is already in,
// since it runs once per assembled result at query time rather than inside
// a feedback write.
func (s *Store) RecordResultLocation(ctx context.Context, resultID string, fileID types.FileID, lineStart, lineEnd int) error {
	return s.WithWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO result_location (result_id, file_id, line_start, line_end) VALUES (?, ?, ?, ?)
			ON CONFLICT(result_id) DO UPDATE SET file_id = excluded.file_id, line_start = excluded.line_start, line_end = excluded.line_end
		`, resultID, int64(fileID), lineStart, lineEnd)
		if err != nil {
			return wrapStoreErr("record-result-location", err)
		}
		return nil
	})
}

// ResultLocation returns the block a result_id was computed from, or
// ok=false if no query has ever assembled that id.
func (s *Store) ResultLocation(ctx context.Context, resultID string) (fileID types.FileID, lineStart, lineEnd int, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT file_id, line_start, line_end FROM result_location WHERE result_id = ?`, resultID)
	var fid int64
	if scanErr := row.Scan(&fid, &lineStart, &lineEnd); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return 0, 0, 0, false, nil
		}
		return 0, 0, 0, false, wrapStoreErr("result-location", scanErr)
	}
	return types.FileID(fid), lineStart, lineEnd, true, nil
}

// ResultStats returns the running feedback aggregate for a result id, or
// (0, 0, false) if it has never received feedback (spec.md §4.6.2 feedback
// boost term).
func (s *Store) ResultStats(ctx context.Context, resultID string) (aggregate float64, count int, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT aggregate, count FROM feedback_result_stats WHERE result_id = ?`, resultID)
	if scanErr := row.Scan(&aggregate, &count); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return 0, 0, false, nil
		}
		return 0, 0, false, wrapStoreErr("result-stats", scanErr)
	}
	return aggregate, count, true, nil
}

// TokenStats returns the accumulated useful/not-useful feedback mass for a
// token.
func (s *Store) TokenStats(ctx context.Context, tokenID types.TokenID) (useful, notUseful float64, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT useful, not_useful FROM feedback_token_stats WHERE token_id = ?`, tokenID)
	if scanErr := row.Scan(&useful, &notUseful); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return 0, 0, nil
		}
		return 0, 0, wrapStoreErr("token-stats", scanErr)
	}
	return useful, notUseful, nil
}

// FeedbackEventsForResult lists every raw feedback event recorded against a
// result id, most recent first, for `mark --history`-style inspection.
func (s *Store) FeedbackEventsForResult(ctx context.Context, resultID string) ([]FeedbackEventRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, result_id, score, note, file_id, line_start, line_end, created_at
		FROM feedback_event WHERE result_id = ? ORDER BY id DESC
	`, resultID)
	if err != nil {
		return nil, wrapStoreErr("feedback-events-for-result", err)
	}
	defer rows.Close()

	var out []FeedbackEventRow
	for rows.Next() {
		var ev FeedbackEventRow
		var note sql.NullString
		var fileID, lineStart, lineEnd sql.NullInt64
		if err := rows.Scan(&ev.ID, &ev.ResultID, &ev.Score, &note, &fileID, &lineStart, &lineEnd, &ev.CreatedAt); err != nil {
			return nil, wrapStoreErr("scan-feedback-event", err)
		}
		ev.Note = note.String
		if fileID.Valid {
			f := types.FileID(fileID.Int64)
			ev.FileID = &f
		}
		if lineStart.Valid {
			v := int(lineStart.Int64)
			ev.LineStart = &v
		}
		if lineEnd.Valid {
			v := int(lineEnd.Int64)
			ev.LineEnd = &v
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
