package store

import "github.com/trans/xerp-sub001/internal/types"

// FileRow mirrors the File entity (spec.md §3).
type FileRow struct {
	ID          types.FileID
	RelPath     string
	FileType    types.FileType
	MTime       int64
	Size        int64
	LineCount   int
	ContentHash string
	IndexedAt   int64
}

// TokenRow mirrors the Token entity.
type TokenRow struct {
	ID   types.TokenID
	Text string
	Kind types.TokenKind
	DF   int
}

// PostingRow mirrors the Posting entity. LinesBlob is the delta-varint
// encoding, as persisted on disk, of the sorted, unique 1-indexed line
// numbers (spec.md §3 invariant 1).
type PostingRow struct {
	TokenID   types.TokenID
	FileID    types.FileID
	TF        int
	LinesBlob []byte
}

// BlockRow mirrors the Block entity, with ParentBlockID as a nullable
// pointer (nil for a root block).
type BlockRow struct {
	ID            types.BlockID
	FileID        types.FileID
	Kind          types.BlockKind
	Level         int
	LineStart     int
	LineEnd       int
	ParentBlockID *types.BlockID
	ContentHash   string
	TokenCount    int
	Header        string
}

// FeedbackEventRow mirrors the FeedbackEvent entity.
type FeedbackEventRow struct {
	ID        int64
	ResultID  string
	Score     float64
	Note      string
	FileID    *types.FileID
	LineStart *int
	LineEnd   *int
	CreatedAt string // ISO-8601 UTC
}
