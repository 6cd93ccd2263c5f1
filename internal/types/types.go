// Package types defines the identifiers and enums shared across the
// indexing, training, query, and feedback subsystems.
package types

// FileID identifies a row in the files table.
type FileID int64

// TokenID identifies a row in the tokens table.
type TokenID int64

// BlockID identifies a row in the blocks table.
type BlockID int64

// FileType classifies a file for adapter selection and query --type filters.
type FileType string

const (
	FileTypeCode     FileType = "code"
	FileTypeMarkdown FileType = "markdown"
	FileTypeConfig   FileType = "config"
	FileTypeText     FileType = "text"
)

// TokenKind is the kind a token occurrence was observed with. When the same
// text is observed under multiple kinds, the stored Token.Kind is the
// highest-weight kind per KindWeight.
type TokenKind string

const (
	KindIdent    TokenKind = "ident"
	KindWord     TokenKind = "word"
	KindStr      TokenKind = "str"
	KindNum      TokenKind = "num"
	KindOp       TokenKind = "op"
	KindCompound TokenKind = "compound"
)

// KindWeight is the scoring weight table from spec §4.2 / §4.6.2.
var KindWeight = map[TokenKind]float64{
	KindIdent:    1.0,
	KindCompound: 0.9,
	KindWord:     0.7,
	KindStr:      0.3,
	KindNum:      0.2,
	KindOp:       0.1,
}

// Eligible reports whether a token kind counts toward block size / centroid
// selection (spec GLOSSARY: "Eligible token").
func Eligible(k TokenKind) bool {
	return k == KindIdent || k == KindCompound || k == KindWord
}

// BlockKind distinguishes how a block's boundaries were derived.
type BlockKind string

const (
	BlockLayout  BlockKind = "layout"
	BlockHeading BlockKind = "heading"
	BlockWindow  BlockKind = "window"
)

// ContextModel names the two co-occurrence sweep strategies (spec §4.5).
type ContextModel string

const (
	ModelLine  ContextModel = "line"
	ModelBlock ContextModel = "block"
)

// ClusterMode selects the clustering formula used by the scorer (spec §4.6.2).
type ClusterMode string

const (
	ClusterConcentration ClusterMode = "concentration"
	ClusterCentroid      ClusterMode = "centroid"
)

// CentroidDim is the fixed dense-vector width used for block centroids and
// query centroids (spec §3, §4.5).
const CentroidDim = 256
