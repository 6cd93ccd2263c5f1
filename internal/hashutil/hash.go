// Package hashutil provides the content-addressed SHA-256 hashing used for
// file content, block content, query identity, and result identity
// (spec.md §2 C2). Hex-encoded digests are used throughout so they can be
// stored as plain TEXT columns in the persistence layer.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Hex returns the lowercase hex SHA-256 digest of data.
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HexString is a convenience wrapper for string input.
func HexString(s string) string {
	return Hex([]byte(s))
}

// Lines hashes the content of a block or file given as a slice of source
// lines (without trailing newlines), joining with "\n" the way the original
// file content would read.
func Lines(lines []string) string {
	return HexString(strings.Join(lines, "\n"))
}

// ResultID computes the stable result identity from spec.md §3 invariant 8:
//
//	result_id = SHA256(rel_path | ":" | line_start | ":" | line_end | ":" | block.content_hash)
func ResultID(relPath string, lineStart, lineEnd int, blockContentHash string) string {
	key := fmt.Sprintf("%s:%s:%s:%s", relPath, strconv.Itoa(lineStart), strconv.Itoa(lineEnd), blockContentHash)
	return HexString(key)
}

// QueryIdentity computes a stable identity for a query string plus its
// normalized option set, used to key feedback aggregation and debugging
// traces. It is not part of a spec invariant but is convenient for log
// correlation.
func QueryIdentity(queryText string, optionFingerprint string) string {
	return HexString(queryText + "|" + optionFingerprint)
}
