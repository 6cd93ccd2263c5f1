// Package vectors implements the C7 vector trainer from spec.md §4.5: two
// co-occurrence context models (line sweep and block/scope sweep), a
// feature-hashed dense projection shared by both, and block centroid
// construction. Grounded on the feature-hashing/vocabulary shape of
// other_examples' embedder_tfidf.go, adapted from a 768-dim TF-IDF bag to
// xerp's fixed 256-dim co-occurrence projection, and on xxhash
// (github.com/cespare/xxhash/v2) already used by the teacher's content
// store for fast non-cryptographic hashing.
package vectors

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/trans/xerp-sub001/internal/types"
	"github.com/trans/xerp-sub001/internal/xerrors"
)

var (
	errNotF32Aligned = errors.New("vector blob length not a multiple of 4 bytes")
	errDimMismatch   = errors.New("vector blob dimension does not match Dim")
)

// Dim is the fixed dense-vector width (spec.md §3, §4.5).
const Dim = types.CentroidDim

// hashSignSalt differentiates h2 (the sign hash) from h1 (the bin hash)
// without a second hash function, the same trick the feature-hashing
// literature calls "salted rehashing".
const hashSignSalt = "xerp-sign"

// binAndSign computes (h1(contextID) mod Dim, sign) for one sparse
// dimension, spec.md §4.5: "bin = h1(context_id) mod 256, sign =
// h2(context_id) ? +1 : -1".
func binAndSign(contextID types.TokenID) (int, float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(contextID))

	h1 := xxhash.Sum64(buf[:])
	bin := int(h1 % uint64(Dim))

	h2 := xxhash.Sum64(append(buf[:], hashSignSalt...))
	sign := 1.0
	if h2&1 == 0 {
		sign = -1.0
	}
	return bin, sign
}

// Project maps a sparse {context_id -> weight} vector to a Dim-wide dense
// vector by feature hashing (spec.md §4.5). The result is NOT normalized;
// callers that need a unit vector should call Normalize.
func Project(sparse map[types.TokenID]float64) []float64 {
	dense := make([]float64, Dim)
	for ctxID, weight := range sparse {
		bin, sign := binAndSign(ctxID)
		dense[bin] += sign * weight
	}
	return dense
}

// ProjectCounts is the integer-count convenience form Project is usually
// called with directly from raw co-occurrence counts.
func ProjectCounts(sparse map[types.TokenID]int) []float64 {
	weighted := make(map[types.TokenID]float64, len(sparse))
	for ctxID, count := range sparse {
		weighted[ctxID] = float64(count)
	}
	return Project(weighted)
}

// Normalize L2-normalizes v in place and returns its pre-normalization norm.
// A zero vector is left untouched (spec.md §4.5: "If all zeros, leave as
// zero vector").
func Normalize(v []float64) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return 0
	}
	for i := range v {
		v[i] /= norm
	}
	return norm
}

// EncodeVector packs a Dim-wide float64 vector into little-endian f32
// bytes, the fixed layout spec.md §9 calls for ("little-endian f32 for
// centroid blobs; explicit width in meta").
func EncodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(x)))
	}
	return buf
}

// DecodeVector unpacks a little-endian f32 vector blob, returning a
// *xerrors.VectorError (spec.md §7.4: "dimension mismatch, corrupt blob")
// if the byte length isn't a multiple of 4 or doesn't match Dim.
func DecodeVector(blob []byte) ([]float64, error) {
	if len(blob)%4 != 0 {
		return nil, xerrors.NewVectorError("decode-vector", errNotF32Aligned)
	}
	n := len(blob) / 4
	if n != Dim {
		return nil, xerrors.NewVectorError("decode-vector", errDimMismatch)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		out[i] = float64(math.Float32frombits(bits))
	}
	return out, nil
}

// Cosine computes cosine similarity between two equal-length vectors,
// clamped to [0, 1] the way centroid clustering uses it (spec.md §4.6.2:
// "mapped to [0, 1] by clamping below at 0").
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	c := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if c < 0 {
		return 0
	}
	if c > 1 {
		c = 1
	}
	return c
}
