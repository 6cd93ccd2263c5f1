// Package varint provides the LEB128-style variable-length integer codec
// used for posting line lists and block line-maps (spec.md §4.1).
//
// Each encoded integer uses 7 data bits per byte with the MSB as a
// continuation flag. Delta lists store (first, d1, d2, ...) where
// d(i) = x(i) - x(i-1) >= 0, so a sorted ascending list compresses well.
package varint

import "errors"

// ErrNotSorted is returned by EncodeDeltaU32List when the input is not
// strictly increasing.
var ErrNotSorted = errors.New("varint: list is not strictly increasing")

// ErrTruncated is returned by the decoders when the byte stream ends inside
// a varint.
var ErrTruncated = errors.New("varint: truncated input")

// EncodeU64 appends the LEB128 encoding of v to dst and returns the result.
func EncodeU64(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// DecodeU64 decodes one LEB128 value from b, returning the value and the
// number of bytes consumed.
func DecodeU64(b []byte) (uint64, int, error) {
	var result uint64
	var shift uint
	for i := 0; i < len(b); i++ {
		c := b[i]
		result |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, errors.New("varint: value overflows uint64")
		}
	}
	return 0, 0, ErrTruncated
}

// EncodeU32List encodes a list of uint32 values with no delta transform,
// each as a plain LEB128 varint, one after another.
func EncodeU32List(values []uint32) []byte {
	out := make([]byte, 0, len(values)*2)
	for _, v := range values {
		out = EncodeU64(out, uint64(v))
	}
	return out
}

// DecodeU32List decodes a sequence produced by EncodeU32List.
func DecodeU32List(b []byte) ([]uint32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	out := make([]uint32, 0, len(b)/2+1)
	for len(b) > 0 {
		v, n, err := DecodeU64(b)
		if err != nil {
			return nil, err
		}
		out = append(out, uint32(v))
		b = b[n:]
	}
	return out, nil
}

// EncodeDeltaU32List encodes a strictly increasing, non-empty-checked list
// of uint32 values as (first, d1, d2, ...). The empty list encodes to the
// empty byte string. Returns ErrNotSorted if values is not strictly
// increasing.
func EncodeDeltaU32List(values []uint32) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]byte, 0, len(values)*2)
	out = EncodeU64(out, uint64(values[0]))
	prev := values[0]
	for _, v := range values[1:] {
		if v <= prev {
			return nil, ErrNotSorted
		}
		out = EncodeU64(out, uint64(v-prev))
		prev = v
	}
	return out, nil
}

// DecodeDeltaU32List decodes a sequence produced by EncodeDeltaU32List. An
// empty input decodes to a nil (zero-length) list.
func DecodeDeltaU32List(b []byte) ([]uint32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	first, n, err := DecodeU64(b)
	if err != nil {
		return nil, err
	}
	b = b[n:]
	out := []uint32{uint32(first)}
	prev := uint32(first)
	for len(b) > 0 {
		d, n, err := DecodeU64(b)
		if err != nil {
			return nil, err
		}
		prev += uint32(d)
		out = append(out, prev)
		b = b[n:]
	}
	return out, nil
}
