package varint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeltaRoundtrip(t *testing.T) {
	in := []uint32{1, 5, 10, 15, 100, 1000}
	enc, err := EncodeDeltaU32List(in)
	require.NoError(t, err)
	dec, err := DecodeDeltaU32List(enc)
	require.NoError(t, err)
	require.Equal(t, in, dec)
}

func TestDeltaEmpty(t *testing.T) {
	enc, err := EncodeDeltaU32List(nil)
	require.NoError(t, err)
	require.Empty(t, enc)

	dec, err := DecodeDeltaU32List(nil)
	require.NoError(t, err)
	require.Nil(t, dec)
}

func TestDeltaRejectsUnsorted(t *testing.T) {
	_, err := EncodeDeltaU32List([]uint32{5, 3})
	require.ErrorIs(t, err, ErrNotSorted)

	_, err = EncodeDeltaU32List([]uint32{5, 5})
	require.ErrorIs(t, err, ErrNotSorted)
}

func TestU64Roundtrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 32, ^uint64(0)}
	for _, v := range values {
		enc := EncodeU64(nil, v)
		dec, n, err := DecodeU64(enc)
		require.NoError(t, err)
		require.Equal(t, len(enc), n)
		require.Equal(t, v, dec)
	}
}

func TestU32ListRoundtrip(t *testing.T) {
	in := []uint32{7, 2, 500000, 0, 9}
	enc := EncodeU32List(in)
	dec, err := DecodeU32List(enc)
	require.NoError(t, err)
	require.Equal(t, in, dec)
}

func TestDecodeTruncated(t *testing.T) {
	_, _, err := DecodeU64([]byte{0x80, 0x80})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestLargeRandomishList(t *testing.T) {
	in := make([]uint32, 0, 2000)
	var cur uint32
	for i := 0; i < 2000; i++ {
		cur += uint32(i%13) + 1
		in = append(in, cur)
	}
	enc, err := EncodeDeltaU32List(in)
	require.NoError(t, err)
	dec, err := DecodeDeltaU32List(enc)
	require.NoError(t, err)
	require.Equal(t, in, dec)
}
