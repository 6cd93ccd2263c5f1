package vectors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trans/xerp-sub001/internal/types"
)

func TestProjectNormalizeRoundtrip(t *testing.T) {
	sparse := map[types.TokenID]float64{1: 3, 2: 5, 3: 1}
	dense := Project(sparse)
	require.Len(t, dense, Dim)

	norm := Normalize(dense)
	require.Greater(t, norm, 0.0)

	var sumSq float64
	for _, x := range dense {
		sumSq += x * x
	}
	require.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-9)
}

func TestProjectDeterministic(t *testing.T) {
	sparse := map[types.TokenID]float64{42: 7, 99: 2}
	a := Project(sparse)
	b := Project(sparse)
	require.Equal(t, a, b)
}

func TestNormalizeZeroVectorStaysZero(t *testing.T) {
	v := make([]float64, Dim)
	norm := Normalize(v)
	require.Equal(t, 0.0, norm)
	for _, x := range v {
		require.Equal(t, 0.0, x)
	}
}

func TestEncodeDecodeVectorRoundtrip(t *testing.T) {
	v := make([]float64, Dim)
	for i := range v {
		v[i] = float64(i) / float64(Dim)
	}
	Normalize(v)

	blob := EncodeVector(v)
	require.Len(t, blob, Dim*4)

	decoded, err := DecodeVector(blob)
	require.NoError(t, err)
	require.Len(t, decoded, Dim)
	for i := range v {
		require.InDelta(t, v[i], decoded[i], 1e-6)
	}
}

func TestDecodeVectorRejectsBadLength(t *testing.T) {
	_, err := DecodeVector([]byte{1, 2, 3})
	require.Error(t, err)

	_, err = DecodeVector(make([]byte, 8))
	require.Error(t, err)
}

func TestCosineClampedToZeroOne(t *testing.T) {
	a := make([]float64, Dim)
	b := make([]float64, Dim)
	a[0], a[1] = 1, 0
	b[0], b[1] = -1, 0
	require.Equal(t, 0.0, Cosine(a, b))

	c := make([]float64, Dim)
	c[0] = 1
	require.InDelta(t, 1.0, Cosine(a, c), 1e-9)
}

func TestLineSweepSymmetric(t *testing.T) {
	stream := []types.TokenID{1, 2, 3, 4}
	acc := LineSweep(stream, 1)
	require.Equal(t, 1, acc.Sparse(1)[2])
	require.Equal(t, 1, acc.Sparse(2)[1])
	require.Equal(t, 1, acc.Sparse(2)[3])
	_, has13 := acc.Sparse(1)[3]
	require.False(t, has13, "window=1 shouldn't connect positions two apart")
}

func TestBlockSweepLeafSweepsAllTogether(t *testing.T) {
	nodes := []BlockNode{{LineStart: 1, LineEnd: 3, ParentIdx: -1}}
	lineTokens := map[int][]types.TokenID{
		1: {1},
		2: {2},
		3: {3},
	}
	acc := BlockSweep(nodes, lineTokens)
	require.Equal(t, 1, acc.Sparse(1)[2])
	require.Equal(t, 1, acc.Sparse(1)[3])
	require.Equal(t, 1, acc.Sparse(2)[3])
}

func TestBlockSweepNonLeafUsesChildHeadersOnly(t *testing.T) {
	// root (1-4) -> child A (1-2), child B (3-4)
	nodes := []BlockNode{
		{LineStart: 1, LineEnd: 4, ParentIdx: -1},
		{LineStart: 1, LineEnd: 2, ParentIdx: 0},
		{LineStart: 3, LineEnd: 4, ParentIdx: 0},
	}
	lineTokens := map[int][]types.TokenID{
		1: {10}, // header of A
		2: {11}, // body of A, excluded from the non-leaf sweep
		3: {20}, // header of B
		4: {21}, // body of B, excluded
	}
	acc := BlockSweep(nodes, lineTokens)
	// Non-leaf root sweeps headers {10, 20} together.
	require.Equal(t, 1, acc.Sparse(10)[20])
	// Leaf A sweeps its own body together: {10, 11}.
	require.Equal(t, 1, acc.Sparse(10)[11])
	// Body tokens of different leaves never co-occur.
	_, has := acc.Sparse(11)[21]
	require.False(t, has)
}

func TestLeafCentroidUnitNorm(t *testing.T) {
	idf := func(types.TokenID) float64 { return 1.0 }
	sparse := func(tok types.TokenID) map[types.TokenID]int {
		return map[types.TokenID]int{tok + 100: 5}
	}
	dense, norm := LeafCentroid([]types.TokenID{1, 2, 3}, idf, sparse, 1.0, 1, 64)
	// norm is the centroid's length before normalization: the IDF-weighted
	// average of the three sparse vectors is 5/3 on each of 101, 102, 103.
	want := Normalize(Project(map[types.TokenID]float64{101: 5.0 / 3, 102: 5.0 / 3, 103: 5.0 / 3}))
	require.InDelta(t, want, norm, 1e-9)
	var sumSq float64
	for _, x := range dense {
		sumSq += x * x
	}
	require.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-6)
}

func TestParentCentroidIsMeanOfChildren(t *testing.T) {
	a := make([]float64, Dim)
	b := make([]float64, Dim)
	a[0] = 1
	b[1] = 1
	mean, norm := ParentCentroid([][]float64{a, b})
	require.Greater(t, norm, 0.0)
	require.InDelta(t, (1.0/2)/norm, mean[0], 1e-9)
}
