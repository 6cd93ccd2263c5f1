package ann

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func unitVec(dim, hot int) []float64 {
	v := make([]float64, dim)
	v[hot] = 1
	return v
}

func TestSearchRanksByCosineDescending(t *testing.T) {
	ix := New(4)
	require.NoError(t, ix.Add(1, []float64{1, 0, 0, 0}))
	require.NoError(t, ix.Add(2, []float64{0, 1, 0, 0}))
	require.NoError(t, ix.Add(3, []float64{0.9, 0.1, 0, 0}))

	matches, err := ix.Search([]float64{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, Key(1), matches[0].Key)
	require.InDelta(t, 1.0, matches[0].Similarity, 1e-9)
	require.Equal(t, Key(3), matches[1].Key)
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	ix := New(4)
	err := ix.Add(1, []float64{1, 2, 3})
	require.Error(t, err)
}

func TestSearchRejectsDimensionMismatch(t *testing.T) {
	ix := New(4)
	require.NoError(t, ix.Add(1, unitVec(4, 0)))
	_, err := ix.Search([]float64{1, 2}, 1)
	require.Error(t, err)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	ix := New(8)
	require.NoError(t, ix.Add(10, unitVec(8, 0)))
	require.NoError(t, ix.Add(20, unitVec(8, 3)))

	path := filepath.Join(t.TempDir(), "idx.ann")
	require.NoError(t, ix.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ix.Len(), loaded.Len())

	view := loaded.View()
	require.Equal(t, unitVec(8, 0), view[10])
	require.Equal(t, unitVec(8, 3), view[20])
}

func TestLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ann")
	require.NoError(t, os.WriteFile(path, []byte("not an ann index at all"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
