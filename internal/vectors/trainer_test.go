package vectors

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trans/xerp-sub001/internal/config"
	"github.com/trans/xerp-sub001/internal/indexing"
	"github.com/trans/xerp-sub001/internal/store"
	"github.com/trans/xerp-sub001/internal/types"
)

func trainedStore(t *testing.T) (*store.Store, context.Context) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "retry.cr"),
		[]byte("def retry(attempts)\n  backoff = calculate(i)\n  sleep(backoff)\nend\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "http.cr"),
		[]byte("class HttpClient; def request(url); fetch(url); end; end\n"), 0o644))

	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Index.Include = []string{"**/*"}
	cfg.Index.ParallelWorkers = 1

	st, err := store.Open(filepath.Join(t.TempDir(), "xerp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	_, err = indexing.New(st, cfg).Run(ctx)
	require.NoError(t, err)
	return st, ctx
}

func TestTrainerBuildsBothModels(t *testing.T) {
	st, ctx := trainedStore(t)
	cfg := config.Default()
	tr := New(st, cfg)
	tr.MinCount = 1 // the fixture is tiny; the spec default of 3 would starve every pair

	result, err := tr.Run(ctx, []types.ContextModel{types.ModelLine, types.ModelBlock})
	require.NoError(t, err)
	require.Equal(t, 2, result.FilesTrained)
	require.Greater(t, result.TokensVectors[types.ModelLine], 0)
	require.Greater(t, result.TokensVectors[types.ModelBlock], 0)
	require.Greater(t, result.BlocksCentroid, 0)

	tok, err := st.GetTokenByText(ctx, "backoff")
	require.NoError(t, err)
	require.NotNil(t, tok)

	blob, ok, err := st.TokenVector(ctx, string(types.ModelLine), tok.ID)
	require.NoError(t, err)
	if ok {
		vec, err := DecodeVector(blob)
		require.NoError(t, err)
		require.Len(t, vec, Dim)
		assertUnitOrZero(t, vec)
	}

	centroids, err := st.AllBlockCentroids(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, centroids)
	for _, blob := range centroids {
		vec, err := DecodeVector(blob)
		require.NoError(t, err)
		assertUnitOrZero(t, vec)
	}

	lastTrained, ok, err := st.GetMeta(ctx, store.MetaLastTrainedAt)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, lastTrained)
}

func TestTrainerSingleModelLeavesOtherUntouched(t *testing.T) {
	st, ctx := trainedStore(t)
	cfg := config.Default()
	tr := New(st, cfg)
	tr.MinCount = 1

	_, err := tr.Run(ctx, []types.ContextModel{types.ModelLine, types.ModelBlock})
	require.NoError(t, err)

	before, err := st.AllBlockCentroids(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, before)

	_, err = tr.Run(ctx, []types.ContextModel{types.ModelLine})
	require.NoError(t, err)

	after, err := st.AllBlockCentroids(ctx)
	require.NoError(t, err)
	require.Equal(t, len(before), len(after))
}

func assertUnitOrZero(t *testing.T, vec []float64) {
	t.Helper()
	var sumSq float64
	for _, x := range vec {
		sumSq += x * x
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	require.InDelta(t, 1.0, norm, 1e-3)
}
