package query

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trans/xerp-sub001/internal/config"
	"github.com/trans/xerp-sub001/internal/feedback"
	"github.com/trans/xerp-sub001/internal/indexing"
	"github.com/trans/xerp-sub001/internal/store"
)

func zeroClock() int64 { return 0 }

func TestQueryEndToEndFindsSeededToken(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "retry.cr"),
		[]byte("def retry(attempts)\n  backoff = calculate(attempts)\n  sleep(backoff)\nend\n"), 0o644))
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

	eng := New(st)
	resp, err := eng.Run(ctx, "backoff", DefaultOptions(cfg), zeroClock)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	require.Equal(t, "retry.cr", resp.Results[0].FilePath)
}

func TestQueryResultIDStableAcrossRuns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "retry.cr"),
		[]byte("def retry(attempts)\n  backoff = calculate(attempts)\n  sleep(backoff)\nend\n"), 0o644))

	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Index.ParallelWorkers = 1

	st, err := store.Open(filepath.Join(t.TempDir(), "xerp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	_, err = indexing.New(st, cfg).Run(ctx)
	require.NoError(t, err)

	eng := New(st)
	opts := DefaultOptions(cfg)
	r1, err := eng.Run(ctx, "backoff", opts, zeroClock)
	require.NoError(t, err)
	r2, err := eng.Run(ctx, "backoff", opts, zeroClock)
	require.NoError(t, err)
	require.NotEmpty(t, r1.Results)
	require.NotEmpty(t, r2.Results)
	require.Equal(t, r1.Results[0].ResultID, r2.Results[0].ResultID)
}

func TestQueryEmptyQueryReturnsNoResults(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Index.ParallelWorkers = 1

	st, err := store.Open(filepath.Join(t.TempDir(), "xerp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	_, err = indexing.New(st, cfg).Run(ctx)
	require.NoError(t, err)

	eng := New(st)
	resp, err := eng.Run(ctx, "   ", DefaultOptions(cfg), zeroClock)
	require.NoError(t, err)
	require.Empty(t, resp.Results)
}

func TestQueryUnknownTokenReturnsNoResults(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "retry.cr"),
		[]byte("def retry(attempts)\nend\n"), 0o644))
	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Index.ParallelWorkers = 1

	st, err := store.Open(filepath.Join(t.TempDir(), "xerp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	_, err = indexing.New(st, cfg).Run(ctx)
	require.NoError(t, err)

	eng := New(st)
	resp, err := eng.Run(ctx, "nonexistentzzz", DefaultOptions(cfg), zeroClock)
	require.NoError(t, err)
	require.Empty(t, resp.Results)
}

func TestFeedbackLowersRank(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "retry.cr"),
		[]byte("def retry(attempts)\n  backoff = calculate(attempts)\n  sleep(backoff)\nend\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "http.cr"),
		[]byte("class HttpClient; def request(url); fetch(backoff); end; end\n"), 0o644))

	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Index.ParallelWorkers = 1

	st, err := store.Open(filepath.Join(t.TempDir(), "xerp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	_, err = indexing.New(st, cfg).Run(ctx)
	require.NoError(t, err)

	eng := New(st)
	opts := DefaultOptions(cfg)
	before, err := eng.Run(ctx, "backoff", opts, zeroClock)
	require.NoError(t, err)
	require.NotEmpty(t, before.Results)
	target := before.Results[0]

	tok, err := st.GetTokenByText(ctx, "backoff")
	require.NoError(t, err)
	require.NotNil(t, tok)

	rec := feedback.New(st)
	for i := 0; i < 10; i++ {
		require.NoError(t, rec.Mark(ctx, target.ResultID, -1.0, "noise", nil, nil, nil))
	}
	ls, le := target.LineStart, target.LineEnd
	fileRow, err := st.GetFileByPath(ctx, target.FilePath)
	require.NoError(t, err)
	require.NotNil(t, fileRow)
	require.NoError(t, rec.Mark(ctx, target.ResultID, -1.0, "bad", &fileRow.ID, &ls, &le))

	after, err := eng.Run(ctx, "backoff", opts, zeroClock)
	require.NoError(t, err)
	require.NotEmpty(t, after.Results)

	var beforeScore, afterScore float64
	for _, r := range before.Results {
		if r.ResultID == target.ResultID {
			beforeScore = r.Score
		}
	}
	for _, r := range after.Results {
		if r.ResultID == target.ResultID {
			afterScore = r.Score
		}
	}
	require.Less(t, afterScore, beforeScore)
}

// TestAssembleRecordsResultLocationForFeedback proves the result_id a query
// hands back resolves to a location through the store alone, the way `mark`
// resolves it, rather than requiring the caller to already know the file
// and line range.
func TestAssembleRecordsResultLocationForFeedback(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "retry.cr"),
		[]byte("def retry(attempts)\n  backoff = calculate(attempts)\n  sleep(backoff)\nend\n"), 0o644))

	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Index.ParallelWorkers = 1

	st, err := store.Open(filepath.Join(t.TempDir(), "xerp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	_, err = indexing.New(st, cfg).Run(ctx)
	require.NoError(t, err)

	eng := New(st)
	opts := DefaultOptions(cfg)
	resp, err := eng.Run(ctx, "backoff", opts, zeroClock)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	target := resp.Results[0]

	fileID, ls, le, ok, err := st.ResultLocation(ctx, target.ResultID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, target.LineStart, ls)
	require.Equal(t, target.LineEnd, le)

	tok, err := st.GetTokenByText(ctx, "backoff")
	require.NoError(t, err)
	require.NotNil(t, tok)

	rec := feedback.New(st)
	for i := 0; i < 10; i++ {
		require.NoError(t, rec.Mark(ctx, target.ResultID, -1.0, "bad", &fileID, &ls, &le))
	}

	after, err := eng.Run(ctx, "backoff", opts, zeroClock)
	require.NoError(t, err)
	var afterScore float64
	for _, r := range after.Results {
		if r.ResultID == target.ResultID {
			afterScore = r.Score
		}
	}
	require.Less(t, afterScore, target.Score)
}
