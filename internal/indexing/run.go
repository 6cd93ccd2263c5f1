package indexing

import (
	"context"
	"database/sql"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/trans/xerp-sub001/internal/blocks"
	"github.com/trans/xerp-sub001/internal/config"
	"github.com/trans/xerp-sub001/internal/discovery"
	"github.com/trans/xerp-sub001/internal/store"
	"github.com/trans/xerp-sub001/internal/tokenizer"
	"github.com/trans/xerp-sub001/internal/xerrors"
)

// Summary is the `index` command's run report (spec.md §6 `index --json`
// output and §7: "the indexer ... collect per-unit failures and surface a
// summary").
type Summary struct {
	FilesScanned   int
	FilesIndexed   int
	FilesUnchanged int
	FilesSkipped   int
	FilesRemoved   int
	SkippedReasons map[string]string // rel_path -> reason, bounded by FilesSkipped
}

// Indexer runs a full or incremental index pass over a project root.
type Indexer struct {
	store     *store.Store
	scanner   *discovery.Scanner
	tokenizer *tokenizer.Tokenizer
	opts      blocks.Options
	workers   int
}

// New builds an Indexer wired from a loaded Config.
func New(st *store.Store, cfg *config.Config) *Indexer {
	workers := cfg.Index.ParallelWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Indexer{
		store:     st,
		scanner:   discovery.New(cfg),
		tokenizer: tokenizer.New(tokenizer.Config{MaxTokenLen: cfg.Index.MaxTokenLen}),
		opts: blocks.Options{
			TabWidth:      cfg.Index.TabWidth,
			WindowSize:    cfg.Index.WindowSize,
			WindowOverlap: cfg.Index.WindowOverlap,
			// Keywords starts at the hardcoded tier only; withLearnedKeywords
			// merges in the learned tier fresh at the top of every Run, since
			// it depends on whatever blocks prior runs have since persisted.
			Keywords:       blocks.DefaultKeywords(),
			HeaderCapChars: 80,
		},
		workers: workers,
	}
}

// withLearnedKeywords returns ix.opts with the learned header-keyword tier
// (spec.md §4.3.1) merged in from every block edge persisted so far. Run
// calls this once per pass rather than New computing it once at
// construction, since the learned tier is only as fresh as the last index
// run and should reflect everything trained up to the moment this one
// starts.
func (ix *Indexer) withLearnedKeywords(ctx context.Context) (blocks.Options, error) {
	opts := ix.opts
	edges, err := ix.store.BlockEdgeLines(ctx)
	if err != nil {
		return opts, err
	}
	learnEdges := make([]blocks.EdgeLines, len(edges))
	for i, e := range edges {
		learnEdges[i] = blocks.EdgeLines{First: e.First, Last: e.Last}
	}
	opts.Keywords = opts.Keywords.WithLearned(blocks.LearnKeywords(learnEdges))
	return opts, nil
}

// Run walks the project root, indexes every eligible file (bounded by
// Indexer.workers concurrent workers, the errgroup-based generalization of
// the teacher's hand-rolled semaphore pool), then removes store rows for
// files no longer present (spec.md §4.4: "Deleted files ... are removed on
// the next full scan that doesn't see them").
func (ix *Indexer) Run(ctx context.Context) (Summary, error) {
	opts, err := ix.withLearnedKeywords(ctx)
	if err != nil {
		return Summary{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)

	var mu sync.Mutex
	summary := Summary{SkippedReasons: map[string]string{}}
	seen := map[string]struct{}{}

	walkErr := ix.scanner.Walk(func(cand discovery.Candidate) error {
		mu.Lock()
		summary.FilesScanned++
		seen[cand.RelPath] = struct{}{}
		mu.Unlock()

		g.Go(func() error {
			outcome, err := indexFile(gctx, ix.store, ix.tokenizer, opts, cand)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				switch outcome {
				case OutcomeIndexed:
					summary.FilesIndexed++
				case OutcomeUnchanged:
					summary.FilesUnchanged++
				}
				return nil
			case isFatalStoreErr(err):
				return err
			default:
				summary.FilesSkipped++
				summary.SkippedReasons[cand.RelPath] = err.Error()
				return nil
			}
		})
		return nil
	}, func(relPath string, err error) {
		mu.Lock()
		summary.FilesSkipped++
		summary.SkippedReasons[relPath] = err.Error()
		mu.Unlock()
	})
	if walkErr != nil {
		return summary, walkErr
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	removed, err := ix.removeVanished(ctx, seen)
	if err != nil {
		return summary, err
	}
	summary.FilesRemoved = removed
	return summary, nil
}

// removeVanished deletes every stored file whose rel_path wasn't observed
// in this scan, cascading through its postings/blocks/line-map/centroids
// first (spec.md §4.4).
func (ix *Indexer) removeVanished(ctx context.Context, seen map[string]struct{}) (int, error) {
	all, err := ix.store.ListFiles(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range all {
		if _, ok := seen[f.RelPath]; ok {
			continue
		}
		err := ix.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
			if err := store.PurgeFileDependents(ctx, tx, f.ID); err != nil {
				return err
			}
			return store.DeleteFile(ctx, tx, f.ID)
		})
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// isFatalStoreErr reports whether err should abort the whole run (spec.md
// §7.3: store errors fail the whole run) rather than being skipped and
// counted like a per-file error.
func isFatalStoreErr(err error) bool {
	_, ok := err.(*xerrors.StoreError)
	return ok
}
