package vectors

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/trans/xerp-sub001/internal/config"
	"github.com/trans/xerp-sub001/internal/store"
	"github.com/trans/xerp-sub001/internal/types"
)

// Trainer runs the C7 pipeline end to end: sweep co-occurrence under one or
// both context models, project to dense vectors, and (for the block model)
// build block centroids. It reads postings and block structure from the
// store only, the data flow spec.md §2 names for the trainer ("reads
// postings and block structure from C5"), so training never re-reads
// source files from disk.
type Trainer struct {
	store *store.Store

	Window          int
	MinCount        int
	SaliencePercent float64
	SalienceMin     int
	SalienceMax     int
}

// New builds a Trainer with its knobs seeded from Config (overridable by
// `train` CLI flags before Run is called).
func New(st *store.Store, cfg *config.Config) *Trainer {
	return &Trainer{
		store:           st,
		Window:          cfg.Train.CoocWindowSize,
		MinCount:        3, // spec.md §4.5 default; not in the config table, only the CLI --min-count flag
		SaliencePercent: cfg.Train.SaliencePercent,
		SalienceMin:     cfg.Train.SalienceMin,
		SalienceMax:     cfg.Train.SalienceMax,
	}
}

// Result summarizes one training run for `train --json`.
type Result struct {
	FilesTrained   int
	TokensVectors  map[types.ContextModel]int
	BlocksCentroid int
}

// fileTrainData is everything Run needs per file, gathered once up front so
// the block-model sweep and the later centroid pass don't re-query the
// store.
type fileTrainData struct {
	fileID             types.FileID
	lineCount          int
	nodes              []BlockNode
	blockIDs           []types.BlockID
	lineTokensAll      map[int][]types.TokenID
	lineTokensEligible map[int][]types.TokenID
}

// Run sweeps co-occurrence for every model in models, persists the trained
// vectors, and (when ModelBlock is requested) rebuilds block centroids.
// models == {ModelLine, ModelBlock} is a full retrain; a single entry
// retrains just that model, leaving the other's stored vectors untouched.
func (tr *Trainer) Run(ctx context.Context, models []types.ContextModel) (Result, error) {
	result := Result{TokensVectors: map[types.ContextModel]int{}}

	files, err := tr.store.ListFiles(ctx)
	if err != nil {
		return result, err
	}

	allTokens, err := tr.store.AllTokens(ctx)
	if err != nil {
		return result, err
	}
	tokenKind := make(map[types.TokenID]types.TokenKind, len(allTokens))
	tokenDF := make(map[types.TokenID]int, len(allTokens))
	for _, t := range allTokens {
		tokenKind[t.ID] = t.Kind
		tokenDF[t.ID] = t.DF
	}
	nFiles, err := tr.store.TotalFileCount(ctx)
	if err != nil {
		return result, err
	}
	idf := func(tok types.TokenID) float64 { return idfOf(nFiles, tokenDF[tok]) }

	perFile := make([]fileTrainData, 0, len(files))
	lineAcc := NewAccumulator()
	blockAcc := NewAccumulator()
	wantLine := contains(models, types.ModelLine)
	wantBlock := contains(models, types.ModelBlock)

	for _, f := range files {
		data, err := tr.loadFileTrainData(ctx, f, tokenKind)
		if err != nil {
			return result, err
		}
		perFile = append(perFile, data)

		if wantLine {
			stream := flattenStream(data.lineTokensAll, data.lineCount)
			lineAcc.Merge(LineSweep(stream, windowOrDefault(tr.Window)))
		}
		if wantBlock {
			blockAcc.Merge(BlockSweep(data.nodes, data.lineTokensAll))
		}
	}
	result.FilesTrained = len(files)

	minCount := tr.MinCount
	if minCount <= 0 {
		minCount = 3
	}

	if wantLine {
		n, err := tr.flushModel(ctx, types.ModelLine, lineAcc, minCount)
		if err != nil {
			return result, err
		}
		result.TokensVectors[types.ModelLine] = n
	}
	if wantBlock {
		n, err := tr.flushModel(ctx, types.ModelBlock, blockAcc, minCount)
		if err != nil {
			return result, err
		}
		result.TokensVectors[types.ModelBlock] = n

		sparse := filteredSparse(blockAcc, minCount)
		centroids, err := tr.buildCentroids(ctx, perFile, sparse, idf)
		if err != nil {
			return result, err
		}
		result.BlocksCentroid = centroids
	}

	if err := tr.writeMeta(ctx, models, len(files)); err != nil {
		return result, err
	}
	return result, nil
}

// loadFileTrainData inverts a file's postings into a line->tokens map
// (spec.md §4.5 needs per-line token membership, which postings store as
// per-token line sets) and reconstructs its block forest as flat
// parent-index nodes (spec.md §9).
func (tr *Trainer) loadFileTrainData(ctx context.Context, f store.FileRow, tokenKind map[types.TokenID]types.TokenKind) (fileTrainData, error) {
	postings, err := tr.store.PostingsForFile(ctx, f.ID)
	if err != nil {
		return fileTrainData{}, err
	}
	lineTokensAll := map[int][]types.TokenID{}
	lineTokensEligible := map[int][]types.TokenID{}
	for _, p := range postings {
		lines, err := store.DecodeLines(p.LinesBlob)
		if err != nil {
			return fileTrainData{}, err
		}
		for _, l := range lines {
			line := int(l)
			lineTokensAll[line] = append(lineTokensAll[line], p.TokenID)
			if types.Eligible(tokenKind[p.TokenID]) {
				lineTokensEligible[line] = append(lineTokensEligible[line], p.TokenID)
			}
		}
	}
	for _, m := range []map[int][]types.TokenID{lineTokensAll, lineTokensEligible} {
		for line, ids := range m {
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			m[line] = ids
		}
	}

	blockRows, err := tr.store.BlocksForFile(ctx, f.ID)
	if err != nil {
		return fileTrainData{}, err
	}
	indexOf := make(map[types.BlockID]int, len(blockRows))
	for i, b := range blockRows {
		indexOf[b.ID] = i
	}
	nodes := make([]BlockNode, len(blockRows))
	blockIDs := make([]types.BlockID, len(blockRows))
	for i, b := range blockRows {
		parentIdx := -1
		if b.ParentBlockID != nil {
			parentIdx = indexOf[*b.ParentBlockID]
		}
		nodes[i] = BlockNode{LineStart: b.LineStart, LineEnd: b.LineEnd, ParentIdx: parentIdx}
		blockIDs[i] = b.ID
	}

	return fileTrainData{
		fileID:             f.ID,
		lineCount:          f.LineCount,
		nodes:              nodes,
		blockIDs:           blockIDs,
		lineTokensAll:      lineTokensAll,
		lineTokensEligible: lineTokensEligible,
	}, nil
}

// flushModel clears a model's stored co-occurrence/vectors and rewrites
// them from acc, discarding pairs below minCount (spec.md §4.5), and
// returns the number of tokens given a fresh dense vector.
func (tr *Trainer) flushModel(ctx context.Context, model types.ContextModel, acc *Accumulator, minCount int) (int, error) {
	vectorized := 0
	err := tr.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		if err := store.ClearCooc(ctx, tx, string(model)); err != nil {
			return err
		}
		for _, table := range []string{"token_dense_vector", "token_vector_norm"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE model_id = ?", string(model)); err != nil {
				return err
			}
		}
		for _, tok := range acc.Tokens() {
			sparse := acc.Sparse(tok)
			kept := map[types.TokenID]int{}
			for ctxID, count := range sparse {
				if count < minCount {
					continue
				}
				kept[ctxID] = count
				if err := store.IncCooc(ctx, tx, string(model), tok, ctxID, count); err != nil {
					return err
				}
			}
			if len(kept) == 0 {
				continue
			}
			dense := ProjectCounts(kept)
			norm := Normalize(dense)
			if err := store.WriteTokenVector(ctx, tx, string(model), tok, EncodeVector(dense), norm); err != nil {
				return err
			}
			vectorized++
		}
		return nil
	})
	return vectorized, err
}

// buildCentroids rebuilds every block's centroid from the trained block
// model's (minCount-filtered) sparse vectors, leaves first then parents
// (spec.md §4.5).
func (tr *Trainer) buildCentroids(ctx context.Context, perFile []fileTrainData, sparse map[types.TokenID]map[types.TokenID]int, idf func(types.TokenID) float64) (int, error) {
	percent := tr.SaliencePercent
	if percent <= 0 {
		percent = 0.30
	}
	min, max := tr.SalienceMin, tr.SalienceMax
	if min <= 0 {
		min = 8
	}
	if max <= 0 {
		max = 64
	}
	sparseOf := func(tok types.TokenID) map[types.TokenID]int { return sparse[tok] }

	total := 0
	for _, data := range perFile {
		if len(data.nodes) == 0 {
			continue
		}
		children := childrenIndex(data.nodes)
		dense := make([][]float64, len(data.nodes))

		err := tr.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
			for i := len(data.nodes) - 1; i >= 0; i-- {
				kids := children[i]
				var v []float64
				if len(kids) == 0 {
					eligible := tokensInRange(data.lineTokensEligible, data.nodes[i].LineStart, data.nodes[i].LineEnd)
					v, _ = LeafCentroid(eligible, idf, sparseOf, percent, min, max)
				} else {
					childDense := make([][]float64, len(kids))
					for j, k := range kids {
						childDense[j] = dense[k]
					}
					v, _ = ParentCentroid(childDense)
				}
				dense[i] = v
				if err := store.WriteBlockCentroid(ctx, tx, data.blockIDs[i], EncodeVector(v)); err != nil {
					return err
				}
				total++
			}
			return nil
		})
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (tr *Trainer) writeMeta(ctx context.Context, models []types.ContextModel, fileCount int) error {
	return tr.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		if err := store.SetMeta(ctx, tx, store.MetaLastTrainedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return err
		}
		if err := store.SetMeta(ctx, tx, store.MetaTrainedOnCount, itoa(fileCount)); err != nil {
			return err
		}
		names := make([]byte, 0, 16)
		for i, m := range models {
			if i > 0 {
				names = append(names, ',')
			}
			names = append(names, []byte(m)...)
		}
		return store.SetMeta(ctx, tx, store.MetaActiveModel, string(names))
	})
}

func idfOf(nFiles, df int) float64 {
	return math.Log(float64(nFiles+1)/float64(df+1)) + 1
}

func itoa(n int) string { return strconv.Itoa(n) }

func filteredSparse(acc *Accumulator, minCount int) map[types.TokenID]map[types.TokenID]int {
	out := make(map[types.TokenID]map[types.TokenID]int, len(acc.counts))
	for tok, ctxs := range acc.counts {
		kept := map[types.TokenID]int{}
		for ctxID, count := range ctxs {
			if count >= minCount {
				kept[ctxID] = count
			}
		}
		if len(kept) > 0 {
			out[tok] = kept
		}
	}
	return out
}

func flattenStream(lineTokens map[int][]types.TokenID, lineCount int) []types.TokenID {
	var stream []types.TokenID
	for line := 1; line <= lineCount; line++ {
		stream = append(stream, lineTokens[line]...)
	}
	return stream
}

func windowOrDefault(w int) int {
	if w <= 0 {
		return 5
	}
	return w
}

func contains(models []types.ContextModel, m types.ContextModel) bool {
	for _, x := range models {
		if x == m {
			return true
		}
	}
	return false
}
