package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/trans/xerp-sub001/internal/indexing"
	"github.com/trans/xerp-sub001/internal/jsonout"
	"github.com/trans/xerp-sub001/internal/types"
	"github.com/trans/xerp-sub001/internal/vectors"
)

// indexCommand implements `index [--root PATH] [--rebuild] [--train] [--json]`
// (spec.md §6), grounded on the teacher's index-then-report flow in
// cmd/lci/main.go's MasterIndex.Run + summary print.
func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "scan the project root and update the index",
		Flags: append(rootConfigFlags(),
			&cli.BoolFlag{Name: "rebuild", Usage: "drop and rebuild the store before indexing"},
			&cli.BoolFlag{Name: "train", Usage: "run a full train pass immediately after indexing"},
			&cli.BoolFlag{Name: "json", Usage: "print the run summary as JSON"},
		),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			if c.Bool("rebuild") {
				if err := os.Remove(cfg.Project.DBPath); err != nil && !os.IsNotExist(err) {
					return cli.Exit(fmt.Sprintf("rebuild: %v", err), 2)
				}
			}

			st, err := openStore(cfg)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			defer st.Close()

			ctx := context.Background()
			start := time.Now()
			summary, err := indexing.New(st, cfg).Run(ctx)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			duration := time.Since(start)

			var trainResult *vectors.Result
			if c.Bool("train") {
				tr, err := vectors.New(st, cfg).Run(ctx, []types.ContextModel{types.ModelLine, types.ModelBlock})
				if err != nil {
					return cli.Exit(err.Error(), 2)
				}
				trainResult = &tr
			}

			return printIndexResult(c, summary, duration.Milliseconds(), trainResult)
		},
	}
}

func printIndexResult(c *cli.Context, summary indexing.Summary, durationMs int64, train *vectors.Result) error {
	if c.Bool("json") {
		out, err := jsonout.MarshalIndex(jsonout.FromIndexSummary(summary, durationMs))
		if err != nil {
			return cli.Exit(err.Error(), 2)
		}
		if train != nil {
			var payload map[string]any
			if err := json.Unmarshal(out, &payload); err != nil {
				return cli.Exit(err.Error(), 2)
			}
			trainOut, err := jsonout.MarshalTrain(jsonout.FromTrainResult(*train))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			var trainPayload map[string]any
			if err := json.Unmarshal(trainOut, &trainPayload); err != nil {
				return cli.Exit(err.Error(), 2)
			}
			payload["train"] = trainPayload
			return json.NewEncoder(os.Stdout).Encode(payload)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("scanned %d, indexed %d, unchanged %d, skipped %d, removed %d (%dms)\n",
		summary.FilesScanned, summary.FilesIndexed, summary.FilesUnchanged,
		summary.FilesSkipped, summary.FilesRemoved, durationMs)
	for path, reason := range summary.SkippedReasons {
		fmt.Printf("  skipped %s: %s\n", path, reason)
	}
	if train != nil {
		fmt.Printf("trained %d files, centroids for %d blocks\n", train.FilesTrained, train.BlocksCentroid)
		for model, n := range train.TokensVectors {
			fmt.Printf("  %s model: %d token vectors\n", model, n)
		}
	}
	return nil
}
