package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/trans/xerp-sub001/internal/jsonout"
	"github.com/trans/xerp-sub001/internal/types"
	"github.com/trans/xerp-sub001/internal/vectors"
)

// trainCommand implements `train [--model line|block|all] [--window N]
// [--min-count N] [--top-neighbors N] [--clear] [--json]` (spec.md §6).
// --top-neighbors is accepted for interface compatibility but has no
// runtime effect here: neighbor indexes are rebuilt fresh per query from
// the full trained vector set (DESIGN.md, C8/C9 — ANN persistence is a
// training-time accelerator spec.md §1 doesn't require), so expansion
// breadth is controlled at query time by query.Options.ExpansionTopK, not
// a training-time cap.
func trainCommand() *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "sweep co-occurrence and rebuild trained token/block vectors",
		Flags: append(rootConfigFlags(),
			&cli.StringFlag{Name: "model", Value: "all", Usage: "line|block|all"},
			&cli.IntFlag{Name: "window", Usage: "override train.cooc_window_size"},
			&cli.IntFlag{Name: "min-count", Usage: "minimum co-occurrence count to keep a pair"},
			&cli.IntFlag{Name: "top-neighbors", Usage: "accepted for compatibility; see command help"},
			&cli.BoolFlag{Name: "clear", Usage: "clear trained vectors for the selected model(s) before training"},
			&cli.BoolFlag{Name: "json", Usage: "print the run summary as JSON"},
		),
		Action: func(c *cli.Context) error {
			models, err := parseModelFlag(c.String("model"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			st, err := openStore(cfg)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			defer st.Close()

			ctx := context.Background()
			if c.Bool("clear") {
				err := st.WithWriteTx(ctx, func(tx *sql.Tx) error {
					for _, m := range models {
						if err := vectors.ClearCooc(ctx, tx, string(m)); err != nil {
							return err
						}
					}
					return nil
				})
				if err != nil {
					return cli.Exit(err.Error(), 2)
				}
			}

			tr := vectors.New(st, cfg)
			if c.IsSet("window") {
				tr.Window = c.Int("window")
			}
			if c.IsSet("min-count") {
				tr.MinCount = c.Int("min-count")
			}

			start := time.Now()
			result, err := tr.Run(ctx, models)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			duration := time.Since(start)

			if c.Bool("json") {
				out, err := jsonout.MarshalTrain(jsonout.FromTrainResult(result))
				if err != nil {
					return cli.Exit(err.Error(), 2)
				}
				fmt.Println(string(out))
				return nil
			}
			fmt.Printf("trained %d files in %dms\n", result.FilesTrained, duration.Milliseconds())
			for model, n := range result.TokensVectors {
				fmt.Printf("  %s model: %d token vectors\n", model, n)
			}
			fmt.Printf("  %d block centroids\n", result.BlocksCentroid)
			return nil
		},
	}
}

func parseModelFlag(v string) ([]types.ContextModel, error) {
	switch v {
	case "line":
		return []types.ContextModel{types.ModelLine}, nil
	case "block":
		return []types.ContextModel{types.ModelBlock}, nil
	case "all", "":
		return []types.ContextModel{types.ModelLine, types.ModelBlock}, nil
	default:
		return nil, fmt.Errorf("invalid --model %q: expected line, block, or all", v)
	}
}
