package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/trans/xerp-sub001/internal/feedback"
	"github.com/trans/xerp-sub001/internal/jsonout"
	"github.com/trans/xerp-sub001/internal/types"
)

// markCommand implements `mark RESULT_ID (--useful|--promising|--not-useful)
// [--note TEXT] [--json]` (spec.md §6, §4.7). --promising is treated as a
// partial-credit useful mark (+0.5) rather than the full +1 --useful gives,
// since spec.md only fixes score to the clamped [-1,+1] range and gives no
// other meaning to "promising".
func markCommand() *cli.Command {
	return &cli.Command{
		Name:      "mark",
		Usage:     "record feedback on a previous query result",
		ArgsUsage: "RESULT_ID",
		Flags: append(rootConfigFlags(),
			&cli.BoolFlag{Name: "useful"},
			&cli.BoolFlag{Name: "promising"},
			&cli.BoolFlag{Name: "not-useful"},
			&cli.StringFlag{Name: "note"},
			&cli.BoolFlag{Name: "json"},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("usage: xerp mark RESULT_ID (--useful|--promising|--not-useful)", 1)
			}
			resultID := c.Args().First()
			if !isResultID(resultID) {
				return cli.Exit(fmt.Sprintf("invalid RESULT_ID %q: expected 64 hex characters", resultID), 1)
			}

			useful, promising, notUseful := c.Bool("useful"), c.Bool("promising"), c.Bool("not-useful")
			count := 0
			for _, b := range []bool{useful, promising, notUseful} {
				if b {
					count++
				}
			}
			if count != 1 {
				return cli.Exit("exactly one of --useful, --promising, --not-useful is required", 1)
			}

			var score float64
			switch {
			case useful:
				score = 1
			case promising:
				score = 0.5
			case notUseful:
				score = -1
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
			var fileID *types.FileID
			var lineStart, lineEnd *int
			if fid, ls, le, ok, err := st.ResultLocation(ctx, resultID); err != nil {
				return cli.Exit(err.Error(), 2)
			} else if ok {
				fileID, lineStart, lineEnd = &fid, &ls, &le
			}

			rec := feedback.New(st)
			if err := rec.Mark(ctx, resultID, score, c.String("note"), fileID, lineStart, lineEnd); err != nil {
				return cli.Exit(err.Error(), 2)
			}

			ack := jsonout.MarkAck{ResultID: resultID, Score: score, Note: c.String("note"), Recorded: true}
			if c.Bool("json") {
				out, err := jsonout.MarshalMark(ack)
				if err != nil {
					return cli.Exit(err.Error(), 2)
				}
				fmt.Println(string(out))
				return nil
			}
			fmt.Printf("recorded score=%.1f for %s\n", score, resultID)
			return nil
		},
	}
}

func isResultID(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
