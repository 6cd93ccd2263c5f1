package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/trans/xerp-sub001/internal/jsonout"
	"github.com/trans/xerp-sub001/internal/query"
	"github.com/trans/xerp-sub001/internal/types"
)

// queryCommand implements the `query` verb (spec.md §6), grounded on the
// teacher's searchCommand in cmd/lci/search.go for flag parsing into an
// options struct followed by a format-switched print.
func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "rank the smallest scopes where the query's terms are salient",
		ArgsUsage: "TEXT",
		Flags: append(rootConfigFlags(),
			&cli.IntFlag{Name: "top", Usage: "max results to return"},
			&cli.StringFlag{Name: "file", Usage: "regex filter on rel_path"},
			&cli.StringFlag{Name: "type", Usage: "code|markdown|config|text"},
			&cli.IntFlag{Name: "context", Usage: "extra lines of context around each snippet"},
			&cli.IntFlag{Name: "max-block-lines", Usage: "snippet line cap"},
			&cli.BoolFlag{Name: "explain", Usage: "include per-term scoring breakdown"},
			&cli.BoolFlag{Name: "no-ancestry", Usage: "omit the ancestor header chain"},
			&cli.BoolFlag{Name: "augment", Usage: "enable nearest-neighbor query expansion"},
			&cli.BoolFlag{Name: "no-salience", Usage: "with --augment, rank by centroid similarity alone"},
			&cli.BoolFlag{Name: "json", Usage: "print the full JSON result payload"},
			&cli.BoolFlag{Name: "jsonl", Usage: "print one JSON object per result line"},
			&cli.BoolFlag{Name: "grep", Usage: "print grep-style file:line matches"},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("usage: xerp query TEXT", 1)
			}
			text := c.Args().First()

			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if c.String("type") != "" {
				switch types.FileType(c.String("type")) {
				case types.FileTypeCode, types.FileTypeMarkdown, types.FileTypeConfig, types.FileTypeText:
				default:
					return cli.Exit(fmt.Sprintf("invalid --type %q", c.String("type")), 1)
				}
			}

			st, err := openStore(cfg)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			defer st.Close()

			opts := query.DefaultOptions(cfg)
			if c.IsSet("top") {
				opts.TopK = c.Int("top")
			}
			opts.FilePathRegex = c.String("file")
			if c.String("type") != "" {
				opts.FileType = types.FileType(c.String("type"))
			}
			opts.ContextLines = c.Int("context")
			if c.IsSet("max-block-lines") {
				opts.MaxBlockLines = c.Int("max-block-lines")
			}
			opts.Explain = c.Bool("explain")
			opts.Augment = c.Bool("augment")
			opts.NoSalience = c.Bool("no-salience")

			eng := query.New(st)
			start := time.Now()
			resp, err := eng.Run(context.Background(), text, opts, func() int64 {
				return time.Since(start).Milliseconds()
			})
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			if c.Bool("no-ancestry") {
				for i := range resp.Results {
					resp.Results[i].Ancestors = nil
				}
			}

			return printQueryResult(c, resp)
		},
	}
}

func printQueryResult(c *cli.Context, resp query.Response) error {
	switch {
	case c.Bool("json"):
		out, err := jsonout.MarshalQuery(resp)
		if err != nil {
			return cli.Exit(err.Error(), 2)
		}
		fmt.Println(string(out))
		return nil

	case c.Bool("jsonl"):
		wire := jsonout.FromQueryResponse(resp)
		enc := json.NewEncoder(os.Stdout)
		for _, r := range wire.Results {
			if err := enc.Encode(r); err != nil {
				return cli.Exit(err.Error(), 2)
			}
		}
		return nil

	case c.Bool("grep"):
		for _, r := range resp.Results {
			for _, ln := range r.Snippet {
				if ln.IsHit {
					fmt.Printf("%s:%d:%s\n", r.FilePath, ln.Line, ln.Text)
				}
			}
		}
		return nil

	default:
		return printQueryHuman(resp)
	}
}

func printQueryHuman(resp query.Response) error {
	fmt.Printf("%q: %d results in %dms\n\n", resp.Query, len(resp.Results), resp.TimingMs)
	for _, r := range resp.Results {
		fmt.Printf("%s:%d-%d  score=%.3f salience=%.3f cluster=%.3f hits=%d\n",
			r.FilePath, r.LineStart, r.LineEnd, r.Score, r.Salience, r.Cluster, r.Hits)
		if len(r.Ancestors) > 0 {
			fmt.Printf("  in %s\n", joinAncestors(r.Ancestors))
		}
		for _, ln := range r.Snippet {
			marker := "  "
			if ln.IsHit {
				marker = "> "
			}
			fmt.Printf("%s%5d | %s\n", marker, ln.Line, ln.Text)
		}
		fmt.Println()
	}
	return nil
}

func joinAncestors(ancestors []string) string {
	out := ""
	for i, a := range ancestors {
		if i > 0 {
			out += " > "
		}
		out += a
	}
	return out
}
