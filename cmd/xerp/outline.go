package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v2"
)

// outlineCommand implements `outline [--file GLOB] [--level N] [--json]`
// (spec.md §6, SPEC_FULL.md "outline command"): prints each indexed file's
// block forest as indented headers down to --level N (0 = unlimited),
// grounded on the teacher's treeCommand (cmd/lci/main.go) for walking a
// structural tree and rendering it either as indented text or as JSON.
func outlineCommand() *cli.Command {
	return &cli.Command{
		Name:  "outline",
		Usage: "print the indentation-derived block structure of indexed files",
		Flags: append(rootConfigFlags(),
			&cli.StringFlag{Name: "file", Usage: "glob filter on rel_path"},
			&cli.IntFlag{Name: "level", Usage: "max depth to print (0 = unlimited)"},
			&cli.BoolFlag{Name: "json"},
		),
		Action: func(c *cli.Context) error {
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
			files, err := st.ListFiles(ctx)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			glob := c.String("file")
			level := c.Int("level")

			type fileOutline struct {
				Path   string          `json:"path"`
				Blocks []outlineHeader `json:"blocks"`
			}
			var all []fileOutline

			for _, f := range files {
				if glob != "" {
					ok, err := doublestar.Match(glob, f.RelPath)
					if err != nil {
						return cli.Exit(fmt.Sprintf("invalid --file glob: %v", err), 1)
					}
					if !ok {
						continue
					}
				}
				blocks, err := st.BlocksForFile(ctx, f.ID)
				if err != nil {
					return cli.Exit(err.Error(), 2)
				}
				headers := make([]outlineHeader, 0, len(blocks))
				for _, b := range blocks {
					if level > 0 && b.Level > level {
						continue
					}
					headers = append(headers, outlineHeader{
						Level: b.Level, LineStart: b.LineStart, LineEnd: b.LineEnd, Header: b.Header,
					})
				}
				all = append(all, fileOutline{Path: f.RelPath, Blocks: headers})
			}

			if c.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(all)
			}

			for _, fo := range all {
				fmt.Println(fo.Path)
				for _, h := range fo.Blocks {
					fmt.Printf("%s%s (%d-%d)\n", strings.Repeat("  ", h.Level), h.Header, h.LineStart, h.LineEnd)
				}
			}
			return nil
		},
	}
}

type outlineHeader struct {
	Level     int    `json:"level"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Header    string `json:"header"`
}
