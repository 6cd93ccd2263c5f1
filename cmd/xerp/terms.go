package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/trans/xerp-sub001/internal/jsonout"
	"github.com/trans/xerp-sub001/internal/store"
	"github.com/trans/xerp-sub001/internal/tokenizer"
	"github.com/trans/xerp-sub001/internal/types"
)

// termsCommand implements `terms "TEXT" [--source scope|line|block|vector|
// combined] [--top N] [--max-df PCT]` (spec.md §6, SPEC_FULL.md "terms
// command"). TEXT is normalized through the same tokenizer query uses, then
// looked up directly (no expansion, no scoring) to report df and the top
// co-occurring neighbors under the selected model(s):
//   - scope:    df/kind only, no neighbors (the raw vocabulary entry)
//   - line:     neighbors from the line-context co-occurrence model
//   - block:    neighbors from the block-context co-occurrence model
//   - vector:   neighbors merged across both trained models
//   - combined: df/kind plus the line and block neighbor lists and their
//     merged vector list (the default)
func termsCommand() *cli.Command {
	return &cli.Command{
		Name:      "terms",
		Usage:     "look up token statistics and co-occurring neighbors",
		ArgsUsage: "TEXT",
		Flags: append(rootConfigFlags(),
			&cli.StringFlag{Name: "source", Value: "combined", Usage: "scope|line|block|vector|combined"},
			&cli.IntFlag{Name: "top", Value: 20, Usage: "max neighbors to report per model"},
			&cli.Float64Flag{Name: "max-df", Usage: "drop neighbors whose df exceeds this percent of indexed files"},
			&cli.BoolFlag{Name: "json"},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("usage: xerp terms TEXT", 1)
			}
			source := c.String("source")
			switch source {
			case "scope", "line", "block", "vector", "combined":
			default:
				return cli.Exit(fmt.Sprintf("invalid --source %q: expected scope, line, block, vector, or combined", source), 1)
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

			tz := tokenizer.New(tokenizer.DefaultConfig())
			tokenized := tz.Tokenize([]string{c.Args().First()})
			if len(tokenized.Occurrences) == 0 {
				return cli.Exit(fmt.Sprintf("%q tokenizes to nothing", c.Args().First()), 1)
			}
			text := tokenized.Occurrences[0].Text

			ctx := context.Background()
			tok, err := st.GetTokenByText(ctx, text)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			if tok == nil {
				result := jsonout.TermsResult{Token: text, Found: false, Source: source}
				return printTermsResult(c, result)
			}

			totalFiles, err := st.TotalFileCount(ctx)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			dfPercent := 0.0
			if totalFiles > 0 {
				dfPercent = 100 * float64(tok.DF) / float64(totalFiles)
			}

			result := jsonout.TermsResult{
				Token:     text,
				Found:     true,
				Kind:      string(tok.Kind),
				DF:        tok.DF,
				DFPercent: dfPercent,
				Source:    source,
			}

			if source != "scope" {
				maxDF, hasMaxDF := c.Float64("max-df"), c.IsSet("max-df")
				neighbors := map[string][]jsonout.TermNeighbor{}
				models := modelsForSource(source)
				for _, m := range models {
					ns, err := neighborsForModel(ctx, st, m, tok.ID, totalFiles, c.Int("top"), hasMaxDF, maxDF)
					if err != nil {
						return cli.Exit(err.Error(), 2)
					}
					neighbors[string(m)] = ns
				}
				if source == "vector" || source == "combined" {
					neighbors["vector"] = mergeNeighbors(neighbors, models, c.Int("top"))
					if source == "vector" {
						neighbors = map[string][]jsonout.TermNeighbor{"vector": neighbors["vector"]}
					}
				}
				result.Neighbors = neighbors
			}

			return printTermsResult(c, result)
		},
	}
}

// modelsForSource maps --source onto the underlying trained models whose
// co-occurrence tables must be read.
func modelsForSource(source string) []types.ContextModel {
	switch source {
	case "line":
		return []types.ContextModel{types.ModelLine}
	case "block":
		return []types.ContextModel{types.ModelBlock}
	default: // vector, combined
		return []types.ContextModel{types.ModelLine, types.ModelBlock}
	}
}

func neighborsForModel(ctx context.Context, st *store.Store, model types.ContextModel, tokenID types.TokenID, totalFiles, top int, hasMaxDF bool, maxDF float64) ([]jsonout.TermNeighbor, error) {
	counts, err := st.CoocForToken(ctx, string(model), tokenID, 1)
	if err != nil {
		return nil, err
	}
	type pair struct {
		id    types.TokenID
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for id, count := range counts {
		pairs = append(pairs, pair{id, count})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].id < pairs[j].id
	})

	out := make([]jsonout.TermNeighbor, 0, top)
	for _, p := range pairs {
		if len(out) >= top {
			break
		}
		neighbor, err := st.GetTokenByID(ctx, p.id)
		if err != nil {
			return nil, err
		}
		if neighbor == nil {
			continue
		}
		if hasMaxDF && totalFiles > 0 && 100*float64(neighbor.DF)/float64(totalFiles) > maxDF {
			continue
		}
		out = append(out, jsonout.TermNeighbor{Token: neighbor.Text, Count: p.count})
	}
	return out, nil
}

// mergeNeighbors sums neighbor counts across every model in models, used
// for --source vector/combined's merged view.
func mergeNeighbors(neighbors map[string][]jsonout.TermNeighbor, models []types.ContextModel, top int) []jsonout.TermNeighbor {
	totals := map[string]int{}
	for _, m := range models {
		for _, n := range neighbors[string(m)] {
			totals[n.Token] += n.Count
		}
	}
	merged := make([]jsonout.TermNeighbor, 0, len(totals))
	for token, count := range totals {
		merged = append(merged, jsonout.TermNeighbor{Token: token, Count: count})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Count != merged[j].Count {
			return merged[i].Count > merged[j].Count
		}
		return merged[i].Token < merged[j].Token
	})
	if len(merged) > top {
		merged = merged[:top]
	}
	return merged
}

func printTermsResult(c *cli.Context, result jsonout.TermsResult) error {
	if c.Bool("json") {
		out, err := jsonout.MarshalTerms(result)
		if err != nil {
			return cli.Exit(err.Error(), 2)
		}
		fmt.Println(string(out))
		return nil
	}
	if !result.Found {
		fmt.Printf("%q: not in the vocabulary\n", result.Token)
		return nil
	}
	fmt.Printf("%q  kind=%s df=%d (%.1f%%)\n", result.Token, result.Kind, result.DF, result.DFPercent)
	for _, model := range []string{"line", "block", "vector"} {
		ns, ok := result.Neighbors[model]
		if !ok {
			continue
		}
		fmt.Printf("  %s neighbors:\n", model)
		for _, n := range ns {
			fmt.Printf("    %-20s %d\n", n.Token, n.Count)
		}
	}
	return nil
}
