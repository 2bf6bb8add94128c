package cmd

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/tfrag/internal/output"
	"github.com/Aman-CERP/tfrag/internal/store"
)

type searchOptions struct {
	n       int
	preview int
	json    bool
}

type searchResult struct {
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
	Content    string  `json:"content"`
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the chunks most similar to a query",
		Long: `Show the chunks a question would retrieve, ranked by similarity,
without calling the LLM.`,
		Example: `  tfrag search "s3 bucket lifecycle rules"
  tfrag search "assume role policy" --n 10 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			st, err := a.openStack(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			start := time.Now()
			hits, err := a.newPipeline(st, nil).Retrieve(ctx, query, opts.n)
			if err != nil {
				return err
			}
			slog.Info("search_completed",
				slog.Int("results", len(hits)),
				slog.Duration("duration", time.Since(start)))

			if opts.json {
				return writeSearchJSON(cmd, hits)
			}
			out := make([]output.Hit, 0, len(hits))
			for _, h := range hits {
				out = append(out, output.Hit{Source: h.Source, Index: h.Index, Score: h.Score, Content: h.Document})
			}
			output.New(cmd.OutOrStdout()).Results(query, out, opts.preview)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.n, "n", "n", 0, "Number of results (default llm.top_k)")
	cmd.Flags().IntVar(&opts.preview, "preview", 200, "Characters of chunk text to show, 0 to hide")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print results as JSON")
	return cmd
}

func writeSearchJSON(cmd *cobra.Command, hits []store.Hit) error {
	results := make([]searchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, searchResult{Source: h.Source, ChunkIndex: h.Index, Score: h.Score, Content: h.Document})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
