package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
	"github.com/Aman-CERP/tfrag/internal/output"
	"github.com/Aman-CERP/tfrag/internal/rag"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		query string
		n     int
	)

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer questions from the indexed documentation",
		Long: `Answer a question using the chunks most similar to it as context.

Without --query, starts an interactive session; type exit or quit to leave.`,
		Example: `  tfrag ask -q "How do I enable versioning on an S3 bucket?"
  tfrag ask --n 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			st, err := a.openStack(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			p := a.newPipeline(st, a.newGenerator())
			out := output.New(cmd.OutOrStdout())
			if query != "" {
				return ask(ctx, p, out, query, n)
			}
			return chat(ctx, p, out, cmd.InOrStdin(), cmd.ErrOrStderr(), n)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Ask one question and exit")
	cmd.Flags().IntVarP(&n, "n", "n", 0, "Number of chunks placed in the prompt (default llm.top_k)")
	return cmd
}

func ask(ctx context.Context, p *rag.Pipeline, out *output.Writer, question string, n int) error {
	answer, err := p.Ask(ctx, question, n)
	if err != nil {
		return err
	}
	out.Answer(answer.Text)
	out.Sources(answer.SourcePaths())
	return nil
}

// chat answers questions read line by line from in. A failed question is
// reported and the session continues.
func chat(ctx context.Context, p *rag.Pipeline, out *output.Writer, in io.Reader, errOut io.Writer, n int) error {
	_, _ = fmt.Fprint(errOut, "Interactive RAG chat. Type 'exit' to quit.\n\n")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		_, _ = fmt.Fprint(errOut, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := ask(ctx, p, out, line, n); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			_, _ = fmt.Fprint(errOut, rerrors.FormatForCLI(err))
		}
	}
}
