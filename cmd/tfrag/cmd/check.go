package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
	"github.com/Aman-CERP/tfrag/internal/output"
	"github.com/Aman-CERP/tfrag/internal/preflight"
)

const connectionPrompt = "Hello, just testing connection."

// errCheckFailed is returned when any check fails; details are already printed.
var errCheckFailed = errors.New("check failed")

func newCheckCmd(a *app) *cobra.Command {
	var watch, verbose bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the environment, the embedding model and the LLM",
		Long: `Check that the data directory is readable and the store directory is
writable with enough free space, then send one short embedding request and
one short generation request to the configured models.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			results := preflight.New(a.cfg.DataDir(), filepath.Dir(a.cfg.StorePath()),
				preflight.WithWatch(watch)).RunAll(cmd.Context())
			preflight.Print(cmd.OutOrStdout(), results, verbose)

			err := a.runCheck(cmd.Context(), output.New(cmd.OutOrStdout()))
			if err == nil && preflight.HasCriticalFailures(results) {
				err = errCheckFailed
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Require a descriptor limit high enough for --watch")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for passing checks")
	return cmd
}

func (a *app) runCheck(ctx context.Context, out *output.Writer) error {
	ok := true

	start := time.Now()
	if err := a.probeEmbedder(ctx); err != nil {
		ok = false
		reportProbe(out, "embeddings", a.cfg.Embeddings.Model, err)
	} else {
		out.Successf("embeddings: %s (%s) responded in %s", a.cfg.Embeddings.Model, a.cfg.Embeddings.Provider,
			time.Since(start).Round(time.Millisecond))
	}

	gen := a.newGenerator()
	start = time.Now()
	reply, err := gen.Generate(ctx, connectionPrompt)
	if err != nil {
		ok = false
		reportProbe(out, "llm", gen.ModelName(), err)
	} else {
		out.Successf("llm: %s responded in %s", gen.ModelName(), time.Since(start).Round(time.Millisecond))
		out.Status("", firstLine(reply, 100))
	}

	if !ok {
		return errCheckFailed
	}
	return nil
}

func (a *app) probeEmbedder(ctx context.Context) error {
	emb, err := a.openEmbedder(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = emb.Close() }()

	vec, err := emb.Embed(ctx, connectionPrompt)
	if err != nil {
		return err
	}
	if len(vec) == 0 {
		return rerrors.EmbeddingError("", errors.New("empty embedding"))
	}
	return nil
}

func reportProbe(out *output.Writer, what, model string, err error) {
	out.Errorf("%s: %s failed: %v", what, model, err)
	if re, ok := rerrors.As(err); ok && re.Suggestion != "" {
		out.Status("", "hint: "+re.Suggestion)
	}
}

func firstLine(s string, n int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
