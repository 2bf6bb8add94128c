package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/tfrag/internal/mcp"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve search_docs and index_status over MCP on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout so editors and agents
can search the index. Nothing but JSON-RPC is written to stdout; logs go to
~/.tfrag/logs/tfrag.log.

The server only reads the index. Run 'tfrag index --update --watch' next to
it to keep the index current.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := a.openStack(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			srv, err := mcp.NewServer(mcp.Options{
				Pipeline:   a.newPipeline(st, nil),
				Manifest:   st.manifest,
				DataDir:    a.cfg.DataDir(),
				Provider:   a.cfg.Embeddings.Provider,
				Collection: st.store.Name(),
				Logger:     a.logger,
			})
			if err != nil {
				return err
			}
			if _, err := srv.RegisterResources(ctx); err != nil {
				slog.Warn("mcp_resources_unavailable", slog.String("error", err.Error()))
			}
			return srv.Serve(ctx)
		},
	}
}
