// Package cmd implements the tfrag command line.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/tfrag/internal/config"
	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
	"github.com/Aman-CERP/tfrag/internal/logging"
	"github.com/Aman-CERP/tfrag/pkg/version"
)

// app carries state shared by subcommands for one invocation.
type app struct {
	dir   string
	debug bool

	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// NewRootCmd creates the tfrag command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "tfrag",
		Short: "Local RAG over Terraform documentation",
		Long: `tfrag indexes a directory of Terraform code and documentation into a local
vector store and answers questions about it with a local LLM served by Ollama.

Indexing is incremental: only documents whose content changed since the last
run are re-embedded, and documents deleted from disk are removed from the index.

  tfrag index --update        sync the index with the data directory
  tfrag ask -q "..."          answer one question
  tfrag search "..."          show the chunks a question would retrieve`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}
	cmd.SetVersionTemplate("tfrag version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&a.dir, "dir", "C", ".", "Project directory holding .tfrag.yaml and .env")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging to stderr and ~/.tfrag/logs/")

	cmd.AddCommand(newIndexCmd(a))
	cmd.AddCommand(newAskCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newCheckCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints a failure to stderr.
func Execute() error {
	err := NewRootCmd().Execute()
	// check has already reported each failure.
	if err != nil && !errors.Is(err, errCheckFailed) {
		_, _ = fmt.Fprint(os.Stderr, rerrors.FormatForCLI(err))
	}
	return err
}

// setup loads configuration and installs the logger. Commands that need
// neither are annotated with skipSetup.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipSetup] == "true" {
		return nil
	}

	cfg, err := config.Load(a.dir)
	if err != nil {
		return rerrors.ConfigError("load configuration", err).
			WithSuggestion("check .tfrag.yaml and TFRAG_* variables")
	}
	a.cfg = cfg

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	if a.debug {
		logCfg = logging.DebugConfig()
	}
	// stdout carries JSON-RPC while serving
	if cmd.Name() == "serve" && !a.debug {
		logCfg = logging.StdioConfig(cfg.Server.LogLevel)
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	a.logger, a.cleanup = logger, cleanup
	slog.SetDefault(logger)
	slog.Debug("command_started",
		slog.String("command", cmd.Name()),
		slog.String("project_dir", cfg.ProjectDir),
		slog.String("version", version.Version))
	return nil
}

func (a *app) close() {
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
}

const skipSetup = "tfrag/skip-setup"
