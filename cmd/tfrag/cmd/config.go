package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/tfrag/configs"
	"github.com/Aman-CERP/tfrag/internal/config"
	"github.com/Aman-CERP/tfrag/internal/output"
)

const projectConfigName = ".tfrag.yaml"

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage tfrag configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/tfrag/config.yaml)
  3. Project config (.tfrag.yaml)
  4. Environment variables (TFRAG_*)`,
		Example: `  tfrag config init
  tfrag config show --json
  tfrag config path`,
	}

	cmd.AddCommand(newConfigInitCmd(a))
	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .tfrag.yaml in the project directory",
		Long: `Write a commented project configuration template to .tfrag.yaml and create
the default data directory if it is missing.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(output.New(cmd.OutOrStdout()), a.dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing .tfrag.yaml")
	return cmd
}

func runConfigInit(out *output.Writer, dir string, force bool) error {
	path := filepath.Join(dir, projectConfigName)
	if _, err := os.Stat(path); err == nil && !force {
		out.Warning("Project configuration already exists")
		out.Statusf("", "Location: %s", path)
		out.Status("", "Use --force to overwrite it")
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	dataDir := filepath.Join(dir, config.NewConfig().Paths.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	out.Success("Created project configuration")
	out.Statusf("", "Location: %s", path)
	out.Newline()
	out.Status("", "Next steps:")
	out.Statusf("", "  1. Put Terraform docs under %s", dataDir)
	out.Status("", "  2. Run 'tfrag check' to verify Ollama")
	out.Status("", "  3. Run 'tfrag index --update'")
	return nil
}

func newConfigShowCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(a.cfg)
			}
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = fmt.Fprintf(w, "# project: %s\n%s", a.cfg.ProjectDir, data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the user config file path",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
