package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/bibdex/internal/config"
	"github.com/Aman-CERP/bibdex/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		Long: `Manage the bibdex configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. Config file (~/.config/bibdex/config.yaml or --config)
  3. Environment variables (BIBDEX_*)
  4. Command-line flags`,
		Example: `  # Create the config file with defaults
  bibdex config init

  # Show the effective configuration
  bibdex config show`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

// targetConfigPath is --config when given, otherwise the user config file.
func targetConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.GetUserConfigPath()
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the configuration file with defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout(), true)
			path := targetConfigPath()

			if _, err := os.Stat(path); err == nil {
				if !force {
					out.Warning("Configuration already exists")
					out.Statusf("", "Location: %s", path)
					out.Status("", "Use --force to replace it with defaults (a backup is kept)")
					return nil
				}
				if path == config.GetUserConfigPath() {
					backup, err := config.BackupUserConfig()
					if err != nil {
						return err
					}
					out.Statusf("", "Backup: %s", backup)
				}
			}

			if err := config.NewConfig().WriteYAML(path); err != nil {
				return err
			}
			out.Success("Created configuration")
			out.Statusf("", "Location: %s", path)
			out.Status("", "Edit paths.paper_dir and paths.bib_file, then run 'bibdex sync'")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg *config.Config
			switch source {
			case "merged":
				loaded, err := loadConfig()
				if err != nil {
					return err
				}
				cfg = loaded
			case "defaults":
				cfg = config.NewConfig()
			default:
				return fmt.Errorf("unknown source %q (supported: merged, defaults)", source)
			}

			if jsonOutput {
				return encodeJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged or defaults")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), targetConfigPath())
			return err
		},
	}
}
