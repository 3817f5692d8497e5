// Package cmd provides the CLI commands for bibdex.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bibdex/internal/config"
	bderrors "github.com/Aman-CERP/bibdex/internal/errors"
	"github.com/Aman-CERP/bibdex/internal/logging"
	"github.com/Aman-CERP/bibdex/internal/profiling"
	"github.com/Aman-CERP/bibdex/pkg/version"
)

// Persistent flags
var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// Profiling flags
var (
	profileOpts profiling.Options
	profile     *profiling.Session
)

// NewRootCmd creates the root command for the bibdex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bibdex",
		Short: "Full-text search over a BibTeX-managed paper collection",
		Long: `bibdex keeps a full-text index of the papers referenced by a BibTeX
bibliography and lets you find and open them from the terminal.

Run 'bibdex sync' after editing the bibliography, then 'bibdex query'
to search interactively.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("bibdex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.config/bibdex/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.bibdex/logs/")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startRun
	cmd.PersistentPostRunE = stopRun

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startRun starts profiling and logging.
func startRun(cmd *cobra.Command, args []string) error {
	if err := startLogging(cmd, args); err != nil {
		return err
	}
	if !profileOpts.Enabled() {
		return nil
	}
	session, err := profiling.Start(profileOpts)
	if err != nil {
		return err
	}
	profile = session
	return nil
}

// stopRun flushes profiles, then closes the log file.
func stopRun(cmd *cobra.Command, args []string) error {
	var err error
	if profile != nil {
		err = profile.Stop()
		profile = nil
	}
	_ = stopLogging(cmd, args)
	return err
}

// startLogging points slog at the rotating log file. Nothing is mirrored to
// the terminal: query owns the screen and serve owns stdout.
func startLogging(cmd *cobra.Command, _ []string) error {
	level := "info"
	if cfg, err := config.Load(configPath); err == nil {
		level = cfg.Log.Level
	}
	if debugMode {
		level = "debug"
	}

	if cmd.Name() == "serve" {
		cleanup, err := logging.SetupMCPMode(level)
		if err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
		loggingCleanup = cleanup
		return nil
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// A read-only home must not make every command fail.
		slog.SetDefault(logging.Discard())
		return nil
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("command_started", slog.String("command", cmd.CommandPath()), slog.String("version", version.Version))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	err := NewRootCmd().Execute()
	// PersistentPostRunE is skipped when RunE fails.
	if stopErr := stopRun(nil, nil); err == nil {
		err = stopErr
	}
	return err
}

// loadConfig loads the configuration selected by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, bderrors.ConfigError("failed to load configuration", err).
			WithSuggestion("check the file printed by 'bibdex config path'")
	}
	return cfg, nil
}
