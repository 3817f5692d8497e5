package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bibdex/internal/preflight"
)

// doctorReport is the --json shape of 'bibdex doctor'.
type doctorReport struct {
	Status   string                  `json:"status"`
	Checks   []preflight.CheckResult `json:"checks"`
	Warnings []string                `json:"warnings,omitempty"`
	Errors   []string                `json:"errors,omitempty"`
}

func newDoctorCmd() *cobra.Command {
	var (
		paths      pathFlags
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and diagnose issues",
		Long: `Run diagnostics to ensure bibdex can sync and search.

Checks:
  - Write permissions in the data directory
  - Disk space (100MB minimum)
  - File descriptor limits (1024 minimum)
  - The paper directory exists
  - The bibliography parses and its files are readable

Entries without readable files are reported as warnings; sync skips them.`,
		Example: `  # Run diagnostics
  bibdex doctor

  # Verbose output with details
  bibdex doctor --verbose

  # JSON output for scripting
  bibdex doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			paths.apply(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			checker := preflight.New(
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
			)
			results := checker.RunAll(ctx, preflight.Target{
				DataDir:  cfg.Paths.DataDir,
				PaperDir: cfg.Paths.PaperDir,
				BibFile:  cfg.BibFilePath(),
			})

			if jsonOutput {
				errs, warnings := preflight.Problems(results)
				report := doctorReport{
					Status:   checker.SummaryStatus(results),
					Checks:   results,
					Warnings: warnings,
					Errors:   errs,
				}
				if err := encodeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return &ExitError{Code: ExitFatal}
			}
			return nil
		},
	}

	paths.registerDataDir(cmd)
	paths.registerSources(cmd)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
