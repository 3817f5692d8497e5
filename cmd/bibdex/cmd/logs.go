package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bibdex/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		lines   int
		level   string
		pattern string
		file    string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries",
		Example: `  bibdex logs -n 100
  bibdex logs --level warn
  bibdex logs --grep sync_`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(file)
			if err != nil {
				return err
			}

			viewCfg := logging.ViewerConfig{Level: level, NoColor: noColor}
			if pattern != "" {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("invalid --grep pattern: %w", err)
				}
				viewCfg.Pattern = re
			}

			viewer := logging.NewViewer(viewCfg, cmd.OutOrStdout())
			entries, err := viewer.Tail(path, lines)
			if err != nil {
				return err
			}
			viewer.Print(entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to read")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&pattern, "grep", "", "Only show lines matching this regular expression")
	cmd.Flags().StringVar(&file, "file", "", "Log file (default: ~/.bibdex/logs/bibdex.log)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored levels")
	return cmd
}
