package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bibdex/internal/output"
	"github.com/Aman-CERP/bibdex/internal/store"
	"github.com/Aman-CERP/bibdex/internal/telemetry"
)

func newHistoryCmd() *cobra.Command {
	var (
		paths      pathFlags
		limit      int
		top        bool
		clearAll   bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List papers recently opened from 'bibdex query'",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			paths.apply(cfg)

			h, err := telemetry.OpenHistory(filepath.Join(cfg.Paths.DataDir, store.HistoryFile), cfg.History.MaxEntries)
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			w := output.New(out, cfg.UI.NoColor)

			switch {
			case clearAll:
				if err := h.Clear(ctx); err != nil {
					return err
				}
				w.Success("History cleared")
				return nil

			case top:
				counts, err := h.TopEntries(ctx, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return encodeJSON(out, counts)
				}
				if len(counts) == 0 {
					w.Status("", "No papers opened yet")
					return nil
				}
				for _, c := range counts {
					_, _ = fmt.Fprintf(out, "%4d  %-24s  last %s\n", c.Count, c.EntryID, c.LastAt.Local().Format("2006-01-02 15:04"))
				}
				return nil
			}

			recent, err := h.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return encodeJSON(out, recent)
			}
			if len(recent) == 0 {
				w.Status("", "No papers opened yet")
				return nil
			}
			for _, o := range recent {
				_, _ = fmt.Fprintf(out, "%s  %-24s  %s\n", o.OpenedAt.Local().Format("2006-01-02 15:04"), o.EntryID, o.Path)
				if o.Query != "" {
					_, _ = fmt.Fprintf(out, "                  query: %s\n", o.Query)
				}
			}
			return nil
		},
	}

	paths.registerDataDir(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of rows to show")
	cmd.Flags().BoolVar(&top, "top", false, "Show the most opened entries instead")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete the history")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagsMutuallyExclusive("top", "clear")
	return cmd
}

func encodeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
