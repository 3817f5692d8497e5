package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bibdex/internal/config"
	"github.com/Aman-CERP/bibdex/internal/index"
	"github.com/Aman-CERP/bibdex/internal/output"
	"github.com/Aman-CERP/bibdex/internal/store"
)

// statusReport is the --json shape of 'bibdex status'.
type statusReport struct {
	*store.Stats
	BibFile  string   `json:"bib_file"`
	PaperDir string   `json:"paper_dir"`
	Synced   bool     `json:"synced"`
	Orphans  []string `json:"orphans,omitempty"`
	Missing  []string `json:"missing,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var (
		paths      pathFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog and index statistics",
		Long: `Display information about the data directory:
  - number of catalog entries and paper files
  - number of documents in the search index
  - time of the last sync
  - entries missing from the index and stray index documents`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			paths.apply(cfg)

			report, err := collectStatus(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if jsonOutput {
				return encodeJSON(cmd.OutOrStdout(), report)
			}
			printStatus(output.New(cmd.OutOrStdout(), cfg.UI.NoColor), report)
			return nil
		},
	}

	paths.registerDataDir(cmd)
	paths.registerSources(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func collectStatus(ctx context.Context, cfg *config.Config) (*statusReport, error) {
	report := &statusReport{BibFile: cfg.BibFilePath(), PaperDir: cfg.Paths.PaperDir}

	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, store.IndexDir)); errors.Is(err, os.ErrNotExist) {
		stats, err := store.CollectStats(cfg.Paths.DataDir, store.LoadState(cfg.Paths.DataDir).Catalog, nil)
		if err != nil {
			return nil, err
		}
		report.Stats = stats
		return report, nil
	}

	reader, err := openCatalogReader(cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	stats, err := store.CollectStats(cfg.Paths.DataDir, reader.state.Catalog, reader.index)
	if err != nil {
		return nil, err
	}
	report.Stats = stats
	report.Synced = true

	check, err := index.CheckConsistency(ctx, reader.index, reader.state.Catalog)
	if err != nil {
		return nil, err
	}
	report.Orphans = check.Orphans
	report.Missing = check.Missing
	return report, nil
}

func printStatus(w *output.Writer, r *statusReport) {
	if !r.Synced {
		w.Warning("Not synced yet. Run 'bibdex sync' to build the index.")
	}

	lastSync := "never"
	if !r.LastSync.IsZero() {
		lastSync = r.LastSync.Local().Format("2006-01-02 15:04:05")
	}
	rows := []output.KV{
		{Key: "Data dir", Value: r.DataDir},
		{Key: "Bibliography", Value: r.BibFile},
		{Key: "Paper dir", Value: r.PaperDir},
		{Key: "Entries", Value: fmt.Sprint(r.Entries)},
		{Key: "Files", Value: fmt.Sprint(r.Files)},
		{Key: "Index documents", Value: fmt.Sprint(r.IndexDocuments)},
		{Key: "Last sync", Value: lastSync},
	}
	if langs := r.SortedLanguages(); len(langs) > 0 {
		parts := make([]string, 0, len(langs))
		for _, l := range langs {
			parts = append(parts, fmt.Sprintf("%s (%d)", l, r.Languages[l]))
		}
		rows = append(rows, output.KV{Key: "Languages", Value: strings.Join(parts, ", ")})
	}
	w.KeyValues(rows)

	if !r.Synced {
		return
	}
	if len(r.Orphans) == 0 && len(r.Missing) == 0 {
		w.Success("Index and catalog agree")
		return
	}
	if len(r.Missing) > 0 {
		w.Warningf("%d entries missing from the index; the next sync re-indexes them", len(r.Missing))
	}
	if len(r.Orphans) > 0 {
		w.Warningf("%d stray index documents; the next sync removes them", len(r.Orphans))
	}
}
