package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bibdex/internal/config"
	"github.com/Aman-CERP/bibdex/internal/index"
	"github.com/Aman-CERP/bibdex/internal/store"
	"github.com/Aman-CERP/bibdex/internal/ui"
)

type syncOptions struct {
	paths  pathFlags
	force  bool
	dryRun bool
	noTUI  bool
}

func newSyncCmd() *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Bring the search index in line with the bibliography",
		Long: `Parse the bibliography, detect which entries were added, changed or
removed since the last run, and update the search index accordingly.

Entries are re-indexed only when one of their files or their metadata
changed. Use --force to re-index every entry and --dry-run to see what
would happen without touching the index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Ctrl+C cancels the run between entries; the previous state stays on disk.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts.paths.apply(cfg)

			w, err := openCatalogWriter(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
				ui.WithForcePlain(opts.noTUI),
				ui.WithNoColor(cfg.UI.NoColor),
				ui.WithBibFile(cfg.BibFilePath())))

			_, err = w.sync(ctx, renderer, index.RunConfig{
				BibFile:  cfg.BibFilePath(),
				PaperDir: cfg.Paths.PaperDir,
				Force:    opts.force,
				DryRun:   opts.dryRun,
			})
			return err
		},
	}

	opts.paths.registerDataDir(cmd)
	opts.paths.registerSources(cmd)
	cmd.Flags().BoolVar(&opts.force, "force", false, "Re-index every entry regardless of checksums")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Report what would change without writing anything")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")

	return cmd
}

// catalogWriter holds the exclusive lock and the writable index of a data
// directory for one or more sync runs.
type catalogWriter struct {
	cfg       *config.Config
	lock      *store.FileLock
	index     *store.BleveIndex
	recreated bool
}

func openCatalogWriter(cfg *config.Config) (*catalogWriter, error) {
	dir := cfg.Paths.DataDir
	lock, err := store.AcquireWriter(dir)
	if err != nil {
		return nil, err
	}

	idx, recreated, err := store.OpenIndex(filepath.Join(dir, store.IndexDir))
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return &catalogWriter{cfg: cfg, lock: lock, index: idx, recreated: recreated}, nil
}

// sync loads the state from disk and runs the synchronizer once. A
// cancelled run becomes an ExitError with ExitCancelled.
func (w *catalogWriter) sync(ctx context.Context, renderer ui.Renderer, runCfg index.RunConfig) (*index.RunResult, error) {
	state := store.LoadState(w.cfg.Paths.DataDir)
	if w.recreated {
		// Every entry must reach the fresh index.
		state.Checksums = store.ChecksumStore{}
		w.recreated = false
	}

	if err := renderer.Start(ctx); err != nil {
		slog.Warn("renderer_start_failed", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	runner, err := index.NewRunner(index.RunnerDependencies{
		Renderer: renderer,
		Config:   w.cfg,
		Index:    w.index,
		State:    state,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	result, err := runner.Run(ctx, runCfg)
	if errors.Is(err, context.Canceled) {
		slog.Info("sync_cancelled")
		return nil, &ExitError{Code: ExitCancelled}
	}
	return result, err
}

func (w *catalogWriter) Close() error {
	err := w.index.Close()
	if uerr := w.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}
