package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bibdex/internal/config"
	"github.com/Aman-CERP/bibdex/internal/index"
	"github.com/Aman-CERP/bibdex/internal/output"
	"github.com/Aman-CERP/bibdex/internal/ui"
	"github.com/Aman-CERP/bibdex/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var paths pathFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-sync whenever the bibliography or paper directory changes",
		Long: `Run a sync, then keep watching the bibliography and the paper directory.
Bursts of changes are coalesced (sync.debounce_ms) into a single re-sync.
Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			paths.apply(cfg)
			return runWatch(ctx, cmd, cfg)
		},
	}

	paths.registerDataDir(cmd)
	paths.registerSources(cmd)
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	out := output.New(cmd.OutOrStdout(), cfg.UI.NoColor)

	w, err := openCatalogWriter(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	runCfg := index.RunConfig{BibFile: cfg.BibFilePath(), PaperDir: cfg.Paths.PaperDir}
	resync := func(reason string) error {
		slog.Info("watch_resync", slog.String("reason", reason))
		renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
			ui.WithForcePlain(true),
			ui.WithNoColor(cfg.UI.NoColor)))
		_, err := w.sync(ctx, renderer, runCfg)
		return err
	}

	if err := resync("startup"); err != nil {
		return err
	}

	fw, err := watcher.New(runCfg.BibFile, runCfg.PaperDir, watcher.Options{
		DebounceWindow: time.Duration(cfg.Sync.DebounceMS) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	defer func() { _ = fw.Stop() }()
	if err := fw.Start(ctx); err != nil {
		return err
	}
	out.Statusf("👀", "Watching %s and %s (Ctrl+C to stop)", runCfg.BibFile, runCfg.PaperDir)

	errs := fw.Errors()
	for {
		select {
		case <-ctx.Done():
			out.Status("", "stopped")
			return nil
		case batch, ok := <-fw.Events():
			if !ok {
				return nil
			}
			out.Statusf("↻", "%d change(s), first: %s", len(batch), batch[0].Path)
			if err := resync(batch[0].Operation.String()); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// A broken bibliography mid-edit should not end the watch.
				slog.Error("watch_sync_failed", slog.String("error", err.Error()))
				out.Errorf("sync failed: %v", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}
