package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bibdex/internal/config"
	bderrors "github.com/Aman-CERP/bibdex/internal/errors"
	"github.com/Aman-CERP/bibdex/internal/session"
	"github.com/Aman-CERP/bibdex/internal/store"
	"github.com/Aman-CERP/bibdex/internal/telemetry"
	"github.com/Aman-CERP/bibdex/internal/ui"
)

func newQueryCmd() *cobra.Command {
	var (
		paths pathFlags
		limit int
	)

	cmd := &cobra.Command{
		Use:   "query [data-dir]",
		Short: "Search the catalog interactively and open a paper",
		Long: `Start an interactive search. Results refresh on every keystroke.

Keys:
  Tab          cycle the edited field: full text, k (key), a (author), t (title)
  Backspace    erase the last character of the edited field
  + / -        show more / fewer results
  Enter        choose a file by number and open it
  Esc, Ctrl+C  quit

Exit status is 2 when cancelled and 3 when there was nothing to open.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				paths.dataDir = args[0]
			}
			paths.apply(cfg)
			if cmd.Flags().Changed("limit") {
				cfg.Search.ResultLimit = limit
			}
			return runQuery(cmd.Context(), cmd, cfg)
		},
	}

	paths.registerDataDir(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Initial number of results (default: search.result_limit)")
	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	term := session.NewTerminal(os.Stdin)
	if !term.IsTerminal() {
		return bderrors.InputError("query needs an interactive terminal", nil).
			WithSuggestion("use 'bibdex search' in scripts")
	}

	reader, err := openCatalogReader(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	out := cmd.OutOrStdout()
	view := ui.NewQueryView(out, cfg.UI.NoColor)

	sessCfg := session.Config{
		Searcher: reader.engine,
		Keys:     term,
		Lines:    term,
		Renderer: view,
		Opener:   session.SystemOpener{Command: cfg.UI.Opener},
		Out:      out,
		Limit:    cfg.Search.ResultLimit,
	}
	if history := openHistory(cfg); history != nil {
		defer func() { _ = history.Close() }()
		sessCfg.Recorder = history
	}

	sess, err := session.New(sessCfg)
	if err != nil {
		return err
	}
	view.Render(sess.Frame())

	state, err := sess.Run(ctx)
	if err != nil {
		return err
	}
	return queryExit(state)
}

// queryExit maps a finished session to the process exit status.
func queryExit(state session.State) error {
	switch state {
	case session.StateDone:
		return nil
	case session.StateCancelled:
		return &ExitError{Code: ExitCancelled}
	default:
		return &ExitError{Code: ExitNoMatches}
	}
}

// openHistory opens the history store when enabled. Failures are logged and
// disable recording.
func openHistory(cfg *config.Config) *telemetry.HistoryStore {
	if !cfg.History.Enabled {
		return nil
	}
	h, err := telemetry.OpenHistory(filepath.Join(cfg.Paths.DataDir, store.HistoryFile), cfg.History.MaxEntries)
	if err != nil {
		slog.Warn("history_open_failed", slog.String("error", err.Error()))
		return nil
	}
	return h
}
