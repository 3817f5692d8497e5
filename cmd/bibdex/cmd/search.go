package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bibdex/internal/config"
	bderrors "github.com/Aman-CERP/bibdex/internal/errors"
	"github.com/Aman-CERP/bibdex/internal/search"
	"github.com/Aman-CERP/bibdex/internal/ui"
)

// maxKeyHints bounds the keys suggested after a --key search misses.
const maxKeyHints = 3

type searchOptions struct {
	paths  pathFlags
	author string
	title  string
	key    string
	limit  int
	format string
}

// searchResultJSON is the --format json shape of one result.
type searchResultJSON struct {
	Key    string   `json:"key"`
	Author string   `json:"author"`
	Title  string   `json:"title"`
	Files  []string `json:"files"`
	Score  float64  `json:"score"`
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [terms...]",
		Short: "Search the catalog and print the matches",
		Long: `Run a single query and print the matching entries with their files.
Unscoped terms search everything; --author, --title and --key restrict
terms to one field. Exit status is 3 when nothing matched.`,
		Example: `  bibdex search neural networks
  bibdex search --author turing --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts.paths.apply(cfg)
			if !cmd.Flags().Changed("limit") {
				opts.limit = cfg.Search.ResultLimit
			}
			return runSearch(cmd.Context(), cmd.OutOrStdout(), cfg, strings.Join(args, " "), opts)
		},
	}

	opts.paths.registerDataDir(cmd)
	cmd.Flags().StringVar(&opts.author, "author", "", "Terms matched against authors")
	cmd.Flags().StringVar(&opts.title, "title", "", "Terms matched against titles")
	cmd.Flags().StringVar(&opts.key, "key", "", "Terms matched against citation keys")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	return cmd
}

func runSearch(ctx context.Context, out io.Writer, cfg *config.Config, terms string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return bderrors.InputError(fmt.Sprintf("unknown format %q", opts.format), nil).
			WithSuggestion("use --format text or --format json")
	}
	if opts.limit < 1 {
		return bderrors.InputError("limit must be at least 1", nil)
	}

	var fields search.Fields
	fields[search.FieldFullText] = terms
	fields[search.FieldKey] = opts.key
	fields[search.FieldAuthor] = opts.author
	fields[search.FieldTitle] = opts.title
	query := strings.TrimSpace(search.BuildQuery(fields))
	if query == "" {
		return bderrors.InputError("nothing to search for", nil).
			WithSuggestion("pass search terms or one of --author, --title, --key")
	}

	reader, err := openCatalogReader(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	results, err := reader.engine.Search(ctx, query, opts.limit)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		if err := writeSearchJSON(out, results); err != nil {
			return err
		}
	} else {
		writeSearchText(out, results, cfg.UI.NoColor)
	}

	if len(results) == 0 {
		if opts.format == "text" {
			if hints := reader.engine.SuggestKeys(opts.key, maxKeyHints); len(hints) > 0 {
				_, _ = fmt.Fprintf(out, "did you mean: %s\n", strings.Join(hints, ", "))
			}
		}
		return &ExitError{Code: ExitNoMatches}
	}
	return nil
}

func writeSearchJSON(out io.Writer, results []search.Result) error {
	rows := make([]searchResultJSON, 0, len(results))
	for _, r := range results {
		rows = append(rows, searchResultJSON{
			Key:    r.Entry.ID,
			Author: r.Entry.Author,
			Title:  r.Entry.Title,
			Files:  r.Entry.Files,
			Score:  r.Score,
		})
	}
	return encodeJSON(out, rows)
}

func writeSearchText(out io.Writer, results []search.Result, noColor bool) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(out, "no matches!")
		return
	}

	styles := ui.GetStyles(noColor)
	for i, r := range results {
		if i > 0 {
			_, _ = fmt.Fprintln(out)
		}
		_, _ = fmt.Fprintf(out, "%s  %s\n", styles.Author.Render(r.Entry.Author), styles.Dim.Render("["+r.Entry.ID+"]"))
		_, _ = fmt.Fprintln(out, styles.Title.Render(`"`+r.Entry.Title+`"`))
		for _, f := range r.Entry.Files {
			_, _ = fmt.Fprintf(out, "  %s\n", f)
		}
	}
}
