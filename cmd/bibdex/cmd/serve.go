package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bibdex/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var paths pathFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog to MCP clients over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
search_papers and catalog_status tools. Logs go to the log file only.

The server holds a shared lock on the data directory; 'bibdex sync'
refuses to run until it exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			paths.apply(cfg)

			reader, err := openCatalogReader(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = reader.Close() }()

			srv, err := mcp.NewServer(mcp.Dependencies{
				Engine:  reader.engine,
				Index:   reader.index,
				Catalog: reader.state.Catalog,
				DataDir: cfg.Paths.DataDir,
			})
			if err != nil {
				return err
			}
			return srv.Serve(ctx, "stdio")
		},
	}

	paths.registerDataDir(cmd)
	return cmd
}
