package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bibdex/internal/config"
	"github.com/Aman-CERP/bibdex/internal/search"
	"github.com/Aman-CERP/bibdex/internal/store"
)

// pathFlags are the location overrides shared by most commands.
type pathFlags struct {
	dataDir  string
	paperDir string
	bibFile  string
}

func (p *pathFlags) registerDataDir(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.dataDir, "data-dir", "d", "", "Directory holding the catalog and search index")
}

func (p *pathFlags) registerSources(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.paperDir, "paper-dir", "p", "", "Base directory for relative paper paths")
	cmd.Flags().StringVarP(&p.bibFile, "bib-file", "b", "", "Bibliography to index (default: <paper-dir>/paper.bib)")
}

// apply overrides cfg with the flags that were given. Paths are made absolute
// so stored file paths do not depend on the working directory.
func (p pathFlags) apply(cfg *config.Config) {
	if p.dataDir != "" {
		cfg.Paths.DataDir = p.dataDir
	}
	if p.paperDir != "" {
		cfg.Paths.PaperDir = p.paperDir
	}
	if p.bibFile != "" {
		cfg.Paths.BibFile = p.bibFile
	}
	cfg.Paths.DataDir = absPath(cfg.Paths.DataDir)
	cfg.Paths.PaperDir = absPath(cfg.Paths.PaperDir)
	if cfg.Paths.BibFile != "" {
		cfg.Paths.BibFile = absPath(cfg.Paths.BibFile)
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// catalogReader is a read-only view of a data directory held under the
// shared lock.
type catalogReader struct {
	lock   *store.FileLock
	index  *store.BleveIndex
	state  *store.State
	engine *search.Engine
}

func openCatalogReader(cfg *config.Config) (*catalogReader, error) {
	dir := cfg.Paths.DataDir
	lock, err := store.AcquireReader(dir)
	if err != nil {
		return nil, err
	}

	idx, err := store.OpenIndexReadOnly(filepath.Join(dir, store.IndexDir))
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	state := store.LoadState(dir)
	engine, err := search.NewEngine(idx, state.Catalog, search.EngineConfig{CacheSize: cfg.Search.CacheSize})
	if err != nil {
		_ = idx.Close()
		_ = lock.Unlock()
		return nil, err
	}

	return &catalogReader{lock: lock, index: idx, state: state, engine: engine}, nil
}

func (r *catalogReader) Close() error {
	err := r.index.Close()
	if uerr := r.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}
