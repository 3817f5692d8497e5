// Package integration exercises sync, search and watch together against a
// data directory on disk.
package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bibdex/internal/config"
	"github.com/Aman-CERP/bibdex/internal/index"
	"github.com/Aman-CERP/bibdex/internal/search"
	"github.com/Aman-CERP/bibdex/internal/store"
	"github.com/Aman-CERP/bibdex/internal/ui"
)

const twoPapers = `
@article{turing1950,
  author = {Alan Turing},
  title = {Computing Machinery and Intelligence},
  file = {turing.txt}
}
@article{shannon1948,
  author = {Claude Shannon},
  title = {A Mathematical Theory of Communication},
  file = {shannon.txt}
}
`

type library struct {
	dataDir  string
	paperDir string
	bibFile  string
}

func newLibrary(t *testing.T) library {
	t.Helper()
	root := t.TempDir()
	lib := library{
		dataDir:  filepath.Join(root, "data"),
		paperDir: filepath.Join(root, "paper"),
	}
	lib.bibFile = filepath.Join(lib.paperDir, "paper.bib")
	require.NoError(t, os.MkdirAll(lib.paperDir, 0o755))

	lib.write(t, "turing.txt", "Can machines think? The imitation game.")
	lib.write(t, "shannon.txt", "Entropy and channel capacity of noisy channels.")
	lib.write(t, "paper.bib", twoPapers)
	return lib
}

func (l library) write(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(l.paperDir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// sync runs one complete sync the way 'bibdex sync' does.
func (l library) sync(t *testing.T) *index.RunResult {
	t.Helper()
	result, err := l.trySync(t)
	require.NoError(t, err)
	return result
}

func (l library) trySync(t *testing.T) (*index.RunResult, error) {
	t.Helper()

	lock, err := store.AcquireWriter(l.dataDir)
	require.NoError(t, err)
	defer func() { _ = lock.Unlock() }()

	idx, recreated, err := store.OpenIndex(filepath.Join(l.dataDir, store.IndexDir))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	require.False(t, recreated)

	runner, err := index.NewRunner(index.RunnerDependencies{
		Renderer: ui.NewPlainRenderer(ui.NewConfig(&bytes.Buffer{}, ui.WithNoColor(true))),
		Config:   config.NewConfig(),
		Index:    idx,
		State:    store.LoadState(l.dataDir),
	})
	require.NoError(t, err)

	return runner.Run(context.Background(), index.RunConfig{BibFile: l.bibFile, PaperDir: l.paperDir})
}

// search opens the data directory read-only and returns the matching keys.
func (l library) search(t *testing.T, query string) []string {
	t.Helper()

	lock, err := store.AcquireReader(l.dataDir)
	require.NoError(t, err)
	defer func() { _ = lock.Unlock() }()

	idx, err := store.OpenIndexReadOnly(filepath.Join(l.dataDir, store.IndexDir))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	engine, err := search.NewEngine(idx, store.LoadState(l.dataDir).Catalog, search.EngineConfig{})
	require.NoError(t, err)

	results, err := engine.Search(context.Background(), query, 10)
	require.NoError(t, err)

	keys := make([]string, 0, len(results))
	for _, r := range results {
		keys = append(keys, r.Entry.ID)
	}
	return keys
}

func TestSyncThenSearch(t *testing.T) {
	// Given: a freshly synced library
	lib := newLibrary(t)
	result := lib.sync(t)

	// Then: both entries were indexed
	assert.Equal(t, 2, result.Entries)
	assert.Equal(t, 2, result.Indexed)

	// And: body text and scoped fields are searchable
	assert.Equal(t, []string{"shannon1948"}, lib.search(t, "entropy"))
	assert.Equal(t, []string{"turing1950"}, lib.search(t, "a:turing"))
	assert.Equal(t, []string{"turing1950"}, lib.search(t, "t:machinery"))
	assert.Empty(t, lib.search(t, "thermodynamics"))
}

func TestResync_Unchanged(t *testing.T) {
	// Given: a synced library
	lib := newLibrary(t)
	lib.sync(t)

	// When: syncing again without changes
	result := lib.sync(t)

	// Then: nothing is re-indexed
	assert.Equal(t, 0, result.Indexed)
	assert.Equal(t, 2, result.Unchanged)
}

func TestResync_EditedPaper(t *testing.T) {
	// Given: a synced library
	lib := newLibrary(t)
	lib.sync(t)

	// When: one paper's text changes
	lib.write(t, "shannon.txt", "Thermodynamics of communication.")
	result := lib.sync(t)

	// Then: only that entry is re-indexed and old text is gone
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 1, result.Unchanged)
	assert.Empty(t, lib.search(t, "entropy"))
	assert.Equal(t, []string{"shannon1948"}, lib.search(t, "thermodynamics"))
}

func TestResync_RemovedEntry(t *testing.T) {
	// Given: a synced library
	lib := newLibrary(t)
	lib.sync(t)

	// When: an entry is dropped from the bibliography
	lib.write(t, "paper.bib", `
@article{turing1950,
  author = {Alan Turing},
  title = {Computing Machinery and Intelligence},
  file = {turing.txt}
}
`)
	result := lib.sync(t)

	// Then: it leaves both the index and the catalog
	assert.Equal(t, 1, result.Removed)
	assert.Empty(t, lib.search(t, "entropy"))
	catalog := store.LoadState(lib.dataDir).Catalog
	assert.Len(t, catalog, 1)
	assert.Contains(t, catalog, "turing1950")
}

func TestResync_CommentHeaderKeepsCatalog(t *testing.T) {
	// Given: a synced library
	lib := newLibrary(t)
	lib.sync(t)

	// When: a reference manager adds a comment header and a comment between entries
	lib.write(t, "paper.bib", "% Encoding: UTF-8\n"+twoPapers+"\n% end of file\n")
	result := lib.sync(t)

	// Then: every entry survives and nothing is removed
	assert.Equal(t, 2, result.Entries)
	assert.Equal(t, 0, result.Removed)
	assert.Equal(t, 2, result.Unchanged)
	assert.Equal(t, []string{"turing1950"}, lib.search(t, "imitation"))
}

func TestResync_BrokenBibliographyKeepsIndex(t *testing.T) {
	// Given: a synced library
	lib := newLibrary(t)
	lib.sync(t)

	// When: the bibliography is truncated mid-entry
	lib.write(t, "paper.bib", "@article{turing1950,\n  title = {Computing")
	_, err := lib.trySync(t)

	// Then: the sync fails and the previous catalog is still searchable
	require.Error(t, err)
	assert.Equal(t, []string{"shannon1948"}, lib.search(t, "entropy"))
	assert.Len(t, store.LoadState(lib.dataDir).Catalog, 2)
}

func TestSearch_WhileSyncing_Locked(t *testing.T) {
	// Given: a synced library with the writer lock held
	lib := newLibrary(t)
	lib.sync(t)
	lock, err := store.AcquireWriter(lib.dataDir)
	require.NoError(t, err)
	defer func() { _ = lock.Unlock() }()

	// When: a reader tries to open it
	_, err = store.AcquireReader(lib.dataDir)

	// Then: it fails fast
	require.Error(t, err)
}
