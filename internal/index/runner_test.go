package index

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bibdex/internal/config"
	bderrors "github.com/Aman-CERP/bibdex/internal/errors"
	"github.com/Aman-CERP/bibdex/internal/store"
	"github.com/Aman-CERP/bibdex/internal/ui"
)

// MockRenderer implements ui.Renderer for testing.
type MockRenderer struct {
	mu              sync.Mutex
	ProgressEvents  []ui.ProgressEvent
	ErrorEvents     []ui.ErrorEvent
	CompleteCalled  bool
	CompletionStats ui.CompletionStats
}

func (m *MockRenderer) Start(ctx context.Context) error { return nil }

func (m *MockRenderer) UpdateProgress(event ui.ProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProgressEvents = append(m.ProgressEvents, event)
}

func (m *MockRenderer) AddError(event ui.ErrorEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorEvents = append(m.ErrorEvents, event)
}

func (m *MockRenderer) Complete(stats ui.CompletionStats) {
	m.CompleteCalled = true
	m.CompletionStats = stats
}

func (m *MockRenderer) Stop() error { return nil }

func (m *MockRenderer) Messages() []string {
	var out []string
	for _, e := range m.ProgressEvents {
		if e.Message != "" {
			out = append(out, e.Message)
		}
	}
	return out
}

// fakeExtractor serves page text from memory and counts calls per path.
type fakeExtractor struct {
	mu    sync.Mutex
	pages map[string][]string
	fail  map[string]bool
	calls map[string]int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{pages: map[string][]string{}, fail: map[string]bool{}, calls: map[string]int{}}
}

func (f *fakeExtractor) Pages(ctx context.Context, path string) iter.Seq2[string, error] {
	f.mu.Lock()
	f.calls[filepath.Base(path)]++
	pages := f.pages[filepath.Base(path)]
	fail := f.fail[filepath.Base(path)]
	f.mu.Unlock()

	return func(yield func(string, error) bool) {
		if fail {
			yield("", errors.New("broken document"))
			return
		}
		for _, p := range pages {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func (f *fakeExtractor) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fixture struct {
	t        *testing.T
	dataDir  string
	paperDir string
	bibFile  string
	index    *store.BleveIndex
	extract  *fakeExtractor
	config   *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	idx, err := store.NewMemIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	cfg := config.NewConfig()
	cfg.Sync.Workers = 2

	f := &fixture{
		t:        t,
		dataDir:  filepath.Join(root, "data"),
		paperDir: filepath.Join(root, "paper"),
		bibFile:  filepath.Join(root, "paper.bib"),
		index:    idx,
		extract:  newFakeExtractor(),
		config:   cfg,
	}
	require.NoError(t, os.MkdirAll(f.paperDir, 0o755))
	return f
}

func (f *fixture) writeBib(content string) {
	require.NoError(f.t, os.WriteFile(f.bibFile, []byte(content), 0o644))
}

func (f *fixture) writePaper(name, content string, pages ...string) {
	require.NoError(f.t, os.WriteFile(filepath.Join(f.paperDir, name), []byte(content), 0o644))
	f.extract.pages[name] = pages
}

// sync runs a full cycle the way the CLI does: load state, run, return it.
func (f *fixture) sync(cfg RunConfig) (*RunResult, *store.State, *MockRenderer, error) {
	state := store.LoadState(f.dataDir)
	renderer := &MockRenderer{}
	runner, err := NewRunner(RunnerDependencies{
		Renderer:  renderer,
		Config:    f.config,
		Index:     f.index,
		State:     state,
		Extractor: f.extract,
	})
	require.NoError(f.t, err)

	if cfg.BibFile == "" {
		cfg.BibFile = f.bibFile
	}
	if cfg.PaperDir == "" {
		cfg.PaperDir = f.paperDir
	}
	result, err := runner.Run(context.Background(), cfg)
	return result, state, renderer, err
}

func (f *fixture) search(q string) []string {
	hits, err := f.index.Search(context.Background(), q, 0, 10)
	require.NoError(f.t, err)
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.ID)
	}
	return out
}

func TestNewRunner_RequiresDependencies(t *testing.T) {
	f := newFixture(t)
	state := store.NewState(f.dataDir)

	_, err := NewRunner(RunnerDependencies{Config: f.config, Index: f.index, State: state})
	assert.ErrorContains(t, err, "renderer is required")

	_, err = NewRunner(RunnerDependencies{Renderer: &MockRenderer{}, Index: f.index, State: state})
	assert.ErrorContains(t, err, "config is required")

	_, err = NewRunner(RunnerDependencies{Renderer: &MockRenderer{}, Config: f.config, State: state})
	assert.ErrorContains(t, err, "search index is required")

	_, err = NewRunner(RunnerDependencies{Renderer: &MockRenderer{}, Config: f.config, Index: f.index})
	assert.ErrorContains(t, err, "state is required")
}

func TestRunner_EndToEnd(t *testing.T) {
	// Given: one entry with a readable attached file
	f := newFixture(t)
	f.writePaper("a.pdf", "v1", "gradient descent")
	f.writeBib(`@article{A1, title = {Foo}, author = {X and Y}, file = {a.pdf}}`)

	// When: synchronizing
	result, state, renderer, err := f.sync(RunConfig{})

	// Then: the catalog holds A1 with its resolved file
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	require.Contains(t, state.Catalog, "A1")
	assert.Equal(t, []string{filepath.Join(f.paperDir, "a.pdf")}, state.Catalog["A1"].Files)
	assert.Equal(t, "X, Y", state.Catalog["A1"].Author)
	assert.Contains(t, renderer.Messages(), "indexing A1")
	assert.True(t, renderer.CompleteCalled)

	// And: the state was persisted
	reloaded := store.LoadState(f.dataDir)
	assert.Equal(t, state.Catalog, reloaded.Catalog)
	assert.Equal(t, state.Checksums, reloaded.Checksums)

	// And: full-text and scoped queries behave
	assert.Equal(t, []string{"A1"}, f.search("Foo"))
	assert.Equal(t, []string{"A1"}, f.search("gradient"))
	assert.Empty(t, f.search("a:Z"))
}

func TestRunner_SecondRunIsIdempotent(t *testing.T) {
	// Given: a synchronized bibliography
	f := newFixture(t)
	f.writePaper("a.pdf", "v1", "alpha")
	f.writePaper("b.pdf", "v1", "beta")
	f.writeBib(`
@article{A1, title = {Foo}, author = {X}, file = {a.pdf}}
@article{B2, title = {Bar}, author = {Y}, file = {b.pdf}}`)
	_, first, _, err := f.sync(RunConfig{})
	require.NoError(t, err)
	calls := f.extract.totalCalls()

	// When: running again with nothing changed
	result, second, _, err := f.sync(RunConfig{})

	// Then: nothing is re-extracted or replaced and state is identical
	require.NoError(t, err)
	assert.Equal(t, 0, result.Indexed)
	assert.Equal(t, 2, result.Unchanged)
	assert.Equal(t, calls, f.extract.totalCalls())
	assert.Equal(t, first.Catalog, second.Catalog)
	assert.Equal(t, first.Checksums, second.Checksums)
	assert.Equal(t, []string{"A1"}, f.search("alpha"))
}

func TestRunner_RemovedEntryDisappears(t *testing.T) {
	// Given: two indexed entries
	f := newFixture(t)
	f.writePaper("a.pdf", "v1", "alpha")
	f.writePaper("b.pdf", "v1", "beta")
	f.writeBib(`
@article{A1, title = {Foo}, author = {X}, file = {a.pdf}}
@article{B2, title = {Bar}, author = {Y}, file = {b.pdf}}`)
	_, _, _, err := f.sync(RunConfig{})
	require.NoError(t, err)

	// When: B2 is dropped from the bibliography
	f.writeBib(`@article{A1, title = {Foo}, author = {X}, file = {a.pdf}}`)
	result, state, renderer, err := f.sync(RunConfig{})

	// Then: B2 is gone from catalog, checksums and the index
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
	assert.NotContains(t, state.Catalog, "B2")
	assert.NotContains(t, state.Checksums, "B2")
	assert.Empty(t, f.search("beta"))
	assert.Empty(t, f.search("k:B2"))
	assert.Contains(t, renderer.Messages(), "deleting B2")

	reloaded := store.LoadState(f.dataDir)
	assert.NotContains(t, reloaded.Catalog, "B2")
}

func TestRunner_ChangedContentIsReindexed(t *testing.T) {
	// Given: an indexed entry
	f := newFixture(t)
	f.writePaper("a.pdf", "v1", "alpha")
	f.writeBib(`@article{A1, title = {Foo}, author = {X}, file = {a.pdf}}`)
	_, first, _, err := f.sync(RunConfig{})
	require.NoError(t, err)
	oldSum := first.Checksums["A1"]

	// When: the file bytes change
	f.writePaper("a.pdf", "v2", "omega")
	result, state, _, err := f.sync(RunConfig{})

	// Then: the entry is re-indexed with new checksums
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.False(t, oldSum.Equal(state.Checksums["A1"]))
	assert.Equal(t, []string{"A1"}, f.search("omega"))
	assert.Empty(t, f.search("alpha"))
}

func TestRunner_MetadataChangeIsReindexed(t *testing.T) {
	f := newFixture(t)
	f.writePaper("a.pdf", "v1", "alpha")
	f.writeBib(`@article{A1, title = {Foo}, author = {X}, file = {a.pdf}}`)
	_, _, _, err := f.sync(RunConfig{})
	require.NoError(t, err)

	f.writeBib(`@article{A1, title = {Quux}, author = {X}, file = {a.pdf}}`)
	result, state, _, err := f.sync(RunConfig{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, "Quux", state.Catalog["A1"].Title)
	assert.Equal(t, []string{"A1"}, f.search("t:quux"))
	assert.Empty(t, f.search("t:foo"))
}

func TestRunner_SkipsUnindexableEntries(t *testing.T) {
	// Given: entries without files, with a foreign language, and with a missing file
	f := newFixture(t)
	f.writePaper("a.pdf", "v1", "alpha")
	f.writePaper("d.pdf", "v1", "delta")
	f.writeBib(`
@article{A1, title = {Foo}, author = {X}, file = {a.pdf}}
@article{NOFILE, title = {Bar}, author = {Y}}
@article{DE, title = {Baz}, author = {Z}, file = {d.pdf}, lang = {de}}
@article{GONE, title = {Qux}, author = {W}, file = {missing.pdf}}`)

	// When: synchronizing
	result, state, renderer, err := f.sync(RunConfig{})

	// Then: only A1 is indexed and the others are reported with reasons
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, 4, result.Entries)
	assert.Equal(t, []Skip{
		{ID: "NOFILE", Reason: ReasonNoFiles},
		{ID: "DE", Reason: ReasonUnknownLanguage},
		{ID: "GONE", Reason: ReasonNoReadableFiles},
	}, result.Plan.Skipped)
	assert.Contains(t, renderer.Messages(), "skipping NOFILE : has no files")
	assert.Equal(t, []string{"A1"}, keys(state.Catalog))
	assert.Empty(t, f.search("delta"))
}

func TestRunner_EntryLosingFilesIsUnindexed(t *testing.T) {
	// Given: an indexed entry
	f := newFixture(t)
	f.writePaper("a.pdf", "v1", "alpha")
	f.writeBib(`@article{A1, title = {Foo}, author = {X}, file = {a.pdf}}`)
	_, _, _, err := f.sync(RunConfig{})
	require.NoError(t, err)

	// When: its only file disappears
	require.NoError(t, os.Remove(filepath.Join(f.paperDir, "a.pdf")))
	result, state, _, err := f.sync(RunConfig{})

	// Then: it is treated like a removal
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.NotContains(t, state.Catalog, "A1")
	assert.NotContains(t, state.Checksums, "A1")
	assert.Empty(t, f.search("Foo"))
}

func TestRunner_ExtractionFailureSkipsEntry(t *testing.T) {
	// Given: one good and one broken document
	f := newFixture(t)
	f.writePaper("a.pdf", "v1", "alpha")
	f.writePaper("bad.pdf", "v1")
	f.extract.fail["bad.pdf"] = true
	f.writeBib(`
@article{A1, title = {Foo}, author = {X}, file = {a.pdf}}
@article{BAD, title = {Broken}, author = {Y}, file = {bad.pdf}}`)

	// When: synchronizing
	result, state, renderer, err := f.sync(RunConfig{})

	// Then: the run continues and the broken entry is not kept
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 1, result.Skipped)
	assert.NotContains(t, state.Catalog, "BAD")
	assert.NotContains(t, state.Checksums, "BAD")
	assert.Empty(t, f.search("Broken"))
	require.Len(t, renderer.ErrorEvents, 1)
	assert.Equal(t, "BAD", renderer.ErrorEvents[0].Entry)
	assert.Equal(t, bderrors.ErrCodeExtractFailed, bderrors.GetCode(renderer.ErrorEvents[0].Err))

	// And: the next run retries it
	f.extract.fail["bad.pdf"] = false
	f.extract.pages["bad.pdf"] = []string{"recovered"}
	result, _, _, err = f.sync(RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, []string{"BAD"}, f.search("recovered"))
}

func TestRunner_PhrasesDoNotSpanFiles(t *testing.T) {
	f := newFixture(t)
	f.writePaper("a.pdf", "v1", "the quick brown")
	f.writePaper("b.pdf", "v1", "fox jumps")
	f.writeBib(`@article{A1, title = {Foo}, author = {X}, file = {a.pdf:b.pdf}}`)

	_, _, _, err := f.sync(RunConfig{})
	require.NoError(t, err)

	assert.Equal(t, []string{"A1"}, f.search(`"quick brown"`))
	assert.Empty(t, f.search(`"brown fox"`))
}

func TestRunner_ForceReindexesEverything(t *testing.T) {
	f := newFixture(t)
	f.writePaper("a.pdf", "v1", "alpha")
	f.writeBib(`@article{A1, title = {Foo}, author = {X}, file = {a.pdf}}`)
	_, _, _, err := f.sync(RunConfig{})
	require.NoError(t, err)

	result, _, _, err := f.sync(RunConfig{Force: true})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 0, result.Unchanged)
	assert.Equal(t, 2, f.extract.totalCalls())
}

func TestRunner_DryRunWritesNothing(t *testing.T) {
	// Given: a fresh bibliography
	f := newFixture(t)
	f.writePaper("a.pdf", "v1", "alpha")
	f.writeBib(`@article{A1, title = {Foo}, author = {X}, file = {a.pdf}}`)

	// When: running with DryRun
	result, _, renderer, err := f.sync(RunConfig{DryRun: true})

	// Then: the plan is reported but nothing is written
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Len(t, result.Plan.Changed, 1)
	assert.Contains(t, renderer.Messages(), "would index A1")
	assert.True(t, renderer.CompletionStats.DryRun)
	assert.Equal(t, 0, f.extract.totalCalls())
	assert.NoFileExists(t, filepath.Join(f.dataDir, store.CatalogFile))
	assert.Empty(t, f.search("Foo"))
}

func TestRunner_CancelledRunSavesNothing(t *testing.T) {
	f := newFixture(t)
	f.writePaper("a.pdf", "v1", "alpha")
	f.writeBib(`@article{A1, title = {Foo}, author = {X}, file = {a.pdf}}`)

	runner, err := NewRunner(RunnerDependencies{
		Renderer:  &MockRenderer{},
		Config:    f.config,
		Index:     f.index,
		State:     store.LoadState(f.dataDir),
		Extractor: f.extract,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runner.Run(ctx, RunConfig{BibFile: f.bibFile, PaperDir: f.paperDir})

	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(f.dataDir, store.CatalogFile))
}

func TestRunner_MissingBibFileIsFatal(t *testing.T) {
	f := newFixture(t)

	_, _, _, err := f.sync(RunConfig{})

	require.Error(t, err)
	assert.Equal(t, bderrors.ErrCodeFileNotFound, bderrors.GetCode(err))
}

func TestRunner_RemovesOrphanDocuments(t *testing.T) {
	// Given: an index document the catalog does not know
	f := newFixture(t)
	require.NoError(t, f.index.Replace(context.Background(), &store.IndexDocument{ID: "STRAY", Key: "STRAY", Title: "Stray"}))
	f.writePaper("a.pdf", "v1", "alpha")
	f.writeBib(`@article{A1, title = {Foo}, author = {X}, file = {a.pdf}}`)

	// When: synchronizing
	result, _, _, err := f.sync(RunConfig{})

	// Then: the stray document is deleted
	require.NoError(t, err)
	assert.Equal(t, 1, result.Orphans)
	assert.Empty(t, f.search("Stray"))
}

func TestRunner_ReindexesCatalogEntryMissingFromIndex(t *testing.T) {
	// Given: state that claims A1 is indexed while the index is empty
	f := newFixture(t)
	f.writePaper("a.pdf", "v1", "alpha")
	f.writeBib(`@article{A1, title = {Foo}, author = {X}, file = {a.pdf}}`)
	_, _, _, err := f.sync(RunConfig{})
	require.NoError(t, err)
	require.NoError(t, f.index.Delete(context.Background(), []string{"A1"}))

	// When: synchronizing again
	result, _, _, err := f.sync(RunConfig{})

	// Then: A1 is indexed again
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, []string{"A1"}, f.search("alpha"))
}

func keys(c store.Catalog) []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	return out
}
