package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bderrors "github.com/Aman-CERP/bibdex/internal/errors"
	"github.com/Aman-CERP/bibdex/internal/search"
	"github.com/Aman-CERP/bibdex/internal/store"
)

type serverFixture struct {
	server  *Server
	index   *store.BleveIndex
	catalog store.Catalog
}

func newServerFixture(t *testing.T) serverFixture {
	t.Helper()
	ctx := context.Background()

	idx, err := store.NewMemIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	catalog := store.Catalog{
		"turing1950": {ID: "turing1950", Author: "Alan Turing", Title: "Computing Machinery and Intelligence",
			Files: []string{"/papers/turing.pdf"}, Lang: "en"},
		"shannon1948": {ID: "shannon1948", Author: "Claude Shannon", Title: "A Mathematical Theory of Communication",
			Files: []string{"/papers/shannon.pdf"}},
	}
	for id, e := range catalog {
		require.NoError(t, idx.Replace(ctx, &store.IndexDocument{
			ID: id, Key: id, Author: e.Author, Title: e.Title,
			Body: []string{"the imitation game and digital computers"},
		}))
	}

	engine, err := search.NewEngine(idx, catalog, search.EngineConfig{})
	require.NoError(t, err)

	srv, err := NewServer(Dependencies{Engine: engine, Index: idx, Catalog: catalog, DataDir: t.TempDir()})
	require.NoError(t, err)
	return serverFixture{server: srv, index: idx, catalog: catalog}
}

type failingSearcher struct{ err error }

func (f failingSearcher) Search(context.Context, string, int) ([]search.Result, error) {
	return nil, f.err
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	idx, err := store.NewMemIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	_, err = NewServer(Dependencies{Index: idx})
	assert.EqualError(t, err, "search engine is required")

	_, err = NewServer(Dependencies{Engine: failingSearcher{}})
	assert.EqualError(t, err, "search index is required")
}

func TestServer_ListTools(t *testing.T) {
	fx := newServerFixture(t)

	names := []string{}
	for _, tool := range fx.server.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"search_papers", "catalog_status"}, names)

	name, _ := fx.server.Info()
	assert.Equal(t, "bibdex", name)
}

func TestSearchPapers_ScopedAuthor(t *testing.T) {
	// Given: two indexed papers
	fx := newServerFixture(t)

	// When: searching by author
	out, err := fx.server.CallTool(context.Background(), "search_papers", map[string]any{"author": "turing"})
	require.NoError(t, err)

	// Then: only the matching entry is returned with its files
	res := out.(*SearchPapersOutput)
	assert.Equal(t, "a:turing", res.Query)
	require.Len(t, res.Papers, 1)
	assert.Equal(t, "turing1950", res.Papers[0].Key)
	assert.Equal(t, []string{"/papers/turing.pdf"}, res.Papers[0].Files)
	assert.Equal(t, "en", res.Papers[0].Lang)
}

func TestSearchPapers_FullTextHonoursLimit(t *testing.T) {
	fx := newServerFixture(t)

	out, err := fx.server.CallTool(context.Background(), "search_papers",
		map[string]any{"query": "imitation", "limit": 1})
	require.NoError(t, err)

	assert.Len(t, out.(*SearchPapersOutput).Papers, 1)
}

func TestSearchPapers_EmptyInput_InvalidParams(t *testing.T) {
	fx := newServerFixture(t)

	_, err := fx.server.CallTool(context.Background(), "search_papers", map[string]any{"query": "   "})

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestSearchPapers_EngineError_Mapped(t *testing.T) {
	// Given: an engine that rejects the query
	fx := newServerFixture(t)
	fx.server.engine = failingSearcher{err: bderrors.New(bderrors.ErrCodeInvalidQuery, "bad query", nil)}

	// When: searching
	_, err := fx.server.CallTool(context.Background(), "search_papers", map[string]any{"title": "x"})

	// Then: the client sees an invalid-params error
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "bad query")
}

func TestCatalogStatus_ReportsConsistency(t *testing.T) {
	// Given: an index matching the catalog
	fx := newServerFixture(t)

	// When: asking for status
	out, err := fx.server.CallTool(context.Background(), "catalog_status", nil)
	require.NoError(t, err)

	// Then: counts agree and the pair is consistent
	status := out.(*CatalogStatusOutput)
	assert.Equal(t, 2, status.Entries)
	assert.Equal(t, 2, status.Files)
	assert.Equal(t, uint64(2), status.IndexDocuments)
	assert.Equal(t, map[string]int{"en": 1}, status.Languages)
	assert.Empty(t, status.LastSync)
	assert.True(t, status.Consistent)

	// When: the index gains an orphan
	require.NoError(t, fx.index.Replace(context.Background(), &store.IndexDocument{ID: "ghost", Key: "ghost"}))
	out, err = fx.server.CallTool(context.Background(), "catalog_status", nil)
	require.NoError(t, err)

	// Then: the status flags it
	assert.False(t, out.(*CatalogStatusOutput).Consistent)
}

func TestCallTool_UnknownTool(t *testing.T) {
	fx := newServerFixture(t)

	_, err := fx.server.CallTool(context.Background(), "index_status", nil)

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestServe_UnknownTransport(t *testing.T) {
	fx := newServerFixture(t)
	err := fx.server.Serve(context.Background(), "sse")
	assert.ErrorContains(t, err, "unknown transport")
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, clampLimit(0, DefaultLimit, 1, MaxLimit))
	assert.Equal(t, 5, clampLimit(5, DefaultLimit, 1, MaxLimit))
	assert.Equal(t, MaxLimit, clampLimit(500, DefaultLimit, 1, MaxLimit))
}
