package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/bibdex/internal/store"
)

// DefaultCacheSize is the number of query results kept by an Engine.
const DefaultCacheSize = 128

// Result is one catalog entry matched by a query.
type Result struct {
	Entry *store.Entry
	Score float64
}

// Searcher runs a query string and returns catalog entries in rank order.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Ensure Engine implements Searcher.
var _ Searcher = (*Engine)(nil)

// EngineConfig configures an Engine.
type EngineConfig struct {
	// CacheSize bounds the result cache. Zero uses DefaultCacheSize; a
	// negative value disables caching.
	CacheSize int
}

type cacheKey struct {
	query string
	limit int
}

// Engine answers queries against a read-only index and catalog. Hits whose
// ID is not in the catalog are dropped and take no result slot.
type Engine struct {
	index   store.SearchIndex
	catalog store.Catalog
	cache   *lru.Cache[cacheKey, []Result]
	mu      sync.RWMutex
}

// NewEngine creates an Engine over idx and catalog.
func NewEngine(idx store.SearchIndex, catalog store.Catalog, cfg EngineConfig) (*Engine, error) {
	if idx == nil {
		return nil, fmt.Errorf("search index is required")
	}
	if catalog == nil {
		catalog = store.Catalog{}
	}

	e := &Engine{index: idx, catalog: catalog}

	size := cfg.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		cache, err := lru.New[cacheKey, []Result](size)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

// Search returns at most limit entries for query. The index is asked for
// limit hits and stale hits are filtered out afterwards, so fewer than
// limit results may come back. A blank query returns nothing.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" || limit < 1 {
		return nil, nil
	}

	key := cacheKey{query: query, limit: limit}
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			return cached, nil
		}
	}

	start := time.Now()
	hits, err := e.index.Search(ctx, query, 0, limit)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		entry, ok := e.catalog[h.ID]
		if !ok {
			continue
		}
		results = append(results, Result{Entry: entry, Score: h.Score})
	}
	e.mu.RUnlock()

	slog.Debug("query_executed",
		slog.String("query", query),
		slog.Int("limit", limit),
		slog.Int("hits", len(hits)),
		slog.Int("results", len(results)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	if e.cache != nil {
		e.cache.Add(key, results)
	}
	return results, nil
}

// SearchFields builds the query from fields and runs it.
func (e *Engine) SearchFields(ctx context.Context, fields Fields, limit int) ([]Result, error) {
	return e.Search(ctx, BuildQuery(fields), limit)
}

// Reset swaps in a new catalog and drops cached results. It is used after
// a sync run replaced the state.
func (e *Engine) Reset(catalog store.Catalog) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if catalog == nil {
		catalog = store.Catalog{}
	}
	e.catalog = catalog
	if e.cache != nil {
		e.cache.Purge()
	}
}

// Len returns the number of catalog entries.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.catalog)
}
