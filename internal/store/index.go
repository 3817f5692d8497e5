package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	bderrors "github.com/Aman-CERP/bibdex/internal/errors"
)

// BleveIndex is the bleve-backed SearchIndex.
type BleveIndex struct {
	mu       sync.RWMutex
	index    bleve.Index
	path     string
	readOnly bool
	closed   bool
}

var _ SearchIndex = (*BleveIndex)(nil)

// NewMemIndex creates an in-memory index.
func NewMemIndex() (*BleveIndex, error) {
	idx, err := bleve.NewMemOnly(newIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create memory index: %w", err)
	}
	return &BleveIndex{index: idx}, nil
}

// OpenIndex opens the index at path for writing, creating it if needed.
// A corrupt index is removed and recreated empty. When recreated is true the
// caller must discard stored checksums so every entry is indexed again.
func OpenIndex(path string) (idx *BleveIndex, recreated bool, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, bderrors.New(bderrors.ErrCodeIndexOpen, "failed to create index directory", err)
	}

	if verr := validateIndexMeta(path); verr != nil {
		slog.Warn("index_corrupted", slog.String("path", path), slog.String("error", verr.Error()))
		if rerr := os.RemoveAll(path); rerr != nil {
			return nil, false, bderrors.New(bderrors.ErrCodeCorruptIndex,
				"search index is corrupt and cannot be removed", rerr).WithDetail("path", path)
		}
		recreated = true
	}

	bi, err := bleve.Open(path)
	switch {
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		bi, err = bleve.New(path, newIndexMapping())
	case err != nil && isCorruptionError(err):
		slog.Warn("index_open_failed", slog.String("path", path), slog.String("error", err.Error()))
		if rerr := os.RemoveAll(path); rerr != nil {
			return nil, false, bderrors.New(bderrors.ErrCodeCorruptIndex,
				"search index is corrupt and cannot be removed", rerr).WithDetail("path", path)
		}
		recreated = true
		bi, err = bleve.New(path, newIndexMapping())
	}
	if err != nil {
		return nil, false, bderrors.New(bderrors.ErrCodeIndexOpen, "failed to open search index", err).
			WithDetail("path", path)
	}
	if recreated {
		slog.Info("index_recreated", slog.String("path", path))
	}

	return &BleveIndex{index: bi, path: path}, recreated, nil
}

// OpenIndexReadOnly opens an existing index for searching only.
func OpenIndexReadOnly(path string) (*BleveIndex, error) {
	bi, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": true})
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return nil, bderrors.New(bderrors.ErrCodeIndexOpen, "no search index found", err).
			WithDetail("path", path).
			WithSuggestion("run 'bibdex sync' first")
	}
	if err != nil {
		return nil, bderrors.New(bderrors.ErrCodeIndexOpen, "failed to open search index", err).
			WithDetail("path", path)
	}
	return &BleveIndex{index: bi, path: path, readOnly: true}, nil
}

// newIndexMapping maps IndexDocument. Every text field uses the English
// analyzer (stemming plus stop words) so scoped and unscoped queries agree,
// and all of them feed _all, the default field of unscoped terms.
func newIndexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = en.AnalyzerName

	idField := bleve.NewKeywordFieldMapping()
	idField.Analyzer = keyword.Name
	idField.Store = true
	idField.IncludeInAll = false

	text := func(store bool) *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = en.AnalyzerName
		f.Store = store
		f.IncludeTermVectors = true
		return f
	}

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt("id", idField)
	doc.AddFieldMappingsAt("k", text(false))
	doc.AddFieldMappingsAt("a", text(false))
	doc.AddFieldMappingsAt("t", text(false))
	doc.AddFieldMappingsAt("body", text(false))

	im.DefaultMapping = doc
	return im
}

// validateIndexMeta reports a problem when an index directory exists
// without a readable index_meta.json.
func validateIndexMeta(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(path, "index_meta.json"))
	if err != nil {
		return fmt.Errorf("index_meta.json unreadable: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if errors.Is(err, bleve.ErrorIndexMetaCorrupt) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment")
}

// Replace implements SearchIndex.
func (b *BleveIndex) Replace(ctx context.Context, doc *IndexDocument) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("document without id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writable(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Index overwrites any document with the same ID.
	if err := b.index.Index(doc.ID, doc); err != nil {
		return bderrors.New(bderrors.ErrCodeIndexFailed, "failed to index "+doc.ID, err)
	}
	return nil
}

// Delete implements SearchIndex.
func (b *BleveIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writable(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return bderrors.New(bderrors.ErrCodeIndexFailed, "failed to delete documents", err)
	}
	return nil
}

// Search implements SearchIndex using bleve's query string syntax,
// where "a:turing" restricts a term to the author field.
func (b *BleveIndex) Search(ctx context.Context, query string, offset, limit int) ([]Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []Hit{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), limit, offset, false)
	req.Fields = []string{"id"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, bderrors.New(bderrors.ErrCodeInvalidQuery, "search failed", err).
			WithDetail("query", query)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, _ := h.Fields["id"].(string)
		if id == "" {
			id = h.ID
		}
		hits = append(hits, Hit{ID: id, Score: h.Score})
	}
	return hits, nil
}

// AllIDs implements SearchIndex.
func (b *BleveIndex) AllIDs(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	count, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if count == 0 {
		return []string{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	return ids, nil
}

// DocCount implements SearchIndex.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, fmt.Errorf("index is closed")
	}
	return b.index.DocCount()
}

// Path returns the index directory, empty for memory indexes.
func (b *BleveIndex) Path() string {
	return b.path
}

// Close implements SearchIndex. It is safe to call more than once.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func (b *BleveIndex) writable() error {
	if b.closed {
		return fmt.Errorf("index is closed")
	}
	if b.readOnly {
		return fmt.Errorf("index is read-only")
	}
	return nil
}
