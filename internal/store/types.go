// Package store holds bibdex's persisted state: the entry catalog, the
// per-entry checksum store, and the bleve search index.
package store

import (
	"context"
	"maps"
	"slices"
)

// Entry is a catalog record for one indexed bibliography entry.
type Entry struct {
	// ID is the BibTeX citation key.
	ID string
	// Author is plain text, authors separated by ", ".
	Author string
	// Title is plain text with LaTeX markup removed.
	Title string
	// Files are absolute paths that were readable when the entry was indexed.
	Files []string
	// Lang is the BibTeX lang field, empty when absent.
	Lang string
}

// SameMetadata reports whether e and other would produce the same search
// document fields apart from body text.
func (e *Entry) SameMetadata(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.ID == other.ID &&
		e.Author == other.Author &&
		e.Title == other.Title &&
		slices.Equal(e.Files, other.Files)
}

// ChecksumMap maps a file path to the hex SHA-256 of its contents.
type ChecksumMap map[string]string

// Equal reports whether m and other have the same keys with the same values.
func (m ChecksumMap) Equal(other ChecksumMap) bool {
	return maps.Equal(m, other)
}

// Catalog maps entry ID to the entry as last indexed.
type Catalog map[string]*Entry

// ChecksumStore maps entry ID to the checksums of its files as last indexed.
type ChecksumStore map[string]ChecksumMap

// IndexDocument is what bibdex submits to the search engine for an entry.
// Field names are the query prefixes: "k" key, "a" author, "t" title.
// Body holds one element per file so phrases never span two files.
type IndexDocument struct {
	ID     string   `json:"id"`
	Key    string   `json:"k"`
	Author string   `json:"a"`
	Title  string   `json:"t"`
	Body   []string `json:"body"`
}

// Hit is one ranked search result.
type Hit struct {
	ID    string
	Score float64
}

// SearchIndex is the search engine used by the synchronizer and the
// query side. Implementations must be safe for concurrent use.
type SearchIndex interface {
	// Replace stores doc under doc.ID, replacing any existing document.
	Replace(ctx context.Context, doc *IndexDocument) error

	// Delete removes the documents with the given IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Search parses query and returns at most limit hits starting at offset,
	// in rank order. An empty query returns no hits.
	Search(ctx context.Context, query string, offset, limit int) ([]Hit, error)

	// AllIDs returns every document ID in the index.
	AllIDs(ctx context.Context) ([]string, error)

	// DocCount returns the number of documents.
	DocCount() (uint64, error)

	// Close releases the index.
	Close() error
}
