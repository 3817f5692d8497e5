// Package extract turns attached documents into page text for indexing.
package extract

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned for files no extractor handles.
var ErrUnsupported = errors.New("unsupported document type")

// Extractor yields the text of a document page by page. The sequence is
// lazy and may be ranged over more than once; each pass re-reads the file.
// On failure it yields ("", err) once and stops.
type Extractor interface {
	Pages(ctx context.Context, path string) iter.Seq2[string, error]
}

// ByExtension dispatches on the lower-case file extension.
type ByExtension map[string]Extractor

// Default handles PDF, HTML and plain text files.
func Default() ByExtension {
	text := PlainText{}
	html := NewHTML()
	return ByExtension{
		".pdf":  PDF{},
		".html": html,
		".htm":  html,
		".txt":  text,
		".text": text,
		".md":   text,
	}
}

// Pages implements Extractor.
func (m ByExtension) Pages(ctx context.Context, path string) iter.Seq2[string, error] {
	ext := strings.ToLower(filepath.Ext(path))
	if e, ok := m[ext]; ok {
		return e.Pages(ctx, path)
	}
	return func(yield func(string, error) bool) {
		yield("", fmt.Errorf("%s: %w", path, ErrUnsupported))
	}
}

// Document collects every page of path, one string per page.
func Document(ctx context.Context, e Extractor, path string) ([]string, error) {
	var pages []string
	for text, err := range e.Pages(ctx, path) {
		if err != nil {
			return nil, err
		}
		pages = append(pages, text)
	}
	return pages, nil
}
