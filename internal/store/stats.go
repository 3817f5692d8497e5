package store

import (
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Stats summarises a data directory.
type Stats struct {
	DataDir        string         `json:"data_dir"`
	Entries        int            `json:"entries"`
	Files          int            `json:"files"`
	IndexDocuments uint64         `json:"index_documents"`
	Languages      map[string]int `json:"languages,omitempty"`
	LastSync       time.Time      `json:"last_sync,omitzero"`
}

// CollectStats counts catalog entries and files and asks idx for its
// document count. LastSync is the catalog file's modification time, zero
// before the first sync.
func CollectStats(dir string, catalog Catalog, idx SearchIndex) (*Stats, error) {
	st := &Stats{DataDir: dir, Entries: len(catalog)}
	for _, e := range catalog {
		st.Files += len(e.Files)
		if e.Lang != "" {
			if st.Languages == nil {
				st.Languages = make(map[string]int)
			}
			st.Languages[e.Lang]++
		}
	}

	if idx != nil {
		n, err := idx.DocCount()
		if err != nil {
			return nil, err
		}
		st.IndexDocuments = n
	}

	if info, err := os.Stat(filepath.Join(dir, CatalogFile)); err == nil {
		st.LastSync = info.ModTime()
	}
	return st, nil
}

// SortedLanguages returns the language codes in Languages, sorted.
func (s *Stats) SortedLanguages() []string {
	langs := make([]string, 0, len(s.Languages))
	for l := range s.Languages {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}
