package mcp

import "time"

// SearchPapersInput is the input schema of the search_papers tool.
type SearchPapersInput struct {
	Query  string `json:"query,omitempty" jsonschema:"full-text terms matched against paper contents and metadata"`
	Author string `json:"author,omitempty" jsonschema:"terms matched against author names"`
	Title  string `json:"title,omitempty" jsonschema:"terms matched against titles"`
	Key    string `json:"key,omitempty" jsonschema:"terms matched against BibTeX citation keys"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of papers, default 10, max 50"`
}

// SearchPapersOutput is the output schema of the search_papers tool.
type SearchPapersOutput struct {
	Query  string        `json:"query" jsonschema:"the query string that was executed"`
	Papers []PaperOutput `json:"papers" jsonschema:"matching papers in rank order"`
}

// PaperOutput is one matched bibliography entry.
type PaperOutput struct {
	Key    string   `json:"key" jsonschema:"BibTeX citation key"`
	Author string   `json:"author" jsonschema:"authors, comma separated"`
	Title  string   `json:"title"`
	Files  []string `json:"files" jsonschema:"absolute paths of the paper files"`
	Lang   string   `json:"lang,omitempty"`
	Score  float64  `json:"score"`
}

// CatalogStatusInput is the (empty) input of the catalog_status tool.
type CatalogStatusInput struct{}

// CatalogStatusOutput is the output schema of the catalog_status tool.
type CatalogStatusOutput struct {
	DataDir        string         `json:"data_dir"`
	Entries        int            `json:"entries" jsonschema:"indexed bibliography entries"`
	Files          int            `json:"files" jsonschema:"paper files across all entries"`
	IndexDocuments uint64         `json:"index_documents"`
	Languages      map[string]int `json:"languages,omitempty"`
	LastSync       string         `json:"last_sync,omitempty" jsonschema:"RFC3339 time of the last sync"`
	Consistent     bool           `json:"consistent" jsonschema:"true if the index and catalog agree"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
