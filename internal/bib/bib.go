// Package bib reads BibTeX bibliographies and resolves the documents
// attached to each entry.
package bib

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nickng/bibtex"

	bderrors "github.com/Aman-CERP/bibdex/internal/errors"
)

// Record is one parsed bibliography entry. Field names are lower case and
// values are the raw field text with the outer delimiters removed.
type Record struct {
	Key    string
	Type   string
	Fields map[string]string
}

// Field returns the named field, or "" when absent.
func (r Record) Field(name string) string {
	return r.Fields[strings.ToLower(name)]
}

// Has reports whether the named field is present.
func (r Record) Has(name string) bool {
	_, ok := r.Fields[strings.ToLower(name)]
	return ok
}

// entryHeader matches the start of an entry such as "@article{".
var entryHeader = regexp.MustCompile(`(?m)^[ \t]*@[ \t]*([A-Za-z]+)[ \t]*[{(]`)

// Parse reads every entry from r in file order. Lines starting with % are
// comments and are ignored. A bibliography that declares entries but
// yields none is reported as a parse error.
func Parse(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, bderrors.New(bderrors.ErrCodeBibParse, "failed to read bibliography", err)
	}
	src := stripComments(string(data))

	parsed, err := bibtex.Parse(strings.NewReader(src))
	if err != nil {
		return nil, bderrors.New(bderrors.ErrCodeBibParse, "failed to parse bibliography", err)
	}

	records := make([]Record, 0, len(parsed.Entries))
	for _, e := range parsed.Entries {
		if e == nil {
			continue
		}
		fields := make(map[string]string, len(e.Fields))
		for name, value := range e.Fields {
			if value == nil {
				continue
			}
			fields[strings.ToLower(name)] = value.String()
		}
		records = append(records, Record{
			Key:    e.CiteName,
			Type:   strings.ToLower(e.Type),
			Fields: fields,
		})
	}

	declared := countEntries(src)
	switch {
	case declared > 0 && len(records) == 0:
		return nil, bderrors.New(bderrors.ErrCodeBibParse, "bibliography declares entries but none could be parsed", nil).
			WithDetail("declared", fmt.Sprint(declared)).
			WithSuggestion("check the bibliography for syntax errors")
	case len(records) < declared:
		slog.Warn("bibliography_entries_dropped",
			slog.Int("declared", declared),
			slog.Int("parsed", len(records)))
	}
	return records, nil
}

// stripComments blanks every line whose first non-blank character is %.
// Blank lines keep line numbers stable for parser errors.
func stripComments(src string) string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "%") {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}

// countEntries counts entry headers, excluding @string, @preamble and
// @comment blocks.
func countEntries(src string) int {
	n := 0
	for _, m := range entryHeader.FindAllStringSubmatch(src, -1) {
		switch strings.ToLower(m[1]) {
		case "string", "preamble", "comment":
		default:
			n++
		}
	}
	return n
}

// ParseFile parses the bibliography at path.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, bderrors.New(bderrors.ErrCodeFileNotFound, "cannot open bibliography", err).
			WithDetail("path", path).
			WithSuggestion("pass --bib-file or set paths.bib_file")
	}
	defer func() { _ = f.Close() }()

	records, err := Parse(f)
	if err != nil {
		if be, ok := err.(*bderrors.BibdexError); ok {
			be.WithDetail("path", path)
		}
		return nil, err
	}
	return records, nil
}

// ResolveFiles splits a colon-separated file field, resolves relative
// paths against baseDir, and keeps the existing readable regular files.
// Order is preserved and duplicates are dropped.
func ResolveFiles(field, baseDir string) []string {
	var files []string
	seen := make(map[string]bool)

	for _, part := range strings.Split(field, ":") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		path := part
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if seen[path] || !isReadableFile(path) {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	return files
}

func isReadableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// Authors converts a BibTeX author list ("A and B") to plain text ("A, B").
func Authors(raw string) string {
	return PlainText(strings.ReplaceAll(raw, " and ", ", "))
}

// String implements fmt.Stringer for log output.
func (r Record) String() string {
	return fmt.Sprintf("@%s{%s}", r.Type, r.Key)
}
