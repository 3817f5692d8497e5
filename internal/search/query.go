// Package search builds field-scoped queries and resolves index hits to
// catalog entries.
package search

import "strings"

// Field is one of the query fields, in fixed enumeration order.
type Field int

const (
	// FieldFullText searches every indexed field.
	FieldFullText Field = iota
	// FieldKey searches the citation key.
	FieldKey
	// FieldAuthor searches author names.
	FieldAuthor
	// FieldTitle searches the title.
	FieldTitle

	// FieldCount is the number of fields.
	FieldCount
)

// Prefix returns the token that scopes a query term to the field. The
// full-text field has none.
func (f Field) Prefix() string {
	switch f {
	case FieldKey:
		return "k"
	case FieldAuthor:
		return "a"
	case FieldTitle:
		return "t"
	default:
		return ""
	}
}

// String returns the field name.
func (f Field) String() string {
	switch f {
	case FieldFullText:
		return "fulltext"
	case FieldKey:
		return "key"
	case FieldAuthor:
		return "author"
	case FieldTitle:
		return "title"
	default:
		return "unknown"
	}
}

// Next returns the following field, wrapping after the last.
func (f Field) Next() Field {
	return (f + 1) % FieldCount
}

// Fields holds one query buffer per field.
type Fields [FieldCount]string

// BuildQuery turns fields into a query string: the full-text buffer verbatim,
// then " prefix:buffer" for every other non-empty field in enumeration order.
func BuildQuery(fields Fields) string {
	var b strings.Builder
	b.WriteString(fields[FieldFullText])
	for f := FieldFullText + 1; f < FieldCount; f++ {
		if fields[f] == "" {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(f.Prefix())
		b.WriteByte(':')
		b.WriteString(fields[f])
	}
	return b.String()
}
