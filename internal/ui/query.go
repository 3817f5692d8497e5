package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/bibdex/internal/search"
	"github.com/Aman-CERP/bibdex/internal/session"
)

// clearScreen moves the cursor home and clears the terminal.
const clearScreen = "\033[H\033[2J"

// QueryView draws interactive query frames.
type QueryView struct {
	out    io.Writer
	styles Styles
	clear  bool
}

// Ensure QueryView implements session.FrameRenderer.
var _ session.FrameRenderer = (*QueryView)(nil)

// NewQueryView creates a view writing to out. The screen is cleared before
// every frame only when out is a terminal.
func NewQueryView(out io.Writer, noColor bool) *QueryView {
	return &QueryView{
		out:    out,
		styles: GetStyles(noColor || DetectNoColor()),
		clear:  IsTTY(out),
	}
}

// Render implements session.FrameRenderer.
func (v *QueryView) Render(f session.Frame) {
	_, _ = io.WriteString(v.out, v.Format(f))
}

// Format returns the frame text: each result's author, quoted title and
// numbered files, then the field line with '#' after the focused field.
func (v *QueryView) Format(f session.Frame) string {
	var b strings.Builder
	if v.clear {
		b.WriteString(clearScreen)
	}

	n := 0
	for _, r := range f.Results {
		b.WriteString("\n")
		b.WriteString(v.styles.Author.Render(r.Entry.Author))
		b.WriteString("\n")
		b.WriteString(v.styles.Title.Render(`"` + r.Entry.Title + `"`))
		b.WriteString("\n")
		for _, path := range r.Entry.Files {
			b.WriteString(v.styles.FileIndex.Render(fmt.Sprint(n)))
			b.WriteString(v.styles.Warning.Render(" -> " + path))
			b.WriteString("\n")
			n++
		}
	}

	if f.Err != nil {
		b.WriteString(v.styles.Error.Render("query error: " + f.Err.Error()))
		b.WriteString("\n")
	}

	for field := search.FieldFullText; field < search.FieldCount; field++ {
		line := fmt.Sprintf(" %s: %s", field.Prefix(), f.Fields[field])
		if field == f.Focus {
			b.WriteString(v.styles.Focus.Render(line + "#"))
		} else {
			b.WriteString(v.styles.Prefix.Render(line))
		}
		b.WriteString(" ")
	}
	b.WriteString(v.styles.Dim.Render(fmt.Sprintf("[limit %d]", f.Limit)))
	b.WriteString("\n")
	return b.String()
}
