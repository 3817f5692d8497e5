// Package output formats the one-shot CLI commands' human-readable output.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Writer prints status lines and aligned key/value blocks.
type Writer struct {
	out     io.Writer
	label   lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
}

// New creates a Writer. With noColor every style renders plain text.
func New(out io.Writer, noColor bool) *Writer {
	w := &Writer{
		out:     out,
		label:   lipgloss.NewStyle(),
		success: lipgloss.NewStyle(),
		warn:    lipgloss.NewStyle(),
		err:     lipgloss.NewStyle(),
	}
	if !noColor {
		w.label = w.label.Foreground(lipgloss.Color("245"))
		w.success = w.success.Foreground(lipgloss.Color("154"))
		w.warn = w.warn.Foreground(lipgloss.Color("220"))
		w.err = w.err.Foreground(lipgloss.Color("196"))
	}
	return w
}

// Status prints msg after icon, or indented when icon is empty.
// Write errors are ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "  %s\n", msg)
	}
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

func (w *Writer) Success(msg string) { w.Status(w.success.Render("✓"), msg) }

func (w *Writer) Successf(format string, args ...any) { w.Success(fmt.Sprintf(format, args...)) }

func (w *Writer) Warning(msg string) { w.Status(w.warn.Render("!"), msg) }

func (w *Writer) Warningf(format string, args ...any) { w.Warning(fmt.Sprintf(format, args...)) }

func (w *Writer) Error(msg string) { w.Status(w.err.Render("✗"), msg) }

func (w *Writer) Errorf(format string, args ...any) { w.Error(fmt.Sprintf(format, args...)) }

// KV is one row of a key/value block.
type KV struct {
	Key   string
	Value string
}

// KeyValues prints rows with keys padded to the widest key.
func (w *Writer) KeyValues(rows []KV) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Key))
	}
	for _, r := range rows {
		key := r.Key + ":" + strings.Repeat(" ", width-len(r.Key))
		_, _ = fmt.Fprintf(w.out, "  %s %s\n", w.label.Render(key), r.Value)
	}
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
