package session

import (
	"bufio"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Terminal reads keystrokes and lines from a terminal. Raw mode is held only
// for the duration of a single key read so output between reads behaves
// normally. When in is not a terminal keys are read as they come.
type Terminal struct {
	in     *os.File
	reader *bufio.Reader
}

// Ensure Terminal implements both readers.
var (
	_ KeyReader  = (*Terminal)(nil)
	_ LineReader = (*Terminal)(nil)
)

// NewTerminal wraps in, usually os.Stdin.
func NewTerminal(in *os.File) *Terminal {
	return &Terminal{in: in, reader: bufio.NewReader(in)}
}

// IsTerminal reports whether the input is an interactive terminal.
func (t *Terminal) IsTerminal() bool {
	return term.IsTerminal(int(t.in.Fd()))
}

// ReadKey implements KeyReader.
func (t *Terminal) ReadKey() (rune, error) {
	fd := int(t.in.Fd())
	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return 0, err
		}
		defer func() { _ = term.Restore(fd, old) }()
	}

	r, _, err := t.reader.ReadRune()
	return r, err
}

// ReadLine implements LineReader.
func (t *Terminal) ReadLine() (string, error) {
	line, err := t.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
