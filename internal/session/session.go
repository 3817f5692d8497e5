// Package session implements the interactive query loop: keystrokes edit
// field-scoped query buffers, every edit re-runs the query and redraws, and
// a commit moves on to choosing a file to open.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Aman-CERP/bibdex/internal/search"
)

// DefaultLimit is the initial number of results shown.
const DefaultLimit = 10

// Control keys.
const (
	KeyInterrupt = 0x03
	KeyEOT       = 0x04
	KeyBackspace = 0x08
	KeyTab       = 0x09
	KeyFormFeed  = 0x0C
	KeyEnter     = 0x0D
	KeyEscape    = 0x1B
	KeyDelete    = 0x7F
)

// State is the session's position in its state machine.
type State int

const (
	// StateEditing reads keystrokes and re-queries.
	StateEditing State = iota
	// StateSelecting prompts for a file number.
	StateSelecting
	// StateDone opened a file.
	StateDone
	// StateCancelled was ended by the user.
	StateCancelled
	// StateFailed had nothing to select.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateSelecting:
		return "selecting"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// KeyReader returns one keystroke per call and io.EOF at end of input.
type KeyReader interface {
	ReadKey() (rune, error)
}

// LineReader returns one line of input without its newline.
type LineReader interface {
	ReadLine() (string, error)
}

// FrameRenderer draws a frame.
type FrameRenderer interface {
	Render(Frame)
}

// Opener hands a file to a viewer.
type Opener interface {
	Open(path string) error
}

// Recorder is told about every file the user opens.
type Recorder interface {
	Record(ctx context.Context, entryID, path, query string) error
}

// Selection is one openable file in the current results.
type Selection struct {
	EntryID string
	Path    string
}

// Frame is everything a renderer needs to draw the screen.
type Frame struct {
	Results []search.Result
	Fields  search.Fields
	Focus   search.Field
	Limit   int
	// Err is set when the last query could not be run.
	Err error
}

// Config wires a Session to its collaborators.
type Config struct {
	Searcher search.Searcher
	Keys     KeyReader
	Lines    LineReader
	Renderer FrameRenderer
	Opener   Opener
	// Recorder is optional.
	Recorder Recorder
	// Out receives the selection prompts.
	Out io.Writer
	// Limit is the initial result limit; values below 1 use DefaultLimit.
	Limit int
}

// Session is single-threaded: each key is fully handled, including the
// query and redraw, before the next one is read.
type Session struct {
	cfg        Config
	fields     search.Fields
	focus      search.Field
	limit      int
	results    []search.Result
	selections []Selection
	queryErr   error
	state      State
}

// New creates a session in StateEditing.
func New(cfg Config) (*Session, error) {
	switch {
	case cfg.Searcher == nil:
		return nil, fmt.Errorf("searcher is required")
	case cfg.Keys == nil:
		return nil, fmt.Errorf("key reader is required")
	case cfg.Lines == nil:
		return nil, fmt.Errorf("line reader is required")
	case cfg.Renderer == nil:
		return nil, fmt.Errorf("renderer is required")
	case cfg.Opener == nil:
		return nil, fmt.Errorf("opener is required")
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}

	limit := cfg.Limit
	if limit < 1 {
		limit = DefaultLimit
	}

	return &Session{
		cfg:   cfg,
		focus: search.FieldFullText,
		limit: limit,
		state: StateEditing,
	}, nil
}

// Run drives the session to a terminal state. The returned error is only
// set for input failures other than end of input.
func (s *Session) Run(ctx context.Context) (State, error) {
	for s.state == StateEditing {
		key, err := s.cfg.Keys.ReadKey()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.state = StateCancelled
				break
			}
			return s.state, fmt.Errorf("failed to read key: %w", err)
		}
		s.HandleKey(ctx, key)
	}

	if s.state != StateSelecting {
		return s.state, nil
	}
	return s.state, s.selectFile(ctx)
}

// HandleKey applies one keystroke. State changes re-run the query and redraw.
func (s *Session) HandleKey(ctx context.Context, key rune) {
	if s.state != StateEditing {
		return
	}

	switch key {
	case KeyEOT, KeyEscape, KeyInterrupt:
		s.state = StateCancelled
		return
	case KeyTab:
		s.focus = s.focus.Next()
	case KeyEnter, KeyFormFeed:
		s.state = StateSelecting
		return
	case KeyBackspace, KeyDelete:
		buf := s.fields[s.focus]
		if buf == "" {
			return
		}
		_, size := utf8.DecodeLastRuneInString(buf)
		s.fields[s.focus] = buf[:len(buf)-size]
	case '+':
		s.limit++
	case '-':
		if s.limit <= 1 {
			return
		}
		s.limit--
	default:
		if !unicode.IsPrint(key) {
			return
		}
		s.fields[s.focus] += string(key)
	}

	s.refresh(ctx)
}

// refresh re-runs the query and redraws.
func (s *Session) refresh(ctx context.Context) {
	query := search.BuildQuery(s.fields)
	results, err := s.cfg.Searcher.Search(ctx, query, s.limit)
	if err != nil {
		slog.Debug("query_failed", slog.String("query", query), slog.String("error", err.Error()))
		results = nil
	}
	s.results = results
	s.queryErr = err

	s.selections = s.selections[:0]
	for _, r := range results {
		for _, path := range r.Entry.Files {
			s.selections = append(s.selections, Selection{EntryID: r.Entry.ID, Path: path})
		}
	}

	s.cfg.Renderer.Render(s.Frame())
}

func (s *Session) selectFile(ctx context.Context) error {
	out := s.cfg.Out

	if len(s.selections) == 0 {
		_, _ = fmt.Fprintln(out, "no matches!")
		s.state = StateFailed
		return nil
	}

	last := len(s.selections) - 1
	num := -1
	for num < 0 || num > last {
		_, _ = fmt.Fprintf(out, "\nenter paper number: [0-%d] ", last)
		line, err := s.cfg.Lines.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.state = StateCancelled
				return nil
			}
			return fmt.Errorf("failed to read selection: %w", err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			_, _ = fmt.Fprintln(out, "Invalid input. Please enter an integer.")
			continue
		}
		num = n
	}

	sel := s.selections[num]
	if err := s.cfg.Opener.Open(sel.Path); err != nil {
		slog.Warn("open_failed", slog.String("path", sel.Path), slog.String("error", err.Error()))
		_, _ = fmt.Fprintf(out, "failed to open %s: %v\n", sel.Path, err)
	}
	if s.cfg.Recorder != nil {
		if err := s.cfg.Recorder.Record(ctx, sel.EntryID, sel.Path, search.BuildQuery(s.fields)); err != nil {
			slog.Warn("history_record_failed", slog.String("error", err.Error()))
		}
	}

	slog.Info("paper_opened", slog.String("id", sel.EntryID), slog.String("path", sel.Path))
	s.state = StateDone
	return nil
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Fields returns a copy of the query buffers.
func (s *Session) Fields() search.Fields { return s.fields }

// Focus returns the focused field.
func (s *Session) Focus() search.Field { return s.focus }

// Limit returns the result limit.
func (s *Session) Limit() int { return s.limit }

// Selections returns the openable files of the last query, in index order.
func (s *Session) Selections() []Selection {
	return append([]Selection(nil), s.selections...)
}

// Frame returns the current screen contents.
func (s *Session) Frame() Frame {
	return Frame{
		Results: s.results,
		Fields:  s.fields,
		Focus:   s.focus,
		Limit:   s.limit,
		Err:     s.queryErr,
	}
}
