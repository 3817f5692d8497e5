package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	bderrors "github.com/Aman-CERP/bibdex/internal/errors"
)

// Watcher reports changes to a bibliography file and to the files below a
// paper directory. Changes arrive on Events as debounced batches.
type Watcher struct {
	bibFile  string
	paperDir string
	opts     Options

	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	errors    chan error

	stopOnce sync.Once
	stopErr  error
}

// New creates a watcher. Nothing is watched until Start.
func New(bibFile, paperDir string, opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()

	absBib, err := filepath.Abs(bibFile)
	if err != nil {
		return nil, bderrors.New(bderrors.ErrCodeInvalidPath, "invalid bibliography path", err)
	}
	absPapers, err := filepath.Abs(paperDir)
	if err != nil {
		return nil, bderrors.New(bderrors.ErrCodeInvalidPath, "invalid paper directory", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, bderrors.InternalError("failed to create file watcher", err)
	}

	return &Watcher{
		bibFile:   absBib,
		paperDir:  absPapers,
		opts:      opts,
		fsw:       fsw,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.EventBufferSize),
		errors:    make(chan error, 16),
	}, nil
}

// Start registers the watches and begins forwarding events in the
// background. The watcher stops when ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.paperDir)
	if err != nil || !info.IsDir() {
		return bderrors.New(bderrors.ErrCodeFileNotFound,
			fmt.Sprintf("paper directory not found: %s", w.paperDir), err)
	}
	if err := w.addRecursive(w.paperDir); err != nil {
		return err
	}

	// Editors often replace the file on save, so watch its directory.
	bibDir := filepath.Dir(w.bibFile)
	if err := w.fsw.Add(bibDir); err != nil {
		return bderrors.New(bderrors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot watch %s", bibDir), err)
	}

	slog.Info("watch_started",
		slog.String("bib_file", w.bibFile),
		slog.String("paper_dir", w.paperDir),
		slog.Duration("debounce", w.opts.DebounceWindow))

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.errors)
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				slog.Warn("watch_error_dropped", slog.String("error", err.Error()))
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	var op Operation
	switch {
	case ev.Op.Has(fsnotify.Create):
		op = OpCreate
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && w.underPaperDir(ev.Name) {
			if err := w.addRecursive(ev.Name); err != nil {
				slog.Warn("watch_add_failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			return
		}
	case ev.Op.Has(fsnotify.Write):
		op = OpModify
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		// A rename also produces a CREATE for the new name.
		op = OpDelete
	default:
		return
	}

	if !w.Relevant(ev.Name) {
		return
	}
	w.debouncer.Add(FileEvent{Path: ev.Name, Operation: op, Timestamp: time.Now()})
}

// Relevant reports whether a change to path should trigger a sync.
func (w *Watcher) Relevant(path string) bool {
	if path == w.bibFile {
		return true
	}
	if !w.underPaperDir(path) {
		return false
	}
	return !isScratchFile(filepath.Base(path))
}

func (w *Watcher) underPaperDir(path string) bool {
	rel, err := filepath.Rel(w.paperDir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// isScratchFile matches hidden files plus editor and download leftovers.
func isScratchFile(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".swp", ".swx", ".tmp", ".part", ".crdownload":
		return true
	}
	return false
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, the root must work.
			if path == root {
				return err
			}
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Events returns debounced batches. The channel is closed by Stop.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop releases the watches and closes Events. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		w.stopErr = w.fsw.Close()
		w.debouncer.Stop()
	})
	return w.stopErr
}
