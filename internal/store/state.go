package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	bderrors "github.com/Aman-CERP/bibdex/internal/errors"
)

// Files inside the data directory.
const (
	CatalogFile   = "catalog.gob"
	ChecksumFile  = "checksums.gob"
	IndexDir      = "index.bleve"
	LockFile      = ".bibdex.lock"
	HistoryFile   = "history.db"
	formatVersion = 1
)

// State is the catalog and checksum store for one data directory.
// It is loaded once, mutated in place by a sync run, and saved once.
type State struct {
	Dir       string
	Catalog   Catalog
	Checksums ChecksumStore
}

type catalogFile struct {
	Version int
	Entries Catalog
}

type checksumFile struct {
	Version int
	Sums    ChecksumStore
}

// NewState returns empty state for dir.
func NewState(dir string) *State {
	return &State{Dir: dir, Catalog: Catalog{}, Checksums: ChecksumStore{}}
}

// LoadState reads the catalog and checksum files from dir. A missing,
// unreadable or corrupt file yields an empty map; corruption is logged.
func LoadState(dir string) *State {
	s := NewState(dir)

	var cf catalogFile
	if loadGob(filepath.Join(dir, CatalogFile), &cf) && cf.Entries != nil {
		s.Catalog = cf.Entries
	}

	var sf checksumFile
	if loadGob(filepath.Join(dir, ChecksumFile), &sf) && sf.Sums != nil {
		s.Checksums = sf.Sums
	}

	return s
}

func loadGob(path string, v interface{ version() int }) bool {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false
	}
	if err != nil {
		slog.Warn("state_load_failed", slog.String("path", path), slog.String("error", err.Error()))
		return false
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		slog.Warn("state_load_failed", slog.String("path", path), slog.String("error", err.Error()))
		return false
	}
	if v.version() != formatVersion {
		slog.Warn("state_version_mismatch", slog.String("path", path), slog.Int("version", v.version()))
		return false
	}
	return true
}

func (c *catalogFile) version() int  { return c.Version }
func (c *checksumFile) version() int { return c.Version }

// Forget drops id from the catalog and checksum store.
func (s *State) Forget(id string) {
	delete(s.Catalog, id)
	delete(s.Checksums, id)
}

// Save writes both files. Each is first written to a temp file in the data
// directory; the renames happen only after both temp files are complete.
func (s *State) Save() error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return bderrors.New(bderrors.ErrCodeStateWrite, "failed to create data directory", err).
			WithDetail("path", s.Dir)
	}

	catTmp, err := writeTemp(s.Dir, CatalogFile, &catalogFile{Version: formatVersion, Entries: s.Catalog})
	if err != nil {
		return err
	}
	sumTmp, err := writeTemp(s.Dir, ChecksumFile, &checksumFile{Version: formatVersion, Sums: s.Checksums})
	if err != nil {
		_ = os.Remove(catTmp)
		return err
	}

	if err := os.Rename(catTmp, filepath.Join(s.Dir, CatalogFile)); err != nil {
		_ = os.Remove(catTmp)
		_ = os.Remove(sumTmp)
		return bderrors.New(bderrors.ErrCodeStateWrite, "failed to replace catalog", err)
	}
	if err := os.Rename(sumTmp, filepath.Join(s.Dir, ChecksumFile)); err != nil {
		_ = os.Remove(sumTmp)
		return bderrors.New(bderrors.ErrCodeStateWrite, "failed to replace checksums", err)
	}
	return nil
}

func writeTemp(dir, name string, v any) (string, error) {
	f, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", bderrors.New(bderrors.ErrCodeStateWrite, "failed to create temp file", err).
			WithDetail("file", name)
	}
	tmp := f.Name()

	if err := gob.NewEncoder(f).Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", bderrors.New(bderrors.ErrCodeStateWrite, "failed to encode "+name, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", bderrors.New(bderrors.ErrCodeStateWrite, "failed to sync "+name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", bderrors.New(bderrors.ErrCodeStateWrite, "failed to close "+name, err)
	}
	return tmp, nil
}

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
