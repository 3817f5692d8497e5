package index

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/bibdex/internal/bib"
	"github.com/Aman-CERP/bibdex/internal/store"
)

// Reasons an entry is not indexed.
const (
	ReasonNoFiles         = "has no files"
	ReasonUnknownLanguage = "unknown language"
	ReasonNoReadableFiles = "has no readable files"
	ReasonExtractFailed   = "extraction failed"
)

// Skip is an entry that is present in the bibliography but cannot be
// indexed. A skipped entry is removed from the index if it was there.
type Skip struct {
	ID     string
	Reason string
}

// Candidate is an indexable entry with freshly computed checksums.
type Candidate struct {
	Entry     *store.Entry
	Checksums store.ChecksumMap
}

// DroppedFile is a resolved file that could not be hashed.
type DroppedFile struct {
	ID   string
	Path string
	Err  error
}

// Plan is the outcome of change detection. Nothing has been mutated yet
// when a Plan is returned.
type Plan struct {
	// Removed are catalog IDs missing from the bibliography, sorted.
	Removed []string
	// Skipped are unindexable entries in bibliography order.
	Skipped []Skip
	// Changed are new entries and entries whose files or metadata changed.
	Changed []Candidate
	// Unchanged are entries whose checksums and metadata match the catalog.
	Unchanged []Candidate
	// Duplicates are IDs that occur more than once; the last occurrence wins.
	Duplicates []string
	// Dropped are files that vanished or became unreadable before hashing.
	Dropped []DroppedFile
}

// Entries returns the number of distinct entries in the bibliography.
func (p *Plan) Entries() int {
	return len(p.Skipped) + len(p.Changed) + len(p.Unchanged)
}

// Unindex returns every ID whose document must be deleted from the index.
func (p *Plan) Unindex() []string {
	ids := make([]string, 0, len(p.Removed)+len(p.Skipped))
	ids = append(ids, p.Removed...)
	for _, s := range p.Skipped {
		ids = append(ids, s.ID)
	}
	return ids
}

// Detector classifies bibliography entries against the persisted state.
type Detector struct {
	// PaperDir resolves relative file paths.
	PaperDir string
	// Languages lists accepted lang values. Entries without a lang field
	// are always accepted; an empty list accepts everything.
	Languages []string
	// Workers bounds parallel hashing. Values below 1 mean 1.
	Workers int
	// Force marks every indexable entry as changed.
	Force bool
	// Progress, when set, is called after each entry is hashed. It may be
	// called from several goroutines.
	Progress func(done, total int, id string)
}

// Detect compares records with state. The state is only read.
func (d *Detector) Detect(ctx context.Context, records []bib.Record, state *store.State) (*Plan, error) {
	plan := &Plan{}

	order, byID := d.dedupe(records, plan)

	for id := range state.Catalog {
		if _, ok := byID[id]; !ok {
			plan.Removed = append(plan.Removed, id)
		}
	}
	slices.Sort(plan.Removed)

	pending := make([]*store.Entry, 0, len(order))
	for _, id := range order {
		rec := byID[id]
		entry, reason := d.resolve(rec)
		if reason != "" {
			plan.Skipped = append(plan.Skipped, Skip{ID: id, Reason: reason})
			continue
		}
		pending = append(pending, entry)
	}

	sums, err := d.hashAll(ctx, pending, plan)
	if err != nil {
		return nil, err
	}

	for i, entry := range pending {
		if len(sums[i]) == 0 {
			plan.Skipped = append(plan.Skipped, Skip{ID: entry.ID, Reason: ReasonNoReadableFiles})
			continue
		}
		c := Candidate{Entry: entry, Checksums: sums[i]}
		if !d.Force && sums[i].Equal(state.Checksums[entry.ID]) && entry.SameMetadata(state.Catalog[entry.ID]) {
			plan.Unchanged = append(plan.Unchanged, c)
		} else {
			plan.Changed = append(plan.Changed, c)
		}
	}

	return plan, nil
}

// dedupe keeps the first position and the last content of each key.
func (d *Detector) dedupe(records []bib.Record, plan *Plan) ([]string, map[string]bib.Record) {
	order := make([]string, 0, len(records))
	byID := make(map[string]bib.Record, len(records))

	for _, rec := range records {
		if rec.Key == "" {
			slog.Warn("entry_without_key", slog.String("type", rec.Type))
			continue
		}
		if _, seen := byID[rec.Key]; seen {
			if !slices.Contains(plan.Duplicates, rec.Key) {
				plan.Duplicates = append(plan.Duplicates, rec.Key)
			}
		} else {
			order = append(order, rec.Key)
		}
		byID[rec.Key] = rec
	}
	return order, byID
}

func (d *Detector) resolve(rec bib.Record) (*store.Entry, string) {
	if !rec.Has("file") {
		return nil, ReasonNoFiles
	}
	lang := strings.TrimSpace(rec.Field("lang"))
	if !d.acceptsLanguage(lang) {
		return nil, ReasonUnknownLanguage
	}
	files := bib.ResolveFiles(rec.Field("file"), d.PaperDir)
	if len(files) == 0 {
		return nil, ReasonNoReadableFiles
	}
	return &store.Entry{
		ID:     rec.Key,
		Author: bib.Authors(rec.Field("author")),
		Title:  bib.PlainText(rec.Field("title")),
		Files:  files,
		Lang:   lang,
	}, ""
}

func (d *Detector) acceptsLanguage(lang string) bool {
	if lang == "" || len(d.Languages) == 0 {
		return true
	}
	for _, l := range d.Languages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

// hashAll computes checksums for every pending entry in parallel. Files that
// fail to hash are removed from their entry and recorded in plan.Dropped.
func (d *Detector) hashAll(ctx context.Context, pending []*store.Entry, plan *Plan) ([]store.ChecksumMap, error) {
	sums := make([]store.ChecksumMap, len(pending))
	dropped := make([][]DroppedFile, len(pending))

	workers := d.Workers
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var done atomic.Int64
	for i, entry := range pending {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum := make(store.ChecksumMap, len(entry.Files))
			kept := entry.Files[:0:0]
			for _, path := range entry.Files {
				hash, err := store.HashFile(path)
				if err != nil {
					dropped[i] = append(dropped[i], DroppedFile{ID: entry.ID, Path: path, Err: err})
					continue
				}
				sum[path] = hash
				kept = append(kept, path)
			}
			entry.Files = kept
			sums[i] = sum

			if d.Progress != nil {
				d.Progress(int(done.Add(1)), len(pending), entry.ID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, df := range dropped {
		plan.Dropped = append(plan.Dropped, df...)
	}
	return sums, nil
}
