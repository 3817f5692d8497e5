// Package index synchronizes the search index with a BibTeX bibliography.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/bibdex/internal/bib"
	"github.com/Aman-CERP/bibdex/internal/config"
	bderrors "github.com/Aman-CERP/bibdex/internal/errors"
	"github.com/Aman-CERP/bibdex/internal/extract"
	"github.com/Aman-CERP/bibdex/internal/store"
	"github.com/Aman-CERP/bibdex/internal/ui"
)

// RunConfig configures one sync run.
type RunConfig struct {
	// BibFile is the bibliography to index.
	BibFile string

	// PaperDir resolves relative file paths.
	PaperDir string

	// Force re-indexes every entry regardless of checksums.
	Force bool

	// DryRun computes and reports the plan without touching the index or state.
	DryRun bool
}

// RunResult is the outcome of a sync run.
type RunResult struct {
	// Entries is the number of distinct bibliography entries.
	Entries int

	// Indexed is the number of documents submitted to the index.
	Indexed int

	// Unchanged is the number of entries left as they were.
	Unchanged int

	// Removed is the number of catalog entries gone from the bibliography.
	Removed int

	// Skipped is the number of unindexable entries, including extraction failures.
	Skipped int

	// Orphans is the number of stray index documents deleted.
	Orphans int

	// Warnings counts non-fatal problems.
	Warnings int

	// Duration is the total run time.
	Duration time.Duration

	// DryRun is set when nothing was written.
	DryRun bool

	// Plan is the change detection outcome.
	Plan *Plan
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Renderer for progress display (required).
	Renderer ui.Renderer

	// Config supplies worker count and language filter (required).
	Config *config.Config

	// Index is the writable search index (required).
	Index store.SearchIndex

	// State is the loaded catalog and checksum store (required).
	State *store.State

	// Extractor turns files into page text. Defaults to extract.Default().
	Extractor extract.Extractor
}

// Runner executes sync runs. It is not safe for concurrent use; callers
// hold the data directory's writer lock.
type Runner struct {
	renderer  ui.Renderer
	config    *config.Config
	index     store.SearchIndex
	state     *store.State
	extractor extract.Extractor
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("search index is required")
	}
	if deps.State == nil {
		return nil, fmt.Errorf("state is required")
	}

	extractor := deps.Extractor
	if extractor == nil {
		extractor = extract.Default()
	}

	return &Runner{
		renderer:  deps.Renderer,
		config:    deps.Config,
		index:     deps.Index,
		state:     deps.State,
		extractor: extractor,
	}, nil
}

// Run brings the index and state in line with the bibliography. Stale
// documents are deleted before changed entries are re-indexed, and state is
// saved only after every entry was processed. A cancelled run saves nothing.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{DryRun: cfg.DryRun}

	slog.Info("sync_started",
		slog.String("bib_file", cfg.BibFile),
		slog.String("paper_dir", cfg.PaperDir),
		slog.Bool("force", cfg.Force),
		slog.Bool("dry_run", cfg.DryRun))

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageParsing,
		Message: "reading " + cfg.BibFile,
	})
	records, err := bib.ParseFile(cfg.BibFile)
	if err != nil {
		return nil, err
	}

	// Catalog entries without a document lose their checksums so detection
	// treats them as changed.
	check, err := CheckConsistency(ctx, r.index, r.state.Catalog)
	if err != nil {
		return nil, bderrors.New(bderrors.ErrCodeIndexFailed, "failed to read index", err)
	}
	for _, id := range check.Missing {
		delete(r.state.Checksums, id)
	}

	plan, err := r.detect(ctx, records, cfg)
	if err != nil {
		return nil, err
	}
	result.Plan = plan
	result.Entries = plan.Entries()
	result.Unchanged = len(plan.Unchanged)
	result.Removed = len(plan.Removed)
	result.Skipped = len(plan.Skipped)
	result.Warnings = r.reportPlanWarnings(plan)

	if cfg.DryRun {
		r.reportDryRun(plan)
		result.Indexed = len(plan.Changed)
		result.Orphans = len(check.Orphans)
		return r.complete(result, start), nil
	}

	if err := r.unindex(ctx, plan); err != nil {
		return nil, err
	}

	for _, c := range plan.Unchanged {
		r.state.Catalog[c.Entry.ID] = c.Entry
		r.state.Checksums[c.Entry.ID] = c.Checksums
	}

	indexed, failed, err := r.reindex(ctx, plan.Changed)
	if err != nil {
		return nil, err
	}
	result.Indexed = indexed
	result.Skipped += failed
	result.Warnings += failed

	orphans, err := r.removeOrphans(ctx)
	if err != nil {
		return nil, err
	}
	result.Orphans = orphans

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageSaving,
		Message: "writing catalog to " + r.state.Dir,
	})
	if err := r.state.Save(); err != nil {
		return nil, err
	}

	return r.complete(result, start), nil
}

func (r *Runner) detect(ctx context.Context, records []bib.Record, cfg RunConfig) (*Plan, error) {
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageHashing,
		Total:   len(records),
		Message: fmt.Sprintf("checking %d entries", len(records)),
	})

	d := &Detector{
		PaperDir:  cfg.PaperDir,
		Languages: r.config.Sync.Languages,
		Workers:   r.config.Sync.Workers,
		Force:     cfg.Force,
		Progress: func(done, total int, id string) {
			r.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageHashing,
				Current: done,
				Total:   total,
				Entry:   id,
			})
		},
	}

	plan, err := d.Detect(ctx, records, r.state)
	if err != nil {
		return nil, err
	}

	slog.Info("sync_plan",
		slog.Int("changed", len(plan.Changed)),
		slog.Int("unchanged", len(plan.Unchanged)),
		slog.Int("removed", len(plan.Removed)),
		slog.Int("skipped", len(plan.Skipped)))
	return plan, nil
}

func (r *Runner) reportPlanWarnings(plan *Plan) int {
	for _, id := range plan.Duplicates {
		slog.Warn("duplicate_entry", slog.String("id", id))
		r.renderer.AddError(ui.ErrorEvent{
			Entry:  id,
			Err:    fmt.Errorf("duplicate key, last occurrence wins"),
			IsWarn: true,
		})
	}
	for _, df := range plan.Dropped {
		slog.Warn("file_dropped",
			slog.String("id", df.ID),
			slog.String("path", df.Path),
			slog.String("error", df.Err.Error()))
		r.renderer.AddError(ui.ErrorEvent{
			Entry:  df.ID,
			Err:    fmt.Errorf("dropped %s: %w", df.Path, df.Err),
			IsWarn: true,
		})
	}
	return len(plan.Duplicates) + len(plan.Dropped)
}

func (r *Runner) reportDryRun(plan *Plan) {
	for _, id := range plan.Removed {
		r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageRemoving, Entry: id, Message: "would delete " + id})
	}
	for _, s := range plan.Skipped {
		r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageRemoving, Entry: s.ID, Message: skipMessage(s)})
	}
	for _, c := range plan.Changed {
		r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Entry: c.Entry.ID, Message: "would index " + c.Entry.ID})
	}
}

// unindex deletes removed and skipped entries from the index and the state.
func (r *Runner) unindex(ctx context.Context, plan *Plan) error {
	ids := plan.Unindex()
	if len(ids) == 0 {
		return nil
	}

	if err := r.index.Delete(ctx, ids); err != nil {
		return bderrors.New(bderrors.ErrCodeIndexFailed, "failed to delete documents", err)
	}

	total := len(ids)
	for i, id := range plan.Removed {
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageRemoving,
			Current: i + 1,
			Total:   total,
			Entry:   id,
			Message: "deleting " + id,
		})
		r.state.Forget(id)
	}
	for i, s := range plan.Skipped {
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageRemoving,
			Current: len(plan.Removed) + i + 1,
			Total:   total,
			Entry:   s.ID,
			Message: skipMessage(s),
		})
		slog.Info("entry_skipped", slog.String("id", s.ID), slog.String("reason", s.Reason))
		r.state.Forget(s.ID)
	}
	return nil
}

// reindex extracts and submits every changed entry. An entry whose files
// cannot be extracted is removed from the index and forgotten so the next
// run retries it.
func (r *Runner) reindex(ctx context.Context, changed []Candidate) (indexed, failed int, err error) {
	for i, c := range changed {
		if err := ctx.Err(); err != nil {
			return indexed, failed, err
		}

		id := c.Entry.ID
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageIndexing,
			Current: i + 1,
			Total:   len(changed),
			Entry:   id,
			Message: "indexing " + id,
		})

		entryStart := time.Now()
		doc, err := r.buildDocument(ctx, c.Entry)
		if err != nil {
			if ctx.Err() != nil {
				return indexed, failed, ctx.Err()
			}
			failed++
			slog.Warn("entry_skipped",
				slog.String("id", id),
				slog.String("reason", ReasonExtractFailed),
				slog.String("error", err.Error()))
			r.renderer.AddError(ui.ErrorEvent{Entry: id, Err: err, IsWarn: true})

			if err := r.index.Delete(ctx, []string{id}); err != nil {
				return indexed, failed, bderrors.New(bderrors.ErrCodeIndexFailed, "failed to delete document", err).
					WithDetail("id", id)
			}
			r.state.Forget(id)
			continue
		}

		if err := r.index.Replace(ctx, doc); err != nil {
			return indexed, failed, err
		}
		r.state.Catalog[id] = c.Entry
		r.state.Checksums[id] = c.Checksums
		indexed++

		slog.Debug("entry_indexed",
			slog.String("id", id),
			slog.Int("files", len(c.Entry.Files)),
			slog.Int64("duration_ms", time.Since(entryStart).Milliseconds()))
	}
	return indexed, failed, nil
}

// buildDocument extracts every file of e. Pages of one file are joined;
// each file becomes its own body element.
func (r *Runner) buildDocument(ctx context.Context, e *store.Entry) (*store.IndexDocument, error) {
	doc := &store.IndexDocument{
		ID:     e.ID,
		Key:    e.ID,
		Author: e.Author,
		Title:  e.Title,
		Body:   make([]string, 0, len(e.Files)),
	}
	for _, path := range e.Files {
		pages, err := extract.Document(ctx, r.extractor, path)
		if err != nil {
			return nil, bderrors.New(bderrors.ErrCodeExtractFailed, "failed to extract text", err).
				WithDetail("path", path)
		}
		doc.Body = append(doc.Body, strings.Join(pages, "\n"))
	}
	return doc, nil
}

// removeOrphans deletes index documents that have no catalog entry.
func (r *Runner) removeOrphans(ctx context.Context) (int, error) {
	check, err := CheckConsistency(ctx, r.index, r.state.Catalog)
	if err != nil {
		return 0, bderrors.New(bderrors.ErrCodeIndexFailed, "failed to read index", err)
	}
	if len(check.Orphans) == 0 {
		return 0, nil
	}
	if err := r.index.Delete(ctx, check.Orphans); err != nil {
		return 0, bderrors.New(bderrors.ErrCodeIndexFailed, "failed to delete orphaned documents", err)
	}
	slog.Info("orphans_removed", slog.Int("count", len(check.Orphans)))
	return len(check.Orphans), nil
}

func (r *Runner) complete(result *RunResult, start time.Time) *RunResult {
	result.Duration = time.Since(start)

	r.renderer.Complete(ui.CompletionStats{
		Entries:   result.Entries,
		Indexed:   result.Indexed,
		Unchanged: result.Unchanged,
		Removed:   result.Removed,
		Skipped:   result.Skipped,
		Orphans:   result.Orphans,
		Duration:  result.Duration,
		Warnings:  result.Warnings,
		DryRun:    result.DryRun,
	})

	slog.Info("sync_complete",
		slog.Int("entries", result.Entries),
		slog.Int("indexed", result.Indexed),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("removed", result.Removed),
		slog.Int("skipped", result.Skipped),
		slog.Int("orphans", result.Orphans),
		slog.Bool("dry_run", result.DryRun),
		slog.Int64("duration_ms", result.Duration.Milliseconds()))
	return result
}

func skipMessage(s Skip) string {
	return fmt.Sprintf("skipping %s : %s", s.ID, s.Reason)
}
