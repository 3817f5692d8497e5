package ui

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bibdex/internal/search"
	"github.com/Aman-CERP/bibdex/internal/session"
	"github.com/Aman-CERP/bibdex/internal/store"
)

func TestStage_StringAndIcon(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
		icon  string
	}{
		{StageParsing, "Parsing", "PARSE"},
		{StageHashing, "Hashing", "HASH"},
		{StageRemoving, "Removing", "DEL"},
		{StageIndexing, "Indexing", "INDEX"},
		{StageSaving, "Saving", "SAVE"},
		{StageComplete, "Complete", "DONE"},
		{Stage(99), "Unknown", "???"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.stage.String())
		assert.Equal(t, tt.icon, tt.stage.Icon())
	}
}

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	// Given: a buffer, which is never a terminal
	buf := &bytes.Buffer{}

	// When: creating a renderer
	r := NewRenderer(NewConfig(buf))

	// Then: the plain renderer is chosen
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewRenderer_ForcePlain(t *testing.T) {
	r := NewRenderer(NewConfig(os.Stdout, WithForcePlain(true), WithNoColor(true), WithBibFile("paper.bib")))

	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewTUIRenderer_RejectsNonTTY(t *testing.T) {
	_, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))
	assert.Error(t, err)
}

func TestIsTTY_NonFileWriter(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, IsTTY(nil))
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	assert.True(t, DetectNoColor())
}

func TestPlainRenderer_ProgressFormat(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))
	require.NoError(t, r.Start(context.Background()))

	// When: reporting progress with and without totals
	r.UpdateProgress(ProgressEvent{Stage: StageIndexing, Current: 2, Total: 5, Entry: "A1", Message: "indexing A1"})
	r.UpdateProgress(ProgressEvent{Stage: StageRemoving, Message: "deleting B2"})
	r.UpdateProgress(ProgressEvent{Stage: StageHashing, Current: 1, Total: 3, Entry: "C3"})
	r.UpdateProgress(ProgressEvent{Stage: StageHashing})

	// Then
	assert.Equal(t,
		"[INDEX] 2/5 - indexing A1\n"+
			"[DEL] deleting B2\n"+
			"[HASH] 1/3 - C3\n",
		buf.String())
	assert.NoError(t, r.Stop())
}

func TestPlainRenderer_Errors(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.AddError(ErrorEvent{Entry: "A1", Err: errors.New("broken"), IsWarn: true})
	r.AddError(ErrorEvent{Err: errors.New("disk full")})

	assert.Equal(t, "WARN: A1: broken\nERROR: disk full\n", buf.String())
}

func TestPlainRenderer_CompleteNoANSI(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.Complete(CompletionStats{
		Entries: 4, Indexed: 1, Unchanged: 2, Removed: 1, Skipped: 1, Orphans: 2,
		Duration: 1500 * time.Millisecond, Warnings: 1,
	})

	out := buf.String()
	assert.Contains(t, out, "Complete: 4 entries, 1 indexed, 2 unchanged, 1 removed, 1 skipped in 1.5s")
	assert.Contains(t, out, "(0 errors, 1 warnings)")
	assert.Contains(t, out, "Repaired 2 orphaned index documents")
	assert.NotContains(t, out, "\x1b[")
}

func TestPlainRenderer_DryRun(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.Complete(CompletionStats{Entries: 1, Indexed: 1, DryRun: true})

	assert.Contains(t, buf.String(), "Dry run: 1 entries, 1 indexed")
}

func TestProgressTracker(t *testing.T) {
	// Given: a tracker in the indexing stage
	p := NewProgressTracker()
	assert.Equal(t, StageParsing, p.Stats().Stage)
	p.SetStage(StageIndexing, 4)

	// When: progressing
	p.Update(1, "A1")
	p.Update(2, "")
	p.AddError(ErrorEvent{IsWarn: true})
	p.AddError(ErrorEvent{})

	// Then
	stats := p.Stats()
	assert.Equal(t, StageIndexing, stats.Stage)
	assert.Equal(t, 2, stats.Current)
	assert.InDelta(t, 0.5, stats.Progress, 0.001)
	assert.Equal(t, "A1", stats.Entry)
	assert.Equal(t, 1, stats.WarnCount)
	assert.Equal(t, 1, stats.ErrorCount)

	// And: a stage change resets counters
	p.SetStage(StageSaving, 0)
	stats = p.Stats()
	assert.Equal(t, 0, stats.Current)
	assert.Zero(t, stats.Progress)
	assert.Zero(t, stats.ETA)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m", formatDuration(2*time.Minute))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 1m", formatDuration(61*time.Minute))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "...6789", truncate("0123456789", 7))
	assert.Equal(t, "...", truncate("0123456789", 2))
}

func TestQueryView_Format(t *testing.T) {
	// Given: a frame with two results and the author field focused
	v := NewQueryView(&bytes.Buffer{}, true)
	frame := session.Frame{
		Results: []search.Result{
			{Entry: &store.Entry{ID: "A1", Author: "X, Y", Title: "Foo", Files: []string{"/p/a.pdf", "/p/b.pdf"}}},
			{Entry: &store.Entry{ID: "B2", Author: "Z", Title: "Bar", Files: []string{"/p/c.pdf"}}},
		},
		Fields: search.Fields{search.FieldFullText: "neural", search.FieldAuthor: "turing"},
		Focus:  search.FieldAuthor,
		Limit:  10,
	}

	// When: formatting
	out := v.Format(frame)

	// Then: files are numbered across entries and the focus is marked
	assert.Equal(t,
		"\nX, Y\n\"Foo\"\n0 -> /p/a.pdf\n1 -> /p/b.pdf\n"+
			"\nZ\n\"Bar\"\n2 -> /p/c.pdf\n"+
			" : neural  k:   a: turing#  t:  [limit 10]\n",
		out)
}

func TestQueryView_RenderShowsQueryError(t *testing.T) {
	buf := &bytes.Buffer{}
	v := NewQueryView(buf, true)

	v.Render(session.Frame{Err: errors.New("syntax error"), Limit: 1})

	assert.Contains(t, buf.String(), "query error: syntax error")
	assert.NotContains(t, buf.String(), clearScreen)
	assert.Contains(t, buf.String(), " : # ")
}
