package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for batch")
		return nil
	}
}

func TestDebouncer_RepeatedModify_OneEvent(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(30*time.Millisecond, 4)
	defer d.Stop()

	// When: the same file is modified several times in a burst
	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "/p/a.pdf", Operation: OpModify, Timestamp: time.Now()})
	}

	// Then: a single event comes out
	batch := receive(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_CreateThenDelete_Dropped(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(30*time.Millisecond, 4)
	defer d.Stop()

	// When: a file appears and disappears within the window, next to a real change
	d.Add(FileEvent{Path: "/p/tmp.pdf", Operation: OpCreate})
	d.Add(FileEvent{Path: "/p/tmp.pdf", Operation: OpDelete})
	d.Add(FileEvent{Path: "/p/paper.bib", Operation: OpModify})

	// Then: only the real change is emitted
	batch := receive(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "/p/paper.bib", batch[0].Path)
}

func TestDebouncer_DeleteThenCreate_BecomesModify(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(30*time.Millisecond, 4)
	defer d.Stop()

	// When: an editor replaces the file
	d.Add(FileEvent{Path: "/p/paper.bib", Operation: OpDelete})
	d.Add(FileEvent{Path: "/p/paper.bib", Operation: OpCreate})

	// Then: it is reported as a modification
	batch := receive(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_CreateThenModify_StaysCreate(t *testing.T) {
	d := NewDebouncer(30*time.Millisecond, 4)
	defer d.Stop()

	d.Add(FileEvent{Path: "/p/new.pdf", Operation: OpCreate})
	d.Add(FileEvent{Path: "/p/new.pdf", Operation: OpModify})

	batch := receive(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_Batch_SortedByPath(t *testing.T) {
	// Given: events for several paths
	d := NewDebouncer(30*time.Millisecond, 4)
	defer d.Stop()
	d.Add(FileEvent{Path: "/p/c.pdf", Operation: OpCreate})
	d.Add(FileEvent{Path: "/p/a.pdf", Operation: OpCreate})
	d.Add(FileEvent{Path: "/p/b.pdf", Operation: OpCreate})

	// When: the window passes
	batch := receive(t, d)

	// Then: the batch is ordered
	require.Len(t, batch, 3)
	assert.Equal(t, "/p/a.pdf", batch[0].Path)
	assert.Equal(t, "/p/b.pdf", batch[1].Path)
	assert.Equal(t, "/p/c.pdf", batch[2].Path)
	assert.Equal(t, 0, d.Pending())
}

func TestDebouncer_Stop_ClosesOutputAndIgnoresAdds(t *testing.T) {
	// Given: a stopped debouncer
	d := NewDebouncer(10*time.Millisecond, 1)
	d.Stop()
	d.Stop()

	// When: an event is added afterwards
	d.Add(FileEvent{Path: "/p/a.pdf", Operation: OpCreate})

	// Then: the output is closed and nothing is pending
	_, ok := <-d.Output()
	assert.False(t, ok)
	assert.Equal(t, 0, d.Pending())
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()
	assert.Equal(t, DefaultOptions(), opts)

	custom := Options{DebounceWindow: time.Second}.WithDefaults()
	assert.Equal(t, time.Second, custom.DebounceWindow)
	assert.Equal(t, 16, custom.EventBufferSize)
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "UNKNOWN", Operation(42).String())
}
