package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath(t *testing.T) {
	t.Setenv("HOME", "/home/reader")

	assert.Equal(t, filepath.Join("/home/reader", ".bibdex", "logs", "bibdex.log"), DefaultLogPath())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.False(t, cfg.WriteToStderr)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxBackups)
	assert.Equal(t, "debug", DebugConfig().Level)
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: a log file in a temp dir
	path := filepath.Join(t.TempDir(), "nested", "bibdex.log")

	// When: logging through the configured logger
	logger, cleanup, err := Setup(Config{Level: "info", FilePath: path})
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("sync_started", slog.Int("entries", 3))
	cleanup()

	// Then: only the info record is on disk
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"sync_started"`)
	assert.Contains(t, string(data), `"entries":3`)
	assert.NotContains(t, string(data), "hidden")
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, LevelFromString(in), in)
	}
}

func TestFindLogFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := FindLogFile("")
	assert.Error(t, err)

	_, err = FindLogFile("/does/not/exist.log")
	assert.Error(t, err)

	explicit := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(explicit, nil, 0o644))
	got, err := FindLogFile(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, got)
}

func TestSetupMCPMode_LogsToFileOnly(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	prev := slog.Default()
	defer slog.SetDefault(prev)

	cleanup, err := SetupMCPMode("debug")
	require.NoError(t, err)
	cleanup()

	data, err := os.ReadFile(filepath.Join(home, ".bibdex", "logs", "bibdex.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "mcp_logging_initialized")
}

func TestSetup_ConcurrentWrites(t *testing.T) {
	// Given: one logger shared by several goroutines
	path := filepath.Join(t.TempDir(), "cc.log")
	logger, cleanup, err := Setup(Config{Level: "info", FilePath: path})
	require.NoError(t, err)

	// When: they all log at once
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("line")
		}()
	}
	wg.Wait()
	cleanup()

	// Then: every record is a whole line
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 10, strings.Count(string(data), `"msg":"line"`))
	assert.Equal(t, 10, strings.Count(string(data), "\n"))
}

func TestSetup_UnwritableDirectory(t *testing.T) {
	// Given: a log path beneath a regular file
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	// When/Then: setup fails up front
	_, _, err := Setup(Config{FilePath: filepath.Join(blocker, "bibdex.log")})
	assert.Error(t, err)
}

func TestViewer_TailFiltersAndFormats(t *testing.T) {
	// Given: a log with mixed levels and one broken line
	path := filepath.Join(t.TempDir(), "v.log")
	content := strings.Join([]string{
		`{"time":"2026-01-02T10:00:00Z","level":"DEBUG","msg":"noise"}`,
		`{"time":"2026-01-02T10:00:01Z","level":"INFO","msg":"entry_indexed","id":"knuth84"}`,
		`{"time":"2026-01-02T10:00:02Z","level":"WARN","msg":"entry_skipped","id":"x","reason":"has no files"}`,
		`not json`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When: tailing at info level
	v := NewViewer(ViewerConfig{Level: "info", NoColor: true}, &strings.Builder{})
	entries, err := v.Tail(path, 3)
	require.NoError(t, err)

	// Then: debug is dropped by both the window and the filter
	require.Len(t, entries, 3)
	assert.Equal(t, "entry_indexed", entries[0].Msg)
	assert.Contains(t, v.FormatEntry(entries[1]), "WARN  entry_skipped id=x reason=has no files")
	assert.Equal(t, "not json", v.FormatEntry(entries[2]))
}

func TestViewer_PatternFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.log")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"level":"INFO","msg":"a"}`+"\n"+`{"level":"INFO","msg":"b"}`+"\n"), 0o644))

	var out strings.Builder
	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`"b"`), NoColor: true}, &out)
	entries, err := v.Tail(path, 50)
	require.NoError(t, err)
	v.Print(entries)

	require.Len(t, entries, 1)
	assert.Contains(t, out.String(), "INFO  b")
}
