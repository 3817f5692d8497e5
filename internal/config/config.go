// Package config loads bibdex settings from YAML files and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the complete bibdex configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Sync    SyncConfig    `yaml:"sync" json:"sync"`
	UI      UIConfig      `yaml:"ui" json:"ui"`
	History HistoryConfig `yaml:"history" json:"history"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

// PathsConfig locates the persisted state and the paper collection.
type PathsConfig struct {
	// DataDir holds the catalog, checksums, search index and history.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// PaperDir is the base for relative paths in BibTeX file fields.
	PaperDir string `yaml:"paper_dir" json:"paper_dir"`
	// BibFile is the bibliography to synchronize. Defaults to PaperDir/paper.bib.
	BibFile string `yaml:"bib_file" json:"bib_file"`
}

// SearchConfig configures the query side.
type SearchConfig struct {
	// ResultLimit is the initial number of hits shown (minimum 1).
	ResultLimit int `yaml:"result_limit" json:"result_limit"`
	// CacheSize is the number of recent queries kept in memory.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// SyncConfig configures the synchronizer.
type SyncConfig struct {
	// Workers bounds concurrent file hashing.
	Workers int `yaml:"workers" json:"workers"`
	// Languages lists the accepted values of the BibTeX lang field.
	// Entries without a lang field are always accepted.
	Languages []string `yaml:"languages" json:"languages"`
	// DebounceMS is the quiet period before `bibdex watch` re-syncs.
	DebounceMS int `yaml:"debounce_ms" json:"debounce_ms"`
}

// UIConfig configures terminal output.
type UIConfig struct {
	NoColor bool `yaml:"no_color" json:"no_color"`
	// Opener is a command used to open papers. Empty uses the system default.
	Opener string `yaml:"opener" json:"opener"`
}

// HistoryConfig configures the record of opened papers.
type HistoryConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	MaxEntries int  `yaml:"max_entries" json:"max_entries"`
}

// LogConfig configures the log file.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:  filepath.Join(home, ".bibdex"),
			PaperDir: filepath.Join(home, "paper"),
		},
		Search: SearchConfig{
			ResultLimit: 10,
			CacheSize:   128,
		},
		Sync: SyncConfig{
			Workers:    runtime.NumCPU(),
			Languages:  []string{"en"},
			DebounceMS: 500,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: 1000,
		},
		Log: LogConfig{Level: "info"},
	}
}

// GetUserConfigPath returns the user config file location.
// Uses $XDG_CONFIG_HOME/bibdex/config.yaml or ~/.config/bibdex/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bibdex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "bibdex", "config.yaml")
	}
	return filepath.Join(home, ".config", "bibdex", "config.yaml")
}

// Load builds the configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. The YAML file at path, or the user config file when path is empty
//  3. Environment variables (BIBDEX_*)
//
// A missing file is not an error. CLI flags are applied by the caller.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = GetUserConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML decodes path over the current values. Keys absent from the
// file keep their current value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.Paths.DataDir = expandHome(c.Paths.DataDir)
	c.Paths.PaperDir = expandHome(c.Paths.PaperDir)
	c.Paths.BibFile = expandHome(c.Paths.BibFile)
	return nil
}

// envOverrides lists the BIBDEX_* variables. Nil or empty fields were not
// set.
type envOverrides struct {
	DataDir        string `split_words:"true"`
	PaperDir       string `split_words:"true"`
	BibFile        string `split_words:"true"`
	ResultLimit    *int   `split_words:"true"`
	Workers        *int   `split_words:"true"`
	Opener         string `split_words:"true"`
	LogLevel       string `split_words:"true"`
	HistoryEnabled *bool  `split_words:"true"`
}

func (c *Config) applyEnvOverrides() error {
	var env envOverrides
	if err := envconfig.Process("bibdex", &env); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}

	if env.DataDir != "" {
		c.Paths.DataDir = expandHome(env.DataDir)
	}
	if env.PaperDir != "" {
		c.Paths.PaperDir = expandHome(env.PaperDir)
	}
	if env.BibFile != "" {
		c.Paths.BibFile = expandHome(env.BibFile)
	}
	if env.ResultLimit != nil {
		c.Search.ResultLimit = *env.ResultLimit
	}
	if env.Workers != nil {
		c.Sync.Workers = *env.Workers
	}
	if env.Opener != "" {
		c.UI.Opener = env.Opener
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.HistoryEnabled != nil {
		c.History.Enabled = *env.HistoryEnabled
	}
	// NO_COLOR is a cross-tool convention: any value disables colour.
	if os.Getenv("NO_COLOR") != "" {
		c.UI.NoColor = true
	}
	return nil
}

// BibFilePath returns the configured bibliography, falling back to
// paper.bib inside the paper directory.
func (c *Config) BibFilePath() string {
	if c.Paths.BibFile != "" {
		return c.Paths.BibFile
	}
	return filepath.Join(c.Paths.PaperDir, "paper.bib")
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if c.Search.ResultLimit < 1 {
		return fmt.Errorf("search.result_limit must be at least 1, got %d", c.Search.ResultLimit)
	}
	if c.Search.CacheSize < 0 {
		return fmt.Errorf("search.cache_size must be non-negative, got %d", c.Search.CacheSize)
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be at least 1, got %d", c.Sync.Workers)
	}
	if c.Sync.DebounceMS < 0 {
		return fmt.Errorf("sync.debounce_ms must be non-negative, got %d", c.Sync.DebounceMS)
	}
	if c.History.MaxEntries < 0 {
		return fmt.Errorf("history.max_entries must be non-negative, got %d", c.History.MaxEntries)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Log.Level)
	}
	return nil
}

// WriteYAML writes the configuration to path, creating its directory.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// UserConfigExists reports whether the user config file exists.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
