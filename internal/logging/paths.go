package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.bibdex/logs, or a temp directory without a home.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".bibdex", "logs")
	}
	return filepath.Join(home, ".bibdex", "logs")
}

// DefaultLogPath returns the log file used by every command.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "bibdex.log")
}

// FindLogFile returns explicit if it exists, otherwise the default log path.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no log file found, expected at %s", path)
	}
	return path, nil
}
