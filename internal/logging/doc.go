// Package logging configures structured slog output for bibdex.
// Logs are JSON lines written to a size-rotated file under ~/.bibdex/logs/,
// optionally mirrored to stderr. Interactive and MCP commands never log to
// the terminal.
package logging
