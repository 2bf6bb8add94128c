// Package logging configures the process-wide slog logger for tfrag.
//
// Logs are JSON lines written to a size-rotated file under ~/.tfrag/logs and,
// unless the process is serving MCP over stdio, mirrored to stderr.
package logging
