// ABOUTME: Structured logging setup and shared slog attribute helpers
// ABOUTME: Keeps attribute keys consistent across server, auth, and interpreter

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Common log attribute keys
const (
	KeyOperation = "operation"
	KeyTool      = "tool"
	KeyIntent    = "intent"
	KeyProvider  = "provider"
	KeyStatus    = "status"
	KeyError     = "error"
)

// Status values for consistent logging
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// New builds a logger writing to w. format is "json" or "text"; level is
// debug, info, warn or error (case-insensitive, default info).
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
}

// ParseLevel maps a level name onto slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// Discard returns a logger that drops everything
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithTool returns a logger with the tool attribute set.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

// WithProvider returns a logger with the provider attribute set.
func WithProvider(logger *slog.Logger, provider string) *slog.Logger {
	return logger.With(slog.String(KeyProvider, provider))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Intent returns a slog attribute for a classified message intent.
func Intent(intent string) slog.Attr {
	return slog.String(KeyIntent, intent)
}

// Provider returns a slog attribute for a calendar provider.
func Provider(provider string) slog.Attr {
	return slog.String(KeyProvider, provider)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// A nil err yields an empty group, which slog omits from output.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// SanitizeToken returns a length indicator without exposing any token content
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
