package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New builds the process-wide JSON logger at the configured level.
func New(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RedactedAttr returns a redacted slog attribute for sensitive values.
// In production the value is replaced outright; development keeps it.
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// SanitizedDisplayName masks a learner's display name for logging,
// keeping the first rune (e.g. "A***").
func SanitizedDisplayName(name string) string {
	runes := []rune(name)
	if len(runes) == 0 {
		return "[empty]"
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-1)
}
