package logger

import (
	"context"
	"log/slog"
	"time"
)

// SecurityAttrs builds the common slog attributes attached to every
// security-relevant log line so the operational stream can be filtered
// consistently.
func SecurityAttrs(eventType string, accountID, ipAddress, userAgent string) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("audit_type", "security"),
		slog.String("event_type", eventType),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if accountID != "" {
		attrs = append(attrs, slog.String("account_id", accountID))
	}
	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}
	if userAgent != "" {
		attrs = append(attrs, slog.String("user_agent", userAgent))
	}

	return attrs
}

// LogSecurity emits a security event to the operational log at the level
// implied by its severity.
func LogSecurity(logger *slog.Logger, severity string, attrs []slog.Attr) {
	level := slog.LevelInfo
	switch severity {
	case "WARNING":
		level = slog.LevelWarn
	case "ERROR", "CRITICAL":
		level = slog.LevelError
	}

	logger.LogAttrs(context.Background(), level, "security event", attrs...)
}
