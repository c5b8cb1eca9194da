package logging

import (
	"log/slog"
)

type LogCode string

const (
	// SYSTEM EVENTS (SYSTEM*)
	SYSTEM LogCode = "SYSTEM"

	// TEMPLATE OPERATIONS (TEMPLATE*)
	TEMPLATE_CREATE LogCode = "TEMPLATE_CREATE"
	TEMPLATE_UPDATE LogCode = "TEMPLATE_UPDATE"
	TEMPLATE_DELETE LogCode = "TEMPLATE_DELETE"
	TEMPLATE_ACCESS LogCode = "TEMPLATE_ACCESS"

	// RESPONSE OPERATIONS (RESPONSE*)
	RESPONSE_SUBMIT    LogCode = "RESPONSE_SUBMIT"
	RESPONSE_AGGREGATE LogCode = "RESPONSE_AGGREGATE"

	// INTEGRATION OPERATIONS (INTEGRATION*)
	INTEGRATION_EXPORT LogCode = "INTEGRATION_EXPORT"
	INTEGRATION_TICKET LogCode = "INTEGRATION_TICKET"
)

// VictoriaLogs has fixed field name for time (_time) and message(_msg). This function maps fields msg -> _msg and time -> _time.
func convertKeysToVictoriaLogs(keys []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{Key: "_time", Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05"))}
	}
	if a.Key == slog.MessageKey {
		return slog.Attr{Key: "_msg", Value: a.Value}
	}
	return a
}

func GetVictoriaLogsOptions(addSource bool) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: convertKeysToVictoriaLogs,
		AddSource:   addSource,
	}
}
