package logger

import (
	"io"
	"log/slog"
)

// NewDiscard returns a Logger that drops every record.
func NewDiscard() Logger {
	return &moduleLogger{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		level:  slog.LevelError + 1,
	}
}

// NewTestLogger returns a Logger writing text records at debug level or
// above to w. Intended for tests that assert on log output.
func NewTestLogger(w io.Writer) Logger {
	return &moduleLogger{
		logger: slog.New(newTextHandler(w, slog.LevelDebug)),
		level:  slog.LevelDebug,
	}
}
