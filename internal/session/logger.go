package session

import "github.com/tphakala/okn-go/internal/logger"

// GetLogger returns the session package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("session")
}
