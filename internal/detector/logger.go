package detector

import "github.com/tphakala/okn-go/internal/logger"

// GetLogger returns the detector module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("detector")
}
