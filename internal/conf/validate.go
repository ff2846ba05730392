package conf

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/tphakala/okn-go/internal/logger"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if strings.TrimSpace(settings.Main.Name) == "" {
		ve.Errors = append(ve.Errors, "main.name must not be empty")
	}

	ve.Errors = append(ve.Errors, validateLoggingSettings(&settings.Logging)...)
	ve.Errors = append(ve.Errors, validateSessionSettings(&settings.Session)...)
	ve.Errors = append(ve.Errors, validateWebServerSettings(&settings.WebServer)...)
	ve.Errors = append(ve.Errors, validateDetectorSettings(settings)...)
	ve.Errors = append(ve.Errors, validateTelemetrySettings(&settings.Telemetry)...)

	if settings.Events.BufferSize <= 0 {
		ve.Errors = append(ve.Errors, "events.buffersize must be positive")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLoggingSettings(cfg *logger.LoggingConfig) []string {
	var errs []string
	if cfg.DefaultLevel != "" && !logger.ValidLevel(cfg.DefaultLevel) {
		errs = append(errs, fmt.Sprintf("logging.default_level %q is not a log level", cfg.DefaultLevel))
	}
	for module, level := range cfg.ModuleLevels {
		if !logger.ValidLevel(level) {
			errs = append(errs, fmt.Sprintf("logging.module_levels.%s %q is not a log level", module, level))
		}
	}
	return errs
}

func validateSessionSettings(s *SessionSettings) []string {
	if s.QueueSize <= 0 {
		return []string{"session.queuesize must be positive"}
	}
	return nil
}

func validateWebServerSettings(s *WebServerSettings) []string {
	var errs []string
	if !s.Enabled {
		return nil
	}
	if err := validateListen(s.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("webserver.listen: %v", err))
	}
	if s.IngestRPS <= 0 || math.IsInf(s.IngestRPS, 0) || math.IsNaN(s.IngestRPS) {
		errs = append(errs, "webserver.ingestrps must be positive")
	}
	return errs
}

func validateTelemetrySettings(s *TelemetrySettings) []string {
	if !s.Enabled {
		return nil
	}
	if err := validateListen(s.Listen); err != nil {
		return []string{fmt.Sprintf("telemetry.listen: %v", err)}
	}
	return nil
}

func validateDetectorSettings(settings *Settings) []string {
	d := &settings.Detector
	var errs []string

	if !validSource(d.Source) {
		return []string{fmt.Sprintf("detector.source %q must be one of %s", d.Source, strings.Join(sources(), ", "))}
	}

	switch d.Source {
	case SourceWebSocket:
		if !settings.WebServer.Enabled {
			errs = append(errs, "detector.source websocket requires webserver.enabled")
		}
	case SourceMQTT:
		u, err := url.Parse(d.MQTT.Broker)
		if err != nil || u.Hostname() == "" {
			errs = append(errs, fmt.Sprintf("detector.mqtt.broker %q is not a broker URL", logger.RedactURL(d.MQTT.Broker)))
		}
		if d.MQTT.Topic == "" {
			errs = append(errs, "detector.mqtt.topic must not be empty")
		}
		if d.MQTT.QoS < 0 || d.MQTT.QoS > 2 {
			errs = append(errs, "detector.mqtt.qos must be 0, 1 or 2")
		}
	case SourceSynthetic:
		if d.Synthetic.Rate <= 0 {
			errs = append(errs, "detector.synthetic.rate must be positive")
		}
		if d.Synthetic.Frequency < 0 {
			errs = append(errs, "detector.synthetic.frequency must not be negative")
		}
	}
	return errs
}

// validateListen checks a host:port listen address. A non-loopback host is
// allowed but logged, since results are meant to stay on the device.
func validateListen(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if port == "" {
		return fmt.Errorf("missing port in %q", addr)
	}
	if !IsLoopback(host) {
		GetLogger().Warn("listening on a non-loopback address", logger.String("address", addr))
	}
	return nil
}

func sources() []string {
	return []string{SourceWebSocket, SourceMQTT, SourceSynthetic, SourceNone}
}

func validSource(s string) bool {
	return slices.Contains(sources(), s)
}
