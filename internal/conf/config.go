// Package conf provides configuration management for okn-go.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"github.com/tphakala/okn-go/internal/logger"
)

// Detector source names accepted in detector.source.
const (
	SourceWebSocket = "websocket"
	SourceMQTT      = "mqtt"
	SourceSynthetic = "synthetic"
	SourceNone      = "none"
)

// Settings contains all configuration options for okn-go.
type Settings struct {
	Debug bool `yaml:"debug" mapstructure:"debug"` // true to enable debug mode

	Main struct {
		Name string `yaml:"name" mapstructure:"name"` // instance name, used as MQTT client id prefix
	} `yaml:"main" mapstructure:"main"`

	Logging logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`

	Session SessionSettings `yaml:"session" mapstructure:"session"`

	WebServer WebServerSettings `yaml:"webserver" mapstructure:"webserver"`

	Detector DetectorSettings `yaml:"detector" mapstructure:"detector"`

	Events struct {
		BufferSize int `yaml:"buffersize" mapstructure:"buffersize"` // state event bus buffer
	} `yaml:"events" mapstructure:"events"`

	Telemetry TelemetrySettings `yaml:"telemetry" mapstructure:"telemetry"`
}

// SessionSettings tunes the session machine. Protocol timing is fixed.
type SessionSettings struct {
	QueueSize int `yaml:"queuesize" mapstructure:"queuesize"` // machine inbox capacity
}

// WebServerSettings contains settings for the HTTP API.
type WebServerSettings struct {
	Enabled   bool    `yaml:"enabled" mapstructure:"enabled"`     // true to serve the API
	Listen    string  `yaml:"listen" mapstructure:"listen"`       // host:port, loopback by default
	IngestRPS float64 `yaml:"ingestrps" mapstructure:"ingestrps"` // max detector frames per second over HTTP POST
}

// DetectorSettings selects and configures the detector source.
type DetectorSettings struct {
	Source    string            `yaml:"source" mapstructure:"source"` // websocket, mqtt, synthetic or none
	MQTT      MQTTSettings      `yaml:"mqtt" mapstructure:"mqtt"`
	Synthetic SyntheticSettings `yaml:"synthetic" mapstructure:"synthetic"`
}

// MQTTSettings contains settings for the MQTT detector source.
type MQTTSettings struct {
	Broker   string `yaml:"broker" mapstructure:"broker"`     // tcp://host:port
	Topic    string `yaml:"topic" mapstructure:"topic"`       // topic carrying detector frames
	ClientID string `yaml:"clientid" mapstructure:"clientid"` // empty derives one from main.name
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	QoS      int    `yaml:"qos" mapstructure:"qos"` // 0, 1 or 2
}

// SyntheticSettings shapes the development sinusoid source.
type SyntheticSettings struct {
	Amplitude float64 `yaml:"amplitude" mapstructure:"amplitude"` // peak gaze
	Frequency float64 `yaml:"frequency" mapstructure:"frequency"` // Hz
	Rate      float64 `yaml:"rate" mapstructure:"rate"`           // detections per second
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"` // true to serve /metrics
	Listen  string `yaml:"listen" mapstructure:"listen"`   // host:port
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables using the
// global viper instance, which cobra flags are bound to.
func Load() (*Settings, error) {
	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return nil, fmt.Errorf("error getting default config paths: %w", err)
	}

	settings, err := LoadWith(viper.GetViper(), paths...)
	if err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// LoadWith reads settings through v. A config file set with v.SetConfigFile
// takes precedence over the search paths. A missing config file is not an
// error; defaults and environment apply.
func LoadWith(v *viper.Viper, paths ...string) (*Settings, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaultConfig(v)
	if err := configureEnvironmentVariables(v); err != nil {
		GetLogger().Warn("environment variable issues", logger.Error(err))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		GetLogger().Debug("no config file found, using defaults")
	} else {
		GetLogger().Info("loaded config file", logger.String("path", v.ConfigFileUsed()))
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// GetSettings returns the settings of the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// MQTTClientID returns the configured client id or one derived from the
// instance name.
func (s *Settings) MQTTClientID() string {
	if s.Detector.MQTT.ClientID != "" {
		return s.Detector.MQTT.ClientID
	}
	return s.Main.Name + "-detector"
}

// SaveYAMLConfig writes settings to configPath atomically. Secrets are
// written as configured.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := marshalYAML(settings, false)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	// Write to a temporary file first so a failed write never truncates
	// the existing config.
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// Cross-device rename, fall back to copy
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}
	return nil
}
