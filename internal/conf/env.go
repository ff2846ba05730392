package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. OKN_DETECTOR_SOURCE.
const EnvPrefix = "OKN"

// envBinding holds metadata for validated environment variables.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "OKN_DEBUG", validateEnvBool},
		{"detector.source", "OKN_DETECTOR_SOURCE", validateEnvSource},
		{"detector.mqtt.qos", "OKN_DETECTOR_MQTT_QOS", validateEnvQoS},
		{"telemetry.enabled", "OKN_TELEMETRY_ENABLED", validateEnvBool},
		{"webserver.enabled", "OKN_WEBSERVER_ENABLED", validateEnvBool},
	}
}

// configureEnvironmentVariables enables OKN_ prefixed overrides for every key
// and validates the ones with a fixed value domain.
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return bindEnvVars(v)
}

func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" && binding.Validate != nil {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvSource(value string) error {
	if !validSource(value) {
		return fmt.Errorf("must be one of %s", strings.Join(sources(), ", "))
	}
	return nil
}

func validateEnvQoS(value string) error {
	q, err := strconv.Atoi(value)
	if err != nil || q < 0 || q > 2 {
		return fmt.Errorf("must be 0, 1 or 2")
	}
	return nil
}
