package conf

import (
	"github.com/spf13/viper"
	"github.com/tphakala/okn-go/internal/logger"
)

// setDefaultConfig sets default values for every configuration key. Every
// key needs a default so AutomaticEnv overrides reach Unmarshal.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("main.name", "okn-go")

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.max_size", logger.DefaultMaxSize)
	v.SetDefault("logging.file_output.max_age", logger.DefaultMaxAge)
	v.SetDefault("logging.file_output.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("logging.file_output.compress", false)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)

	v.SetDefault("session.queuesize", 256)

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.listen", "127.0.0.1:8090")
	v.SetDefault("webserver.ingestrps", 120.0)

	v.SetDefault("detector.source", SourceWebSocket)
	v.SetDefault("detector.mqtt.broker", "tcp://127.0.0.1:1883")
	v.SetDefault("detector.mqtt.topic", "okn/detector")
	v.SetDefault("detector.mqtt.clientid", "")
	v.SetDefault("detector.mqtt.username", "")
	v.SetDefault("detector.mqtt.password", "")
	v.SetDefault("detector.mqtt.qos", 0)
	v.SetDefault("detector.synthetic.amplitude", 0.5)
	v.SetDefault("detector.synthetic.frequency", 0.5)
	v.SetDefault("detector.synthetic.rate", 60.0)

	v.SetDefault("events.buffersize", 1024)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen", "127.0.0.1:8091")
}
