// defaults.go: default configuration values registered with viper.
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig registers a default for every setting so a partial config
// file still unmarshals into a fully populated Settings struct.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main
	viper.SetDefault("main.name", "Gammalyze")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/gammalyze.log")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 30)
	viper.SetDefault("main.log.maxagedays", 28)

	// Analysis
	viper.SetDefault("analysis.channels", 1024)
	viper.SetDefault("analysis.mode", "strict")
	viper.SetDefault("analysis.alertconfidence", 80.0)
	viper.SetDefault("analysis.calibration.slope", 3.0)
	viper.SetDefault("analysis.calibration.intercept", 0.0)
	viper.SetDefault("analysis.snip.enabled", true)
	viper.SetDefault("analysis.snip.iterations", 24)
	viper.SetDefault("analysis.peaks.prominencefactor", 0.05)
	viper.SetDefault("analysis.peaks.heightfactor", 0.1)
	viper.SetDefault("analysis.peaks.distance", 5)
	viper.SetDefault("analysis.peaks.maxpeaks", 20)
	viper.SetDefault("analysis.resolution.dynamic", true)
	viper.SetDefault("analysis.resolution.base", 0.075)
	viper.SetDefault("analysis.resolution.refenergykev", 661.7)
	viper.SetDefault("analysis.cache.enabled", true)
	viper.SetDefault("analysis.cache.ttlseconds", 300)

	// Registry
	viper.SetDefault("registry.userfile", "")

	// Analyze command input
	viper.SetDefault("input.format", "table")

	// Web server
	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.port", "8090")
	viper.SetDefault("web.log.enabled", true)
	viper.SetDefault("web.log.path", "logs/web.log")
	viper.SetDefault("web.log.maxsizemb", 100)
	viper.SetDefault("web.log.maxbackups", 30)
	viper.SetDefault("web.log.maxagedays", 28)

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8091")

	// MQTT
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "gammalyze/results")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", false)

	// Notification
	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.urls", []string{})

	// Sentry
	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
	viper.SetDefault("sentry.debug", false)
}
