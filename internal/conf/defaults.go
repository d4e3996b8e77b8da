// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "daqscope")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "daqscope.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("acquisition.offlineretry", "10s")
	viper.SetDefault("acquisition.onlinepoll", "1s")
	viper.SetDefault("acquisition.stopatend", false)
	viper.SetDefault("acquisition.logbadevents", true)
	viper.SetDefault("acquisition.badeventrate", 1.0)
	viper.SetDefault("acquisition.coincidence", true)
	viper.SetDefault("acquisition.online.host", "localhost:9090")
	viper.SetDefault("acquisition.online.session", "default")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.snapshotttl", "2s")

	viper.SetDefault("output.sqlite.enabled", false)
	viper.SetDefault("output.sqlite.path", "daqscope.db")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "daqscope/status")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.interval", "30s")
}
