// conf/validate.go

package conf

import (
	"fmt"
	"strconv"
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

	if err := validateAcquisitionSettings(&settings.Acquisition); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMQTTSettings(&settings.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAcquisitionSettings(acquisition *AcquisitionSettings) error {
	if acquisition.OfflineRetry <= 0 {
		return fmt.Errorf("acquisition offline retry interval must be positive: %v", acquisition.OfflineRetry)
	}
	if acquisition.OnlinePoll <= 0 {
		return fmt.Errorf("acquisition online poll timeout must be positive: %v", acquisition.OnlinePoll)
	}
	if acquisition.BadEventRate < 0 {
		return fmt.Errorf("acquisition bad event log rate cannot be negative: %v", acquisition.BadEventRate)
	}
	return nil
}

func validateWebServerSettings(settings *Settings) error {
	if !settings.WebServer.Enabled {
		return nil
	}
	port, err := strconv.Atoi(settings.WebServer.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid webserver port: %s", settings.WebServer.Port)
	}
	if settings.WebServer.SnapshotTTL < 0 {
		return fmt.Errorf("webserver snapshot TTL cannot be negative: %v", settings.WebServer.SnapshotTTL)
	}
	return nil
}

func validateMQTTSettings(mqtt *MQTTSettings) error {
	if !mqtt.Enabled {
		return nil
	}
	if mqtt.Broker == "" {
		return fmt.Errorf("MQTT broker URL is required when MQTT is enabled")
	}
	if mqtt.Topic == "" {
		return fmt.Errorf("MQTT topic is required when MQTT is enabled")
	}
	if mqtt.Interval <= 0 {
		return fmt.Errorf("MQTT publish interval must be positive: %v", mqtt.Interval)
	}
	return nil
}
