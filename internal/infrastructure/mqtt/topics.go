package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the station's MQTT hierarchy.
//
// Device topics use the flat scheme brickplay/{category}/{family}/{device_id}.
// Device gateways (BLE or infrared bridges) subscribe to commands and
// publish connection state; controller gateways publish raw input events.
const (
	// TopicPrefix is the base for all station topics.
	TopicPrefix = "brickplay"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "brickplay/system"
)

// Topics provides builders for the station's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceCommand("buwizz2", "bw-01") // "brickplay/command/buwizz2/bw-01"
type Topics struct{}

// DeviceCommand returns the topic device gateways receive commands on.
//
// Example: brickplay/command/sbrick/sb-kitchen
func (Topics) DeviceCommand(family, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, family, deviceID)
}

// DeviceState returns the topic a gateway reports a device's connection state on.
//
// Example: brickplay/state/sbrick/sb-kitchen
func (Topics) DeviceState(family, deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, family, deviceID)
}

// ControllerInput returns the topic raw events of one controller arrive on.
//
// Example: brickplay/input/gamepad-1
func (Topics) ControllerInput(controllerID string) string {
	return fmt.Sprintf("%s/input/%s", TopicPrefix, controllerID)
}

// SystemStatus returns the station status topic (online/offline, LWT).
//
// Example: brickplay/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllDeviceStates returns a pattern matching every device state topic.
//
// Pattern: brickplay/state/+/+
func (Topics) AllDeviceStates() string {
	return TopicPrefix + "/state/+/+"
}

// AllControllerInputs returns a pattern matching every controller's input.
//
// Pattern: brickplay/input/+
func (Topics) AllControllerInputs() string {
	return TopicPrefix + "/input/+"
}

// AllTopics returns a pattern matching all station topics.
//
// Pattern: brickplay/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// ParseDeviceState extracts the family and device id from a device state topic.
func (Topics) ParseDeviceState(topic string) (family, deviceID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "state" || parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}

// ParseControllerInput extracts the controller id from an input topic.
func (Topics) ParseControllerInput(topic string) (controllerID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefix || parts[1] != "input" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
