package mqtt

import "fmt"

// Topic prefixes for the Lumen MQTT namespace.
//
// All topics live under the flat scheme: lumen/{category}/...
const (
	// TopicPrefix is the base for all Lumen topics.
	TopicPrefix = "lumen"

	// TopicPrefixCore is the base for coordination-core topics.
	TopicPrefixCore = "lumen/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "lumen/system"
)

// Topics provides builders for Lumen MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topics.Frames()
//	// Returns: "lumen/frames"
type Topics struct{}

// Frames returns the colour-frame intake topic. Frames published here are
// dispatched to every initialized device; intermediate frames may be
// coalesced away under load.
//
// Example: lumen/frames
func (Topics) Frames() string {
	return fmt.Sprintf("%s/frames", TopicPrefix)
}

// ForcedFrames returns the intake topic for frames that bypass driver-side
// redundancy suppression (used after resets and power events).
//
// Example: lumen/frames/forced
func (Topics) ForcedFrames() string {
	return fmt.Sprintf("%s/frames/forced", TopicPrefix)
}

// DevicesChanged returns the topic for the payload-less
// "initialized device set changed" notification.
//
// Example: lumen/core/devices_changed
func (Topics) DevicesChanged() string {
	return fmt.Sprintf("%s/devices_changed", TopicPrefixCore)
}

// DeviceEvent returns the topic for device lifecycle events.
//
// Example: lumen/core/device/desk-strip/event
func (Topics) DeviceEvent(deviceName string) string {
	return fmt.Sprintf("%s/device/%s/event", TopicPrefixCore, deviceName)
}

// AllDeviceEvents returns a pattern matching every device lifecycle event.
//
// Pattern: lumen/core/device/+/event
func (Topics) AllDeviceEvents() string {
	return fmt.Sprintf("%s/device/+/event", TopicPrefixCore)
}

// SystemStatus returns the system status topic. The client's last-will
// message publishes "offline" here on unclean disconnect.
//
// Example: lumen/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllTopics returns a pattern matching all Lumen topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: lumen/#
func (Topics) AllTopics() string {
	return "lumen/#"
}
