package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the two logical channels the bridge uses.
//
// Device control and status fan-out share one broker but live under
// separate prefixes so their wildcard subscriptions never overlap.
const (
	// TopicPrefixControl is the base for device control topics.
	// Scheme: iot/{manufacturer}/{device_type}/{action}
	TopicPrefixControl = "iot"

	// TopicPrefixStatus is the base for chat-bound status topics.
	// Scheme: im/{platform}/{chat_id}/{event}
	// The part after the prefix is the routing key.
	TopicPrefixStatus = "im"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "imbridge/system"
)

// EventStatusUpdate is the only routing-key event the relay processes.
// Events with any other name are acknowledged and dropped.
const EventStatusUpdate = "status_update"

// routingKeySegments is the number of segments a routing key must have.
const routingKeySegments = 3

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.DeviceCommand("esp32", "light", "enable")
//	// Returns: "iot/esp32/light/enable"
type Topics struct{}

// =============================================================================
// Control Topics
// =============================================================================

// DeviceCommand returns the control topic for one device class and action.
//
// Example: iot/esp32/light/enable
func (Topics) DeviceCommand(manufacturer, deviceType, action string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixControl, manufacturer, deviceType, action)
}

// DeviceCommands returns a pattern matching all actions for one device class.
// Device agents subscribe to this.
//
// Pattern: iot/esp32/light/#
func (Topics) DeviceCommands(manufacturer, deviceType string) string {
	return fmt.Sprintf("%s/%s/%s/#", TopicPrefixControl, manufacturer, deviceType)
}

// =============================================================================
// Status Topics
// =============================================================================

// StatusUpdate returns the status topic for one chat identity.
//
// Example: im/line/U1234/status_update
func (Topics) StatusUpdate(platform, chatID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixStatus, platform, chatID, EventStatusUpdate)
}

// AllStatusEvents returns a pattern matching every chat-bound event.
// The relay consumer subscribes to this and filters in-process.
//
// Pattern: im/#
func (Topics) AllStatusEvents() string {
	return TopicPrefixStatus + "/#"
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: imbridge/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Routing Keys
// =============================================================================

// RoutingKey is the decoded composite key carried by a status topic.
// It externally encodes platform, chat identity, and event type.
type RoutingKey struct {
	Platform string
	ChatID   string
	Event    string
}

// DecodeRoutingKey extracts the routing key from a status topic.
//
// The topic must be under TopicPrefixStatus and the remainder must have
// exactly 3 segments: {platform}/{chat_id}/{event}. Anything else is an
// ErrInvalidRoutingKey; consumers treat those messages as droppable.
//
// Parameters:
//   - topic: Full topic the message arrived on (e.g. "im/line/U1/status_update")
//
// Returns:
//   - RoutingKey: Decoded platform, chat id, and event
//   - error: ErrInvalidRoutingKey if the topic does not follow the scheme
func DecodeRoutingKey(topic string) (RoutingKey, error) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixStatus+"/")
	if !ok {
		return RoutingKey{}, fmt.Errorf("%w: %q", ErrInvalidRoutingKey, topic)
	}

	parts := strings.Split(rest, "/")
	if len(parts) != routingKeySegments {
		return RoutingKey{}, fmt.Errorf("%w: %q has %d segments, want %d",
			ErrInvalidRoutingKey, topic, len(parts), routingKeySegments)
	}
	for _, p := range parts {
		if p == "" {
			return RoutingKey{}, fmt.Errorf("%w: %q has empty segment", ErrInvalidRoutingKey, topic)
		}
	}

	return RoutingKey{
		Platform: parts[0],
		ChatID:   parts[1],
		Event:    parts[2],
	}, nil
}
