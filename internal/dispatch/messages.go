package dispatch

import (
	"encoding/json"
	"fmt"
)

// CommandKind is the wire value of a device command.
type CommandKind string

const (
	// CommandOn turns a device on.
	CommandOn CommandKind = "on"

	// CommandOff turns a device off.
	CommandOff CommandKind = "off"

	// CommandGetStatus queries a device's current state.
	CommandGetStatus CommandKind = "get_status"
)

// Valid reports whether the kind is one of the known wire values.
func (k CommandKind) Valid() bool {
	switch k {
	case CommandOn, CommandOff, CommandGetStatus:
		return true
	}
	return false
}

// CommandEnvelope is the control message published toward a device
// executor. All fields travel as JSON; decoding validates the required
// fields so malformed envelopes fail at the boundary rather than deep
// in an executor.
type CommandEnvelope struct {
	Command  CommandKind `json:"command"`
	ChatID   string      `json:"chat_id"`
	Platform string      `json:"platform"`
	DeviceID string      `json:"device_id"`
	UserID   string      `json:"user_id,omitempty"`
	Username string      `json:"username,omitempty"`
	BotToken string      `json:"bot_token,omitempty"`
}

// Encode marshals the envelope after validating required fields.
func (e CommandEnvelope) Encode() ([]byte, error) {
	if !e.Command.Valid() {
		return nil, fmt.Errorf("%w: command %q", ErrInvalidEnvelope, e.Command)
	}
	if e.DeviceID == "" {
		return nil, fmt.Errorf("%w: missing device_id", ErrInvalidEnvelope)
	}
	if e.ChatID == "" {
		return nil, fmt.Errorf("%w: missing chat_id", ErrInvalidEnvelope)
	}
	return json.Marshal(e)
}

// DecodeCommandEnvelope parses and validates a control message body.
func DecodeCommandEnvelope(data []byte) (CommandEnvelope, error) {
	var e CommandEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return CommandEnvelope{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if !e.Command.Valid() {
		return CommandEnvelope{}, fmt.Errorf("%w: command %q", ErrInvalidEnvelope, e.Command)
	}
	if e.DeviceID == "" {
		return CommandEnvelope{}, fmt.Errorf("%w: missing device_id", ErrInvalidEnvelope)
	}
	if e.ChatID == "" {
		return CommandEnvelope{}, fmt.Errorf("%w: missing chat_id", ErrInvalidEnvelope)
	}
	return e, nil
}

// StatusEvent is the status message published by a device executor and
// consumed by the status relay.
type StatusEvent struct {
	DeviceStatus string `json:"device_status"`
	DeviceID     string `json:"device_id"`
	ChatID       string `json:"chat_id"`
	Platform     string `json:"platform"`
	UserID       string `json:"user_id,omitempty"`
	Username     string `json:"username"`
	BotToken     string `json:"bot_token,omitempty"`
}

// Encode marshals the event after validating required fields.
func (e StatusEvent) Encode() ([]byte, error) {
	if e.DeviceStatus == "" {
		return nil, fmt.Errorf("%w: missing device_status", ErrInvalidEnvelope)
	}
	if e.ChatID == "" {
		return nil, fmt.Errorf("%w: missing chat_id", ErrInvalidEnvelope)
	}
	return json.Marshal(e)
}

// DecodeStatusEvent parses a status message body. Field presence is
// checked by the relay per its drop rules, so only JSON validity is
// enforced here.
func DecodeStatusEvent(data []byte) (StatusEvent, error) {
	var e StatusEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return StatusEvent{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	return e, nil
}
