package intent

import (
	"regexp"
	"strings"
)

// Action classifies what a chat message asks the bridge to do.
type Action int

const (
	// ActionInvalid means the message matched no known command form.
	ActionInvalid Action = iota

	// ActionHelp greets the user and shows usage.
	ActionHelp

	// ActionBind ties the chat to a device.
	ActionBind

	// ActionEnable turns a device on.
	ActionEnable

	// ActionDisable turns a device off.
	ActionDisable

	// ActionGetStatus queries a device's current state.
	ActionGetStatus
)

// String returns a human-readable action name for logs.
func (a Action) String() string {
	switch a {
	case ActionHelp:
		return "help"
	case ActionBind:
		return "bind"
	case ActionEnable:
		return "enable"
	case ActionDisable:
		return "disable"
	case ActionGetStatus:
		return "get_status"
	default:
		return "invalid"
	}
}

// Intent is the parsed form of one chat message.
//
// DeviceID is the device named in the message, or empty when the
// command form allows omitting it (the caller substitutes the chat's
// bound device).
type Intent struct {
	Action   Action
	DeviceID string
}

// Command patterns. Matching runs against the normalized (trimmed,
// lowercased) message, so natural phrasing like "Turn On lamp" works.
var (
	bindPattern      = regexp.MustCompile(`^/bind\s+([\w_]+)$`)
	enablePattern    = regexp.MustCompile(`^(turn on|/enable)(\s+([\w_]+))?$`)
	disablePattern   = regexp.MustCompile(`^(turn off|/disable)(\s+([\w_]+))?$`)
	getStatusPattern = regexp.MustCompile(`^(get status|/status)(\s+([\w_]+))?$`)
)

// greetings are messages answered with the help text.
var greetings = map[string]struct{}{
	"hi":     {},
	"hello":  {},
	"/start": {},
}

// Parse classifies a raw chat message.
//
// Parsing is pure and deterministic: no state is read or written, and
// normalization (trim then lowercase) makes it idempotent, so "  TURN
// ON lamp " and "turn on lamp" yield the same intent.
//
// Parameters:
//   - text: Raw message text as received from the platform
//
// Returns:
//   - Intent: ActionInvalid when the message matches no command form
func Parse(text string) Intent {
	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return Intent{Action: ActionInvalid}
	}

	if _, ok := greetings[msg]; ok {
		return Intent{Action: ActionHelp}
	}

	if m := bindPattern.FindStringSubmatch(msg); m != nil {
		return Intent{Action: ActionBind, DeviceID: m[1]}
	}
	if m := enablePattern.FindStringSubmatch(msg); m != nil {
		return Intent{Action: ActionEnable, DeviceID: m[3]}
	}
	if m := disablePattern.FindStringSubmatch(msg); m != nil {
		return Intent{Action: ActionDisable, DeviceID: m[3]}
	}
	if m := getStatusPattern.FindStringSubmatch(msg); m != nil {
		return Intent{Action: ActionGetStatus, DeviceID: m[3]}
	}

	return Intent{Action: ActionInvalid}
}
