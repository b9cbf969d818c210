package dispatch

import (
	"fmt"
	"strings"

	"github.com/tychang/imbridge/internal/binding"
	"github.com/tychang/imbridge/internal/device"
	"github.com/tychang/imbridge/internal/infrastructure/mqtt"
	"github.com/tychang/imbridge/internal/intent"
)

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Publisher sends payloads to the broker over a session-keyed
// connection. *mqtt.Pool satisfies this.
type Publisher interface {
	Publish(sessionKey, topic string, payload []byte) error
}

// Notification is one outbound chat message.
type Notification struct {
	Platform string
	ChatID   string
	UserID   string
	Username string
	BotToken string
	Text     string
}

// Notifier delivers chat messages back to users. The platform mux
// satisfies this; it is an interface here so command handling never
// imports the platform clients directly.
type Notifier interface {
	Send(n Notification) error
}

// Bindings is the subset of the binding registry the dispatcher uses.
type Bindings interface {
	Bind(deviceID, chatID, platform string) error
	BoundChats(deviceID string) []binding.Binding
}

// Inbound is one chat message as delivered by a platform webhook.
//
// DefaultDeviceID is the device context the webhook was registered
// with; commands that omit a device token fall back to it.
type Inbound struct {
	Platform        string
	ChatID          string
	UserID          string
	Username        string
	BotToken        string
	Text            string
	DefaultDeviceID string
}

// User-facing reply strings.
const (
	replyInvalidCommand = "Invalid command. Please use /start to view help."
	replyInternalError  = "An error occurred while processing your command. Please try again."
)

// Dispatcher turns parsed chat commands into broker publishes and user
// replies. All user-facing text originates here so webhook handlers
// stay free of command-specific strings.
type Dispatcher struct {
	catalog  *device.Catalog
	bindings Bindings
	pool     Publisher
	notifier Notifier
	topics   mqtt.Topics
	logger   Logger
}

// NewDispatcher creates a dispatcher.
//
// Parameters:
//   - catalog: Supported-device lookup table
//   - bindings: Binding registry
//   - pool: Session-keyed broker publisher
//   - notifier: Chat reply sender
//   - logger: Logger; nil disables logging
//
// Returns:
//   - *Dispatcher: Ready dispatcher
func NewDispatcher(catalog *device.Catalog, bindings Bindings, pool Publisher, notifier Notifier, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		catalog:  catalog,
		bindings: bindings,
		pool:     pool,
		notifier: notifier,
		logger:   logger,
	}
}

// HandleMessage runs the full inbound flow for one chat message: parse,
// resolve and validate the device, execute the action, and reply to the
// user. Every path sends exactly one reply to the originating chat
// (plus join notifications to group members on bind).
//
// Returns:
//   - error: The underlying failure, for logging; user-facing replies
//     have already been sent when it is non-nil
func (d *Dispatcher) HandleMessage(msg Inbound) error {
	in := intent.Parse(msg.Text)

	d.logger.Debug("chat message parsed",
		"platform", msg.Platform,
		"chat_id", msg.ChatID,
		"action", in.Action.String(),
	)

	switch in.Action {
	case intent.ActionHelp:
		return d.reply(msg, d.helpText())

	case intent.ActionBind:
		return d.handleBind(msg, in.DeviceID)

	case intent.ActionEnable, intent.ActionDisable, intent.ActionGetStatus:
		return d.handleDeviceCommand(msg, in)

	default:
		if err := d.reply(msg, replyInvalidCommand); err != nil {
			return err
		}
		return fmt.Errorf("%w: %q", ErrInvalidCommand, msg.Text)
	}
}

// handleBind ties the chat to a device and notifies existing group
// members of the new arrival.
func (d *Dispatcher) handleBind(msg Inbound, deviceID string) error {
	if !d.catalog.Has(deviceID) {
		if err := d.reply(msg, d.invalidDeviceText(deviceID)); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrUnsupportedDevice, deviceID)
	}

	// Snapshot existing members before binding so the new arrival is
	// not notified about itself.
	members := d.bindings.BoundChats(deviceID)

	if err := d.bindings.Bind(deviceID, msg.ChatID, msg.Platform); err != nil {
		d.logger.Error("bind failed", "device_id", deviceID, "chat_id", msg.ChatID, "error", err)
		if replyErr := d.reply(msg, replyInternalError); replyErr != nil {
			return replyErr
		}
		return err
	}

	if err := d.reply(msg, fmt.Sprintf("Successfully bound to device %s", deviceID)); err != nil {
		return err
	}

	joinText := fmt.Sprintf("User %s has joined the group for device %s", msg.Username, deviceID)
	for _, m := range members {
		if m.ChatID == msg.ChatID && m.Platform == msg.Platform {
			continue
		}
		err := d.notifier.Send(Notification{
			Platform: m.Platform,
			ChatID:   m.ChatID,
			Username: msg.Username,
			BotToken: msg.BotToken,
			Text:     joinText,
		})
		if err != nil {
			d.logger.Warn("join notification failed",
				"device_id", deviceID,
				"chat_id", m.ChatID,
				"platform", m.Platform,
				"error", err,
			)
		}
	}
	return nil
}

// handleDeviceCommand resolves the target device and publishes the
// command envelope to its manufacturer-scoped topic.
func (d *Dispatcher) handleDeviceCommand(msg Inbound, in intent.Intent) error {
	deviceID := in.DeviceID
	if deviceID == "" {
		deviceID = msg.DefaultDeviceID
	}
	if deviceID == "" {
		if err := d.reply(msg, d.invalidDeviceText(deviceID)); err != nil {
			return err
		}
		return ErrNoDevice
	}

	dev, err := d.catalog.Lookup(deviceID)
	if err != nil {
		if replyErr := d.reply(msg, d.invalidDeviceText(deviceID)); replyErr != nil {
			return replyErr
		}
		return fmt.Errorf("%w: %s", ErrUnsupportedDevice, deviceID)
	}

	var kind CommandKind
	var label string
	switch in.Action {
	case intent.ActionEnable:
		kind, label = CommandOn, "Enable"
	case intent.ActionDisable:
		kind, label = CommandOff, "Disable"
	default:
		kind, label = CommandGetStatus, "Get Status"
	}

	if err := d.publishCommand(dev, kind, msg); err != nil {
		d.logger.Error("command publish failed",
			"device_id", dev.ID,
			"command", string(kind),
			"error", err,
		)
		if replyErr := d.reply(msg, replyInternalError); replyErr != nil {
			return replyErr
		}
		return err
	}

	return d.reply(msg, fmt.Sprintf("Command received: %s %s", label, dev.ID))
}

// publishCommand builds and sends the command envelope. The publish
// confirms broker delivery only; device execution is reported
// asynchronously through the status relay.
func (d *Dispatcher) publishCommand(dev device.Device, kind CommandKind, msg Inbound) error {
	envelope := CommandEnvelope{
		Command:  kind,
		ChatID:   msg.ChatID,
		Platform: msg.Platform,
		DeviceID: dev.ID,
		UserID:   msg.UserID,
		Username: msg.Username,
		BotToken: msg.BotToken,
	}
	payload, err := envelope.Encode()
	if err != nil {
		return err
	}

	topic := d.topics.DeviceCommand(string(dev.Manufacturer), string(dev.Type), commandAction(kind))
	return d.pool.Publish(msg.ChatID, topic, payload)
}

// commandAction maps a wire command to its topic action segment.
func commandAction(kind CommandKind) string {
	switch kind {
	case CommandOn:
		return "enable"
	case CommandOff:
		return "disable"
	default:
		return "get_status"
	}
}

// reply sends a message back to the originating chat.
func (d *Dispatcher) reply(msg Inbound, text string) error {
	err := d.notifier.Send(Notification{
		Platform: msg.Platform,
		ChatID:   msg.ChatID,
		UserID:   msg.UserID,
		Username: msg.Username,
		BotToken: msg.BotToken,
		Text:     text,
	})
	if err != nil {
		d.logger.Error("reply failed",
			"platform", msg.Platform,
			"chat_id", msg.ChatID,
			"error", err,
		)
	}
	return err
}

// invalidDeviceText enumerates the supported devices for the user.
func (d *Dispatcher) invalidDeviceText(deviceID string) string {
	return fmt.Sprintf("Invalid device ID: %s. Available devices: %s",
		deviceID, strings.Join(d.catalog.SupportedIDs(), ", "))
}

// helpText lists the available commands.
func (d *Dispatcher) helpText() string {
	return "Hi! I can control your smart devices.\n" +
		"Commands:\n" +
		"/bind <device_id> - bind this chat to a device\n" +
		"/enable [device_id] or \"turn on\" - turn a device on\n" +
		"/disable [device_id] or \"turn off\" - turn a device off\n" +
		"/status [device_id] or \"get status\" - check device state\n" +
		"Available devices: " + strings.Join(d.catalog.SupportedIDs(), ", ")
}
