package relay

import (
	"fmt"

	"github.com/tychang/imbridge/internal/binding"
	"github.com/tychang/imbridge/internal/dispatch"
	"github.com/tychang/imbridge/internal/infrastructure/mqtt"
	"github.com/tychang/imbridge/internal/platform"
)

// Logger defines the logging interface used by the Consumer.
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

// Subscriber is the broker subscription capability the consumer needs.
// *mqtt.Client satisfies this.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Bindings is the subset of the binding registry used for fan-out.
type Bindings interface {
	BoundChats(deviceID string) []binding.Binding
}

// Recorder persists a delivered status notification. Optional.
type Recorder interface {
	RecordNotification(deviceID, chatID, platform, status, username string) error
}

// StatusWriter records a status transition in the metrics store.
// Optional.
type StatusWriter interface {
	WriteStatus(deviceID, status, username, platform string)
}

// Consumer subscribes to the status topic tree and relays device state
// changes back to chat users.
//
// Unprocessable messages are dropped, never retried: a malformed event
// blocking the stream would hold up every later status update, and a
// missed notification is recoverable by the user asking for status
// again. Broker-level reconnection and re-subscription are handled by
// the underlying client.
type Consumer struct {
	subscriber Subscriber
	notifier   dispatch.Notifier
	bindings   Bindings
	greeter    *Greeter
	recorder   Recorder
	metrics    StatusWriter
	topics     mqtt.Topics
	qos        byte
	logger     Logger
}

// ConsumerOptions configures optional consumer collaborators.
type ConsumerOptions struct {
	// Recorder persists notifications for the history API. Nil disables.
	Recorder Recorder

	// Metrics records status transitions. Nil disables.
	Metrics StatusWriter

	// QoS for the status subscription.
	QoS byte

	// Logger for drop and delivery events. Nil disables logging.
	Logger Logger
}

// NewConsumer creates a status relay consumer.
//
// Parameters:
//   - subscriber: Broker subscription capability
//   - notifier: Chat delivery mux
//   - bindings: Binding registry for group fan-out
//   - opts: Optional collaborators
//
// Returns:
//   - *Consumer: Consumer ready for Start
func NewConsumer(subscriber Subscriber, notifier dispatch.Notifier, bindings Bindings, opts ConsumerOptions) *Consumer {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Consumer{
		subscriber: subscriber,
		notifier:   notifier,
		bindings:   bindings,
		greeter:    NewGreeter(),
		recorder:   opts.Recorder,
		metrics:    opts.Metrics,
		qos:        opts.QoS,
		logger:     logger,
	}
}

// Start subscribes to the full status topic tree. Events arrive on the
// client's network goroutine until the client closes.
func (c *Consumer) Start() error {
	return c.subscriber.Subscribe(c.topics.AllStatusEvents(), c.qos, c.handleMessage)
}

// handleMessage runs the per-message drop-or-deliver decision chain.
// Every early return before delivery is a deliberate drop.
func (c *Consumer) handleMessage(topic string, payload []byte) error {
	event, err := dispatch.DecodeStatusEvent(payload)
	if err != nil {
		c.logger.Warn("dropping malformed status event", "topic", topic, "error", err)
		return nil
	}

	key, err := mqtt.DecodeRoutingKey(topic)
	if err != nil {
		c.logger.Warn("dropping event with bad routing key", "topic", topic, "error", err)
		return nil
	}

	if key.Event != mqtt.EventStatusUpdate {
		c.logger.Debug("ignoring non-status event", "topic", topic, "event", key.Event)
		return nil
	}
	if event.DeviceStatus == "" {
		c.logger.Warn("dropping status event without device_status", "topic", topic)
		return nil
	}
	if event.ChatID == "" {
		c.logger.Warn("dropping status event without chat_id", "topic", topic)
		return nil
	}
	if !platform.Supported(key.Platform) {
		c.logger.Warn("dropping status event for unknown platform", "topic", topic, "platform", key.Platform)
		return nil
	}

	c.deliver(key, event)
	return nil
}

// deliver notifies the originating chat and fans out to the rest of
// the device's group. Send failures are logged per recipient; one
// unreachable chat never blocks the others.
func (c *Consumer) deliver(key mqtt.RoutingKey, event dispatch.StatusEvent) {
	prefix := c.greeter.Prefix(event.ChatID, event.Username)
	originText := fmt.Sprintf("%sDevice %s is now %s, operated by user %s",
		prefix, event.DeviceID, event.DeviceStatus, event.Username)

	err := c.notifier.Send(dispatch.Notification{
		Platform: key.Platform,
		ChatID:   event.ChatID,
		UserID:   event.UserID,
		Username: event.Username,
		BotToken: event.BotToken,
		Text:     originText,
	})
	if err != nil {
		c.logger.Error("status delivery to originator failed",
			"chat_id", event.ChatID,
			"platform", key.Platform,
			"error", err,
		)
	}

	groupText := fmt.Sprintf("Device %s has been set to %s by user %s",
		event.DeviceID, event.DeviceStatus, event.Username)

	notified := map[string]struct{}{
		key.Platform + "/" + event.ChatID: {},
	}
	for _, b := range c.bindings.BoundChats(event.DeviceID) {
		recipient := b.Platform + "/" + b.ChatID
		if _, done := notified[recipient]; done {
			continue
		}
		notified[recipient] = struct{}{}

		err := c.notifier.Send(dispatch.Notification{
			Platform: b.Platform,
			ChatID:   b.ChatID,
			Username: event.Username,
			BotToken: event.BotToken,
			Text:     groupText,
		})
		if err != nil {
			c.logger.Error("status fan-out failed",
				"chat_id", b.ChatID,
				"platform", b.Platform,
				"error", err,
			)
		}
	}

	if c.recorder != nil {
		err := c.recorder.RecordNotification(event.DeviceID, event.ChatID, key.Platform, event.DeviceStatus, event.Username)
		if err != nil {
			c.logger.Warn("notification history write failed", "device_id", event.DeviceID, "error", err)
		}
	}
	if c.metrics != nil {
		c.metrics.WriteStatus(event.DeviceID, event.DeviceStatus, event.Username, key.Platform)
	}

	c.logger.Info("status relayed",
		"device_id", event.DeviceID,
		"status", event.DeviceStatus,
		"chat_id", event.ChatID,
		"recipients", len(notified),
	)
}
