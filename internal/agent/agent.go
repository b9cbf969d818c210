package agent

import (
	"fmt"
	"time"

	"github.com/tychang/imbridge/internal/device"
	"github.com/tychang/imbridge/internal/dispatch"
	"github.com/tychang/imbridge/internal/executor"
	"github.com/tychang/imbridge/internal/infrastructure/mqtt"
)

// Status publish retry policy. Losing a status event means a user
// never hears back, so the publish is retried harder than a command.
const (
	statusPublishAttempts = 3
	statusPublishBackoff  = 2 * time.Second
)

// Logger defines the logging interface used by the Agent.
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

// Broker is the subscribe-and-publish capability the agent needs.
// *mqtt.Client satisfies this.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	PublishJSON(topic string, payload []byte) error
}

// Executor invokes device operations. *executor.Client satisfies this.
type Executor interface {
	Enable(manufacturer string, req executor.Request) (executor.Response, error)
	Disable(manufacturer string, req executor.Request) (executor.Response, error)
	GetStatus(manufacturer string, req executor.Request) (executor.Response, error)
}

// Agent consumes command envelopes for one device, invokes the device
// executor, and publishes the resulting status event back toward the
// originating chat.
//
// The agent subscribes to its device's manufacturer/type topic tree
// and ignores envelopes addressed to other devices sharing the tree,
// so several agents of the same class can coexist on one broker.
type Agent struct {
	broker   Broker
	executor Executor
	device   device.Device
	topics   mqtt.Topics
	qos      byte
	logger   Logger

	// sleep is swapped in tests to avoid real backoff delays.
	sleep func(time.Duration)
}

// New creates an agent for one device.
//
// Parameters:
//   - broker: Broker connection for commands in and status out
//   - exec: Device executor client
//   - dev: The device this agent serves
//   - qos: QoS for the command subscription
//   - logger: Logger; nil disables logging
//
// Returns:
//   - *Agent: Agent ready for Start
func New(broker Broker, exec Executor, dev device.Device, qos byte, logger Logger) *Agent {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Agent{
		broker:   broker,
		executor: exec,
		device:   dev,
		qos:      qos,
		logger:   logger,
		sleep:    time.Sleep,
	}
}

// Start subscribes to the device's command topic tree.
func (a *Agent) Start() error {
	topic := a.topics.DeviceCommands(string(a.device.Manufacturer), string(a.device.Type))
	if err := a.broker.Subscribe(topic, a.qos, a.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	a.logger.Info("agent listening for commands", "device_id", a.device.ID, "topic", topic)
	return nil
}

// handleCommand processes one command envelope.
func (a *Agent) handleCommand(topic string, payload []byte) error {
	envelope, err := dispatch.DecodeCommandEnvelope(payload)
	if err != nil {
		a.logger.Warn("dropping malformed command", "topic", topic, "error", err)
		return nil
	}

	// Commands for other devices share this topic tree.
	if envelope.DeviceID != a.device.ID {
		a.logger.Debug("ignoring command for another device",
			"device_id", envelope.DeviceID,
			"our_device_id", a.device.ID,
		)
		return nil
	}

	resp, err := a.execute(envelope)
	if err != nil {
		a.logger.Error("device execution failed",
			"device_id", a.device.ID,
			"command", string(envelope.Command),
			"error", err,
		)
		return err
	}

	status := resp.State
	if status == "" {
		status = resp.Status
	}

	a.publishStatus(envelope, status)
	return nil
}

// execute invokes the executor operation matching the command.
func (a *Agent) execute(envelope dispatch.CommandEnvelope) (executor.Response, error) {
	req := executor.Request{
		DeviceID: envelope.DeviceID,
		ChatID:   envelope.ChatID,
		Username: envelope.Username,
		BotToken: envelope.BotToken,
	}
	manufacturer := string(a.device.Manufacturer)

	switch envelope.Command {
	case dispatch.CommandOn:
		return a.executor.Enable(manufacturer, req)
	case dispatch.CommandOff:
		return a.executor.Disable(manufacturer, req)
	default:
		return a.executor.GetStatus(manufacturer, req)
	}
}

// publishStatus sends the status event with bounded retry. After the
// final failed attempt the event is abandoned with an error log; the
// user can recover by asking for status.
func (a *Agent) publishStatus(envelope dispatch.CommandEnvelope, status string) {
	event := dispatch.StatusEvent{
		DeviceStatus: status,
		DeviceID:     envelope.DeviceID,
		ChatID:       envelope.ChatID,
		Platform:     envelope.Platform,
		UserID:       envelope.UserID,
		Username:     envelope.Username,
		BotToken:     envelope.BotToken,
	}
	payload, err := event.Encode()
	if err != nil {
		a.logger.Error("status event encode failed", "device_id", envelope.DeviceID, "error", err)
		return
	}

	topic := a.topics.StatusUpdate(envelope.Platform, envelope.ChatID)

	var lastErr error
	for attempt := 1; attempt <= statusPublishAttempts; attempt++ {
		lastErr = a.broker.PublishJSON(topic, payload)
		if lastErr == nil {
			a.logger.Info("status published",
				"device_id", envelope.DeviceID,
				"status", status,
				"topic", topic,
			)
			return
		}
		a.logger.Warn("status publish attempt failed",
			"attempt", attempt,
			"max_attempts", statusPublishAttempts,
			"error", lastErr,
		)
		if attempt < statusPublishAttempts {
			a.sleep(statusPublishBackoff)
		}
	}

	a.logger.Error("status publish abandoned",
		"device_id", envelope.DeviceID,
		"topic", topic,
		"error", lastErr,
	)
}
