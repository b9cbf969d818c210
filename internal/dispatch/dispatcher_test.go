package dispatch

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/tychang/imbridge/internal/binding"
	"github.com/tychang/imbridge/internal/device"
)

type fakePublisher struct {
	sessionKeys []string
	topics      []string
	payloads    [][]byte
	err         error
}

func (f *fakePublisher) Publish(sessionKey, topic string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sessionKeys = append(f.sessionKeys, sessionKey)
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeNotifier struct {
	sent []Notification
	err  error
}

func (f *fakeNotifier) Send(n Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

type fakeBindings struct {
	bound   map[string][]binding.Binding
	bindErr error
}

func newFakeBindings() *fakeBindings {
	return &fakeBindings{bound: make(map[string][]binding.Binding)}
}

func (f *fakeBindings) Bind(deviceID, chatID, platform string) error {
	if f.bindErr != nil {
		return f.bindErr
	}
	f.bound[deviceID] = append(f.bound[deviceID], binding.Binding{ChatID: chatID, Platform: platform})
	return nil
}

func (f *fakeBindings) BoundChats(deviceID string) []binding.Binding {
	return f.bound[deviceID]
}

func testCatalog(t *testing.T) *device.Catalog {
	t.Helper()
	catalog, err := device.NewCatalog([]string{"esp32_light_001", "raspberrypi_fan_002"})
	if err != nil {
		t.Fatalf("NewCatalog() unexpected error: %v", err)
	}
	return catalog
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakePublisher, *fakeNotifier, *fakeBindings) {
	t.Helper()
	pub := &fakePublisher{}
	notifier := &fakeNotifier{}
	bindings := newFakeBindings()
	d := NewDispatcher(testCatalog(t), bindings, pub, notifier, nil)
	return d, pub, notifier, bindings
}

func inbound(text string) Inbound {
	return Inbound{
		Platform: "telegram",
		ChatID:   "chat1",
		UserID:   "user1",
		Username: "alice",
		BotToken: "token1",
		Text:     text,
	}
}

func TestHandleMessageEnable(t *testing.T) {
	d, pub, notifier, _ := newTestDispatcher(t)

	if err := d.HandleMessage(inbound("/enable esp32_light_001")); err != nil {
		t.Fatalf("HandleMessage() unexpected error: %v", err)
	}

	if len(pub.topics) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.topics))
	}
	if got, want := pub.topics[0], "iot/esp32/light/enable"; got != want {
		t.Errorf("publish topic = %q, want %q", got, want)
	}
	if got, want := pub.sessionKeys[0], "chat1"; got != want {
		t.Errorf("session key = %q, want %q", got, want)
	}

	var envelope CommandEnvelope
	if err := json.Unmarshal(pub.payloads[0], &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	want := CommandEnvelope{
		Command:  CommandOn,
		ChatID:   "chat1",
		Platform: "telegram",
		DeviceID: "esp32_light_001",
		UserID:   "user1",
		Username: "alice",
		BotToken: "token1",
	}
	if envelope != want {
		t.Errorf("envelope = %+v, want %+v", envelope, want)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d replies, want 1", len(notifier.sent))
	}
	if got, want := notifier.sent[0].Text, "Command received: Enable esp32_light_001"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestHandleMessageDisablePhrase(t *testing.T) {
	d, pub, notifier, _ := newTestDispatcher(t)

	if err := d.HandleMessage(inbound("turn off raspberrypi_fan_002")); err != nil {
		t.Fatalf("HandleMessage() unexpected error: %v", err)
	}

	if got, want := pub.topics[0], "iot/raspberrypi/fan/disable"; got != want {
		t.Errorf("publish topic = %q, want %q", got, want)
	}
	var envelope CommandEnvelope
	if err := json.Unmarshal(pub.payloads[0], &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Command != CommandOff {
		t.Errorf("command = %q, want %q", envelope.Command, CommandOff)
	}
	if got, want := notifier.sent[0].Text, "Command received: Disable raspberrypi_fan_002"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestHandleMessageGetStatusUsesDefaultDevice(t *testing.T) {
	d, pub, notifier, _ := newTestDispatcher(t)

	msg := inbound("get status")
	msg.DefaultDeviceID = "esp32_light_001"
	if err := d.HandleMessage(msg); err != nil {
		t.Fatalf("HandleMessage() unexpected error: %v", err)
	}

	if got, want := pub.topics[0], "iot/esp32/light/get_status"; got != want {
		t.Errorf("publish topic = %q, want %q", got, want)
	}
	if got, want := notifier.sent[0].Text, "Command received: Get Status esp32_light_001"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestHandleMessageUnsupportedDevice(t *testing.T) {
	d, pub, notifier, _ := newTestDispatcher(t)

	err := d.HandleMessage(inbound("/enable unknown_device"))
	if !errors.Is(err, ErrUnsupportedDevice) {
		t.Fatalf("HandleMessage() error = %v, want ErrUnsupportedDevice", err)
	}

	if len(pub.topics) != 0 {
		t.Errorf("published %d messages for invalid device, want 0", len(pub.topics))
	}
	reply := notifier.sent[0].Text
	if !strings.HasPrefix(reply, "Invalid device ID: unknown_device.") {
		t.Errorf("reply = %q, want invalid-device message", reply)
	}
	if !strings.Contains(reply, "esp32_light_001") || !strings.Contains(reply, "raspberrypi_fan_002") {
		t.Errorf("reply %q does not enumerate supported devices", reply)
	}
}

func TestHandleMessageNoDeviceResolved(t *testing.T) {
	d, pub, _, _ := newTestDispatcher(t)

	err := d.HandleMessage(inbound("/enable"))
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("HandleMessage() error = %v, want ErrNoDevice", err)
	}
	if len(pub.topics) != 0 {
		t.Errorf("published %d messages without a device, want 0", len(pub.topics))
	}
}

func TestHandleMessageInvalidCommand(t *testing.T) {
	d, _, notifier, _ := newTestDispatcher(t)

	err := d.HandleMessage(inbound("do the thing"))
	if !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("HandleMessage() error = %v, want ErrInvalidCommand", err)
	}
	if got := notifier.sent[0].Text; got != replyInvalidCommand {
		t.Errorf("reply = %q, want %q", got, replyInvalidCommand)
	}
}

func TestHandleMessageHelp(t *testing.T) {
	d, _, notifier, _ := newTestDispatcher(t)

	if err := d.HandleMessage(inbound("/start")); err != nil {
		t.Fatalf("HandleMessage() unexpected error: %v", err)
	}
	if !strings.Contains(notifier.sent[0].Text, "/bind") {
		t.Errorf("help reply %q does not mention /bind", notifier.sent[0].Text)
	}
}

func TestHandleMessagePublishFailure(t *testing.T) {
	d, pub, notifier, _ := newTestDispatcher(t)
	pub.err = errors.New("broker down")

	err := d.HandleMessage(inbound("/enable esp32_light_001"))
	if err == nil {
		t.Fatal("HandleMessage() expected error on publish failure")
	}
	if got := notifier.sent[0].Text; got != replyInternalError {
		t.Errorf("reply = %q, want %q", got, replyInternalError)
	}
}

func TestHandleBindFirstBinder(t *testing.T) {
	d, _, notifier, bindings := newTestDispatcher(t)

	if err := d.HandleMessage(inbound("/bind esp32_light_001")); err != nil {
		t.Fatalf("HandleMessage() unexpected error: %v", err)
	}

	if got := len(bindings.bound["esp32_light_001"]); got != 1 {
		t.Fatalf("bound %d chats, want 1", got)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d messages, want 1 (no group to notify yet)", len(notifier.sent))
	}
	if got, want := notifier.sent[0].Text, "Successfully bound to device esp32_light_001"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestHandleBindNotifiesGroup(t *testing.T) {
	d, _, notifier, bindings := newTestDispatcher(t)
	bindings.bound["esp32_light_001"] = []binding.Binding{
		{ChatID: "chat9", Platform: "line"},
	}

	if err := d.HandleMessage(inbound("/bind esp32_light_001")); err != nil {
		t.Fatalf("HandleMessage() unexpected error: %v", err)
	}

	if len(notifier.sent) != 2 {
		t.Fatalf("sent %d messages, want 2 (confirmation + join notice)", len(notifier.sent))
	}
	join := notifier.sent[1]
	if join.ChatID != "chat9" || join.Platform != "line" {
		t.Errorf("join notice sent to %s/%s, want chat9/line", join.Platform, join.ChatID)
	}
	if got, want := join.Text, "User alice has joined the group for device esp32_light_001"; got != want {
		t.Errorf("join notice = %q, want %q", got, want)
	}
}

func TestHandleBindUnsupportedDevice(t *testing.T) {
	d, _, _, bindings := newTestDispatcher(t)

	err := d.HandleMessage(inbound("/bind nope"))
	if !errors.Is(err, ErrUnsupportedDevice) {
		t.Fatalf("HandleMessage() error = %v, want ErrUnsupportedDevice", err)
	}
	if len(bindings.bound) != 0 {
		t.Error("binding recorded for unsupported device")
	}
}

func TestCommandEnvelopeValidation(t *testing.T) {
	tests := []struct {
		name     string
		envelope CommandEnvelope
		wantErr  bool
	}{
		{
			name:     "valid",
			envelope: CommandEnvelope{Command: CommandOn, ChatID: "c", DeviceID: "d"},
		},
		{
			name:     "bad command",
			envelope: CommandEnvelope{Command: "reboot", ChatID: "c", DeviceID: "d"},
			wantErr:  true,
		},
		{
			name:     "missing device",
			envelope: CommandEnvelope{Command: CommandOn, ChatID: "c"},
			wantErr:  true,
		},
		{
			name:     "missing chat",
			envelope: CommandEnvelope{Command: CommandOn, DeviceID: "d"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.envelope.Encode()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEnvelope) {
					t.Fatalf("Encode() error = %v, want ErrInvalidEnvelope", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Encode() unexpected error: %v", err)
			}
			decoded, err := DecodeCommandEnvelope(data)
			if err != nil {
				t.Fatalf("DecodeCommandEnvelope() unexpected error: %v", err)
			}
			if decoded != tt.envelope {
				t.Errorf("round trip = %+v, want %+v", decoded, tt.envelope)
			}
		})
	}
}

func TestDecodeCommandEnvelopeMalformed(t *testing.T) {
	if _, err := DecodeCommandEnvelope([]byte("{not json")); !errors.Is(err, ErrInvalidEnvelope) {
		t.Errorf("DecodeCommandEnvelope() error = %v, want ErrInvalidEnvelope", err)
	}
}
