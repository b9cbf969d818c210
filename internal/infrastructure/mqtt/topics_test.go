package mqtt

import (
	"errors"
	"testing"
)

func TestTopicsDeviceCommand(t *testing.T) {
	var topics Topics

	got := topics.DeviceCommand("esp32", "light", "enable")
	want := "iot/esp32/light/enable"
	if got != want {
		t.Errorf("DeviceCommand() = %q, want %q", got, want)
	}
}

func TestTopicsDeviceCommands(t *testing.T) {
	var topics Topics

	got := topics.DeviceCommands("raspberrypi", "fan")
	want := "iot/raspberrypi/fan/#"
	if got != want {
		t.Errorf("DeviceCommands() = %q, want %q", got, want)
	}
}

func TestTopicsStatusUpdate(t *testing.T) {
	var topics Topics

	got := topics.StatusUpdate("telegram", "chat42")
	want := "im/telegram/chat42/status_update"
	if got != want {
		t.Errorf("StatusUpdate() = %q, want %q", got, want)
	}
}

func TestTopicsAllStatusEvents(t *testing.T) {
	var topics Topics

	if got := topics.AllStatusEvents(); got != "im/#" {
		t.Errorf("AllStatusEvents() = %q, want %q", got, "im/#")
	}
}

func TestDecodeRoutingKey(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		want    RoutingKey
		wantErr bool
	}{
		{
			name:  "telegram status update",
			topic: "im/telegram/12345/status_update",
			want:  RoutingKey{Platform: "telegram", ChatID: "12345", Event: "status_update"},
		},
		{
			name:  "line status update",
			topic: "im/line/group01/status_update",
			want:  RoutingKey{Platform: "line", ChatID: "group01", Event: "status_update"},
		},
		{
			name:    "missing prefix",
			topic:   "iot/esp32/light/enable",
			wantErr: true,
		},
		{
			name:    "too few segments",
			topic:   "im/telegram/12345",
			wantErr: true,
		},
		{
			name:    "too many segments",
			topic:   "im/telegram/12345/status_update/extra",
			wantErr: true,
		},
		{
			name:    "empty segment",
			topic:   "im/telegram//status_update",
			wantErr: true,
		},
		{
			name:    "empty topic",
			topic:   "",
			wantErr: true,
		},
		{
			name:    "prefix only",
			topic:   "im/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRoutingKey(tt.topic)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRoutingKey) {
					t.Fatalf("DecodeRoutingKey(%q) error = %v, want ErrInvalidRoutingKey", tt.topic, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeRoutingKey(%q) unexpected error: %v", tt.topic, err)
			}
			if got != tt.want {
				t.Errorf("DecodeRoutingKey(%q) = %+v, want %+v", tt.topic, got, tt.want)
			}
		})
	}
}
