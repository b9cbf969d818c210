package platform

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tychang/imbridge/internal/dispatch"
)

// Platform name constants as they appear in routing keys and envelopes.
const (
	Line     = "line"
	Telegram = "telegram"
)

// Supported reports whether the platform name is one the bridge can
// deliver to.
func Supported(name string) bool {
	return name == Line || name == Telegram
}

// Message is one outbound chat message in platform-neutral form.
type Message struct {
	ChatID   string
	UserID   string
	Username string
	BotToken string
	Text     string
}

// Sender delivers a message through one messaging platform.
type Sender interface {
	SendMessage(msg Message) error
}

// Mux routes outbound messages to the sender for their platform. It
// satisfies dispatch.Notifier so command handling and the status relay
// can send replies without knowing which platforms exist.
type Mux struct {
	senders map[string]Sender
}

// NewMux creates a mux over the given platform senders.
func NewMux(senders map[string]Sender) *Mux {
	m := make(map[string]Sender, len(senders))
	for name, s := range senders {
		m[name] = s
	}
	return &Mux{senders: m}
}

// Send delivers a notification via the sender registered for its
// platform.
//
// Returns:
//   - error: ErrUnknownPlatform when no sender is registered, or the
//     sender's delivery error
func (m *Mux) Send(n dispatch.Notification) error {
	sender, ok := m.senders[n.Platform]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlatform, n.Platform)
	}
	return sender.SendMessage(Message{
		ChatID:   n.ChatID,
		UserID:   n.UserID,
		Username: n.Username,
		BotToken: n.BotToken,
		Text:     n.Text,
	})
}

// Platforms returns the registered platform names.
func (m *Mux) Platforms() []string {
	names := make([]string, 0, len(m.senders))
	for name := range m.senders {
		names = append(names, name)
	}
	return names
}

// maxAdapterResponseSize bounds how much of an adapter response body is read.
const maxAdapterResponseSize = 64 * 1024

// adapterResponse is the body the adapter services return from /SendMsg.
// OK is a pointer so adapters that return no body still count as success.
type adapterResponse struct {
	OK *bool `json:"ok"`
}

// checkSendResponse validates an adapter's /SendMsg response: the status
// must be 2xx and, when the body carries an "ok" field, it must be true.
func checkSendResponse(name string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxAdapterResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s: status %d", ErrSendFailed, name, resp.StatusCode)
	}

	var parsed adapterResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.OK != nil && !*parsed.OK {
		return fmt.Errorf("%w: %s: adapter reported failure", ErrSendFailed, name)
	}
	return nil
}
