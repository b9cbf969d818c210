package platform

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// defaultSendTimeout bounds each platform HTTP call.
const defaultSendTimeout = 5 * time.Second

// TelegramClient delivers messages through the Telegram adapter
// service.
type TelegramClient struct {
	baseURL  string
	botToken string
	client   *http.Client
}

// NewTelegramClient creates a Telegram sender.
//
// Parameters:
//   - baseURL: Adapter base URL, e.g. "http://localhost:8081"
//   - botToken: Default bot token used when a message carries none
//
// Returns:
//   - *TelegramClient: Sender with a 5 second per-call timeout
func NewTelegramClient(baseURL, botToken string) *TelegramClient {
	return &TelegramClient{
		baseURL:  baseURL,
		botToken: botToken,
		client:   &http.Client{Timeout: defaultSendTimeout},
	}
}

// SendMessage delivers one message to a Telegram chat.
//
// Returns:
//   - error: ErrSendFailed on transport failure, a non-2xx response, or
//     an adapter body reporting ok=false
func (t *TelegramClient) SendMessage(msg Message) error {
	token := msg.BotToken
	if token == "" {
		token = t.botToken
	}

	params := url.Values{}
	params.Set("chat_id", msg.ChatID)
	params.Set("message", msg.Text)
	params.Set("user_id", msg.UserID)
	params.Set("bot_token", token)

	endpoint := fmt.Sprintf("%s/SendMsg?%s", t.baseURL, params.Encode())
	resp, err := t.client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("%w: telegram: %w", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	return checkSendResponse(Telegram, resp)
}
