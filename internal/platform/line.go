package platform

import (
	"fmt"
	"net/http"
	"net/url"
)

// LineClient delivers messages through the LINE adapter service.
//
// LINE addresses targets by user id rather than chat id, so the chat
// identity travels as the user_id parameter and the acting user as
// caller_user_id.
type LineClient struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

// NewLineClient creates a LINE sender with a 5 second per-call timeout.
func NewLineClient(baseURL, accessToken string) *LineClient {
	return &LineClient{
		baseURL:     baseURL,
		accessToken: accessToken,
		client:      &http.Client{Timeout: defaultSendTimeout},
	}
}

// SendMessage delivers one message to a LINE chat.
//
// Returns:
//   - error: ErrSendFailed on transport failure, a non-2xx response, or
//     an adapter body reporting ok=false
func (l *LineClient) SendMessage(msg Message) error {
	token := msg.BotToken
	if token == "" {
		token = l.accessToken
	}

	params := url.Values{}
	params.Set("user_id", msg.ChatID)
	params.Set("message", msg.Text)
	params.Set("caller_user_id", msg.UserID)
	params.Set("bot_token", token)

	endpoint := fmt.Sprintf("%s/SendMsg?%s", l.baseURL, params.Encode())
	resp, err := l.client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("%w: line: %w", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	return checkSendResponse(Line, resp)
}
