package executor

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Operation names as they appear in executor URL paths.
const (
	OpEnable    = "Enable"
	OpDisable   = "Disable"
	OpGetStatus = "GetStatus"
)

// Request carries one device operation to an executor service.
type Request struct {
	DeviceID string
	ChatID   string
	Username string
	BotToken string
}

// Response is an executor's reply.
type Response struct {
	Status  string `json:"status"`
	State   string `json:"state,omitempty"`
	Message string `json:"message"`
}

// Succeeded reports whether the executor accepted the operation.
func (r Response) Succeeded() bool {
	return r.Status == "success"
}

// Client calls device executor services over HTTP. Each call carries a
// signed timestamp so executors can reject replayed or forged commands.
type Client struct {
	endpoints *Endpoints
	signer    Signer
	client    *http.Client
	now       func() time.Time
}

// NewClient creates an executor client.
//
// Parameters:
//   - endpoints: Manufacturer to base URL registry
//   - signer: Command signer; NoopSigner for unsigned deployments
//
// Returns:
//   - *Client: Client with a 5 second per-call timeout
func NewClient(endpoints *Endpoints, signer Signer) *Client {
	if signer == nil {
		signer = NoopSigner{}
	}
	return &Client{
		endpoints: endpoints,
		signer:    signer,
		client:    &http.Client{Timeout: 5 * time.Second},
		now:       time.Now,
	}
}

// Enable turns the device on.
func (c *Client) Enable(manufacturer string, req Request) (Response, error) {
	return c.call(manufacturer, OpEnable, req)
}

// Disable turns the device off.
func (c *Client) Disable(manufacturer string, req Request) (Response, error) {
	return c.call(manufacturer, OpDisable, req)
}

// GetStatus queries the device's current state.
func (c *Client) GetStatus(manufacturer string, req Request) (Response, error) {
	return c.call(manufacturer, OpGetStatus, req)
}

// call performs one signed executor request.
func (c *Client) call(manufacturer, operation string, req Request) (Response, error) {
	base, err := c.endpoints.BaseURL(manufacturer)
	if err != nil {
		return Response{}, err
	}

	timestamp := c.now().Unix()
	signature, err := c.signer.Sign(req.ChatID, timestamp)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	params := url.Values{}
	params.Set("device_id", req.DeviceID)
	params.Set("chat_id", req.ChatID)
	params.Set("timestamp", strconv.FormatInt(timestamp, 10))
	params.Set("signature", signature)
	params.Set("username", req.Username)
	params.Set("bot_token", req.BotToken)

	endpoint := fmt.Sprintf("%s/%s?%s", strings.TrimSuffix(base, "/"), operation, params.Encode())
	resp, err := c.client.Get(endpoint)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s %s: %w", ErrExecutionFailed, manufacturer, operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read response: %w", ErrExecutionFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, fmt.Errorf("%w: %s %s: status %d", ErrExecutionFailed, manufacturer, operation, resp.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return Response{}, fmt.Errorf("%w: decode response: %w", ErrExecutionFailed, err)
	}
	return out, nil
}
