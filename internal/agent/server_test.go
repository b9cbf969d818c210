package agent

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/tychang/imbridge/internal/executor"
)

func newDeviceServer(t *testing.T, verifier *executor.Verifier) *httptest.Server {
	t.Helper()
	srv := NewDeviceServer(testDevice(), verifier, nil)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func callDevice(t *testing.T, ts *httptest.Server, op string, params url.Values) executor.Response {
	t.Helper()
	resp, err := ts.Client().Get(fmt.Sprintf("%s/%s?%s", ts.URL, op, params.Encode()))
	if err != nil {
		t.Fatalf("GET /%s: %v", op, err)
	}
	defer resp.Body.Close()

	var out executor.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func unsignedParams(deviceID string) url.Values {
	params := url.Values{}
	params.Set("device_id", deviceID)
	params.Set("chat_id", "chat1")
	params.Set("timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	params.Set("signature", "")
	return params
}

func TestDeviceServerLifecycle(t *testing.T) {
	ts := newDeviceServer(t, nil)

	resp := callDevice(t, ts, executor.OpGetStatus, unsignedParams("esp32_light_001"))
	if !resp.Succeeded() || resp.State != "off" {
		t.Errorf("initial status = %+v, want success/off", resp)
	}

	resp = callDevice(t, ts, executor.OpEnable, unsignedParams("esp32_light_001"))
	if !resp.Succeeded() || resp.State != "on" {
		t.Errorf("enable = %+v, want success/on", resp)
	}

	resp = callDevice(t, ts, executor.OpGetStatus, unsignedParams("esp32_light_001"))
	if resp.State != "on" {
		t.Errorf("status after enable = %q, want on", resp.State)
	}

	resp = callDevice(t, ts, executor.OpDisable, unsignedParams("esp32_light_001"))
	if !resp.Succeeded() || resp.State != "off" {
		t.Errorf("disable = %+v, want success/off", resp)
	}
}

func TestDeviceServerRejectsUnknownDevice(t *testing.T) {
	ts := newDeviceServer(t, nil)

	resp := callDevice(t, ts, executor.OpEnable, unsignedParams("esp32_light_999"))
	if resp.Succeeded() {
		t.Errorf("enable for unknown device = %+v, want error", resp)
	}
}

func TestDeviceServerVerifiesSignatures(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	ts := newDeviceServer(t, executor.NewVerifier(&key.PublicKey))

	// Unsigned request is rejected.
	resp := callDevice(t, ts, executor.OpEnable, unsignedParams("esp32_light_001"))
	if resp.Succeeded() {
		t.Errorf("unsigned enable = %+v, want error", resp)
	}

	// Properly signed request through the executor client succeeds.
	endpoints := executor.NewEndpoints("", map[string]string{"esp32": ts.URL}, 0, nil)
	client := executor.NewClient(endpoints, executor.NewECDSASignerFromKey(key))

	out, err := client.Enable("esp32", executor.Request{
		DeviceID: "esp32_light_001",
		ChatID:   "chat1",
	})
	if err != nil {
		t.Fatalf("Enable() unexpected error: %v", err)
	}
	if !out.Succeeded() || out.State != "on" {
		t.Errorf("signed enable = %+v, want success/on", out)
	}
}
