package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tychang/imbridge/internal/binding"
	"github.com/tychang/imbridge/internal/device"
	"github.com/tychang/imbridge/internal/dispatch"
	"github.com/tychang/imbridge/internal/history"
	"github.com/tychang/imbridge/internal/infrastructure/config"
	"github.com/tychang/imbridge/internal/infrastructure/logging"
)

type fakeHandler struct {
	got []dispatch.Inbound
	err error
}

func (f *fakeHandler) HandleMessage(msg dispatch.Inbound) error {
	f.got = append(f.got, msg)
	return f.err
}

type fakeBindings struct {
	doc map[string][]binding.Binding
}

func (f *fakeBindings) BoundChats(deviceID string) []binding.Binding {
	return f.doc[deviceID]
}

func (f *fakeBindings) Snapshot() map[string][]binding.Binding {
	return f.doc
}

type fakeNotifier struct {
	sent    []dispatch.Notification
	failFor string // chat_id that should fail
}

func (f *fakeNotifier) Send(n dispatch.Notification) error {
	if n.ChatID == f.failFor {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, n)
	return nil
}

type fakeHistory struct {
	notifications []history.Notification
	err           error
	gotDevice     string
	gotLimit      int
}

func (f *fakeHistory) Record(_ context.Context, _ *history.Notification) error {
	return nil
}

func (f *fakeHistory) History(_ context.Context, deviceID string, limit int) ([]history.Notification, error) {
	f.gotDevice = deviceID
	f.gotLimit = limit
	return f.notifications, f.err
}

type testEnv struct {
	server   *Server
	router   http.Handler
	handler  *fakeHandler
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()

	catalog, err := device.NewCatalog([]string{"esp32_light_001", "tuya_plug_002"})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	handler := &fakeHandler{}
	notifier := &fakeNotifier{}
	deps := Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: 8080},
		Logger:  logging.Default(),
		Handler: handler,
		Catalog: catalog,
		Bindings: &fakeBindings{doc: map[string][]binding.Binding{
			"esp32_light_001": {
				{ChatID: "chat1", Platform: "telegram"},
				{ChatID: "chat2", Platform: "line"},
			},
		}},
		Notifier: notifier,
		Version:  "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	server, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEnv{
		server:   server,
		router:   server.buildRouter(),
		handler:  handler,
		notifier: notifier,
	}
}

func (e *testEnv) do(method, path string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestPostMessage(t *testing.T) {
	env := newTestEnv(t)

	payload := `{"platform":"telegram","chat_id":"chat1","user_id":"u1","username":"alice","text":"turn on","device_id":"esp32_light_001"}`
	rec := env.do(http.MethodPost, "/api/v1/messages", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	if len(env.handler.got) != 1 {
		t.Fatalf("handler received %d messages, want 1", len(env.handler.got))
	}
	msg := env.handler.got[0]
	if msg.Platform != "telegram" || msg.ChatID != "chat1" {
		t.Errorf("inbound = %+v, want platform telegram chat chat1", msg)
	}
	if msg.Text != "turn on" {
		t.Errorf("text = %q, want %q", msg.Text, "turn on")
	}
	if msg.DefaultDeviceID != "esp32_light_001" {
		t.Errorf("default device = %q, want esp32_light_001", msg.DefaultDeviceID)
	}
}

func TestPostMessageValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{not json`},
		{"missing platform", `{"chat_id":"chat1","text":"hi"}`},
		{"missing chat_id", `{"platform":"telegram","text":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(http.MethodPost, "/api/v1/messages", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if len(env.handler.got) != 0 {
				t.Errorf("handler received %d messages, want 0", len(env.handler.got))
			}
		})
	}
}

func TestPostMessageHandlerErrorStillOK(t *testing.T) {
	env := newTestEnv(t)
	env.handler.err = errors.New("publish failed")

	rec := env.do(http.MethodPost, "/api/v1/messages", `{"platform":"telegram","chat_id":"chat1","text":"turn on"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: command errors are reported to the chat, not the webhook", rec.Code)
	}
}

func TestListDevices(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/devices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}

	devices, ok := body["devices"].([]any)
	if !ok || len(devices) != 2 {
		t.Fatalf("devices = %v, want 2 entries", body["devices"])
	}
	byID := make(map[string]map[string]any)
	for _, d := range devices {
		entry := d.(map[string]any)
		byID[entry["id"].(string)] = entry
	}

	light := byID["esp32_light_001"]
	if light == nil {
		t.Fatal("esp32_light_001 missing from listing")
	}
	if light["manufacturer"] != "esp32" || light["type"] != "light" {
		t.Errorf("light entry = %v, want esp32/light", light)
	}
	if light["bound"] != true {
		t.Errorf("light bound = %v, want true", light["bound"])
	}
	if plug := byID["tuya_plug_002"]; plug == nil || plug["bound"] != false {
		t.Errorf("plug entry = %v, want bound false", plug)
	}
}

func TestSendGroup(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/send/group?device_id=esp32_light_001&message=maintenance+tonight", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["sent"] != float64(2) || body["failed"] != float64(0) {
		t.Errorf("sent/failed = %v/%v, want 2/0", body["sent"], body["failed"])
	}

	if len(env.notifier.sent) != 2 {
		t.Fatalf("notifier sent %d messages, want 2", len(env.notifier.sent))
	}
	for _, n := range env.notifier.sent {
		if n.Text != "maintenance tonight" {
			t.Errorf("text = %q, want %q", n.Text, "maintenance tonight")
		}
	}
}

func TestSendGroupUnknownDevice(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/send/group?device_id=nope&message=hi", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if len(env.notifier.sent) != 0 {
		t.Errorf("notifier sent %d messages, want 0", len(env.notifier.sent))
	}
}

func TestSendGroupNoBoundChats(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/send/group?device_id=tuya_plug_002&message=hi", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for device with no bound chats", rec.Code)
	}
}

func TestSendGroupMissingParams(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/api/v1/send/group?message=hi",
		"/api/v1/send/group?device_id=esp32_light_001",
	} {
		rec := env.do(http.MethodGet, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestSendGroupCountsFailures(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.failFor = "chat2"

	rec := env.do(http.MethodGet, "/api/v1/send/group?device_id=esp32_light_001&message=hi", "")
	body := decodeBody(t, rec)
	if body["sent"] != float64(1) || body["failed"] != float64(1) {
		t.Errorf("sent/failed = %v/%v, want 1/1", body["sent"], body["failed"])
	}
}

func TestSendAllDeduplicatesChats(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Bindings = &fakeBindings{doc: map[string][]binding.Binding{
			"esp32_light_001": {
				{ChatID: "chat1", Platform: "telegram"},
				{ChatID: "chat2", Platform: "line"},
			},
			"tuya_plug_002": {
				{ChatID: "chat1", Platform: "telegram"}, // same chat, second device
				{ChatID: "chat3", Platform: "telegram"},
			},
		}}
	})

	rec := env.do(http.MethodGet, "/api/v1/send/all?message=hello", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["sent"] != float64(3) {
		t.Errorf("sent = %v, want 3 (chat1 bound twice must receive once)", body["sent"])
	}
}

func TestSendAllRequiresMessage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/send/all", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	store := &fakeHistory{notifications: []history.Notification{
		{ID: 2, DeviceID: "esp32_light_001", ChatID: "chat1", Status: "on"},
		{ID: 1, DeviceID: "esp32_light_001", ChatID: "chat1", Status: "off"},
	}}
	env := newTestEnv(t, func(d *Deps) { d.History = store })

	rec := env.do(http.MethodGet, "/api/v1/history/esp32_light_001?limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	if store.gotDevice != "esp32_light_001" || store.gotLimit != 10 {
		t.Errorf("query = %s/%d, want esp32_light_001/10", store.gotDevice, store.gotLimit)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}
}

func TestHistoryUnavailable(t *testing.T) {
	env := newTestEnv(t) // no History dep

	rec := env.do(http.MethodGet, "/api/v1/history/esp32_light_001", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHistoryBadLimit(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.History = &fakeHistory{} })

	rec := env.do(http.MethodGet, "/api/v1/history/esp32_light_001?limit=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHistoryQueryFailure(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.History = &fakeHistory{err: errors.New("db gone")}
	})

	rec := env.do(http.MethodGet, "/api/v1/history/esp32_light_001", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "db gone") {
		t.Error("internal error details leaked to client")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	catalog, _ := device.NewCatalog([]string{"esp32_light_001"})
	handler := &fakeHandler{}
	logger := logging.Default()

	tests := []struct {
		name string
		deps Deps
	}{
		{"missing logger", Deps{Handler: handler, Catalog: catalog}},
		{"missing handler", Deps{Logger: logger, Catalog: catalog}},
		{"missing catalog", Deps{Logger: logger, Handler: handler}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}
