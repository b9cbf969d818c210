package agent

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/tychang/imbridge/internal/device"
	"github.com/tychang/imbridge/internal/executor"
)

// DeviceServer is the HTTP face of a device: it implements the
// executor endpoint contract (/Enable, /Disable, /GetStatus) over an
// in-memory on/off state, verifying command signatures when a key is
// configured.
//
// In a deployment where the real hardware exposes its own executor
// service this server is unused; for self-contained devices the agent
// runs it locally and points its executor client at it.
type DeviceServer struct {
	device   device.Device
	verifier *executor.Verifier
	logger   Logger

	mu    sync.Mutex
	state string
}

// NewDeviceServer creates a device server starting in the "off" state.
//
// Parameters:
//   - dev: The device this server embodies
//   - verifier: Signature verifier; NewVerifier(nil) skips checks
//   - logger: Logger; nil disables logging
//
// Returns:
//   - *DeviceServer: Server ready for Routes
func NewDeviceServer(dev device.Device, verifier *executor.Verifier, logger Logger) *DeviceServer {
	if logger == nil {
		logger = noopLogger{}
	}
	if verifier == nil {
		verifier = executor.NewVerifier(nil)
	}
	return &DeviceServer{
		device:   dev,
		verifier: verifier,
		logger:   logger,
		state:    "off",
	}
}

// Routes returns the executor-contract HTTP routes.
func (s *DeviceServer) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/"+executor.OpEnable, s.handleEnable)
	r.Get("/"+executor.OpDisable, s.handleDisable)
	r.Get("/"+executor.OpGetStatus, s.handleGetStatus)
	return r
}

// State returns the device's current state.
func (s *DeviceServer) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *DeviceServer) handleEnable(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	s.mu.Lock()
	s.state = "on"
	s.mu.Unlock()

	s.logger.Info("device enabled", "device_id", s.device.ID)
	writeResponse(w, executor.Response{Status: "success", State: "on", Message: "Device enabled"})
}

func (s *DeviceServer) handleDisable(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	s.mu.Lock()
	s.state = "off"
	s.mu.Unlock()

	s.logger.Info("device disabled", "device_id", s.device.ID)
	writeResponse(w, executor.Response{Status: "success", State: "off", Message: "Device disabled"})
}

func (s *DeviceServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	writeResponse(w, executor.Response{Status: "success", State: s.State(), Message: "Device status retrieved"})
}

// authorize checks the device id and command signature. On failure it
// writes the error response and returns false.
func (s *DeviceServer) authorize(w http.ResponseWriter, r *http.Request) bool {
	q := r.URL.Query()

	deviceID := q.Get("device_id")
	if deviceID != s.device.ID {
		s.logger.Warn("request for unknown device", "device_id", deviceID)
		writeResponse(w, executor.Response{Status: "error", Message: "Device not found: " + deviceID})
		return false
	}

	timestamp, err := strconv.ParseInt(q.Get("timestamp"), 10, 64)
	if err != nil {
		writeResponse(w, executor.Response{Status: "error", Message: "Invalid timestamp"})
		return false
	}
	if err := s.verifier.Verify(q.Get("chat_id"), timestamp, q.Get("signature")); err != nil {
		s.logger.Warn("signature rejected", "device_id", deviceID, "error", err)
		writeResponse(w, executor.Response{Status: "error", Message: "Invalid signature"})
		return false
	}
	return true
}

func writeResponse(w http.ResponseWriter, resp executor.Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
