package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tychang/imbridge/internal/binding"
	"github.com/tychang/imbridge/internal/dispatch"
)

// inboundMessage is the webhook payload from a platform adapter.
type inboundMessage struct {
	Platform string `json:"platform"`
	ChatID   string `json:"chat_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	BotToken string `json:"bot_token"`
	Text     string `json:"text"`
	DeviceID string `json:"device_id"` // default device context, optional
}

// handleMessage processes one inbound chat message.
//
// User-facing replies (including command errors) are sent to the chat
// by the dispatcher, so the webhook always answers 200 once the payload
// itself is valid; the adapter has nothing useful to do with a command
// failure.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg inboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if msg.Platform == "" || msg.ChatID == "" {
		writeBadRequest(w, "platform and chat_id are required")
		return
	}

	err := s.handler.HandleMessage(dispatch.Inbound{
		Platform:        msg.Platform,
		ChatID:          msg.ChatID,
		UserID:          msg.UserID,
		Username:        msg.Username,
		BotToken:        msg.BotToken,
		Text:            msg.Text,
		DefaultDeviceID: msg.DeviceID,
	})
	if err != nil {
		s.logger.Warn("message handling failed",
			"platform", msg.Platform,
			"chat_id", msg.ChatID,
			"error", err,
		)
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// deviceInfo is one catalog entry in the device listing.
type deviceInfo struct {
	ID           string `json:"id"`
	Manufacturer string `json:"manufacturer"`
	Type         string `json:"type"`
	Bound        bool   `json:"bound"`
}

// handleListDevices returns the supported-device catalog.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	ids := s.catalog.SupportedIDs()
	devices := make([]deviceInfo, 0, len(ids))
	for _, id := range ids {
		dev, err := s.catalog.Lookup(id)
		if err != nil {
			continue
		}
		info := deviceInfo{
			ID:           dev.ID,
			Manufacturer: string(dev.Manufacturer),
			Type:         string(dev.Type),
		}
		if s.bindings != nil {
			info.Bound = len(s.bindings.BoundChats(dev.ID)) > 0
		}
		devices = append(devices, info)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleSendGroup broadcasts a message to every chat bound to a device.
func (s *Server) handleSendGroup(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	message := r.URL.Query().Get("message")
	if deviceID == "" || message == "" {
		writeBadRequest(w, "device_id and message are required")
		return
	}
	if !s.catalog.Has(deviceID) {
		writeNotFound(w, "unknown device: "+deviceID)
		return
	}
	if s.bindings == nil || s.notifier == nil {
		writeInternalError(w, "broadcast not configured")
		return
	}

	bound := s.bindings.BoundChats(deviceID)
	if len(bound) == 0 {
		writeNotFound(w, "no chats bound to device: "+deviceID)
		return
	}

	sent, failed := s.broadcast(map[string][]recipient{
		deviceID: recipientsFor(bound),
	}, message)

	writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "failed": failed})
}

// handleSendAll broadcasts a message to every bound chat of every device.
func (s *Server) handleSendAll(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if message == "" {
		writeBadRequest(w, "message is required")
		return
	}
	if s.bindings == nil || s.notifier == nil {
		writeInternalError(w, "broadcast not configured")
		return
	}

	all := make(map[string][]recipient)
	for deviceID, bindings := range s.bindings.Snapshot() {
		all[deviceID] = recipientsFor(bindings)
	}
	sent, failed := s.broadcast(all, message)

	writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "failed": failed})
}

// recipient is one broadcast target.
type recipient struct {
	platform string
	chatID   string
}

func recipientsFor(bindings []binding.Binding) []recipient {
	out := make([]recipient, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, recipient{platform: b.Platform, chatID: b.ChatID})
	}
	return out
}

// broadcast sends the message to each unique chat. Failures are counted
// per recipient so one dead chat does not abort the rest.
func (s *Server) broadcast(targets map[string][]recipient, message string) (sent, failed int) {
	seen := make(map[string]struct{})
	for _, recipients := range targets {
		for _, rec := range recipients {
			key := rec.platform + "/" + rec.chatID
			if _, done := seen[key]; done {
				continue
			}
			seen[key] = struct{}{}

			err := s.notifier.Send(dispatch.Notification{
				Platform: rec.platform,
				ChatID:   rec.chatID,
				Text:     message,
			})
			if err != nil {
				failed++
				s.logger.Warn("broadcast send failed", "platform", rec.platform, "chat_id", rec.chatID, "error", err)
				continue
			}
			sent++
		}
	}
	return sent, failed
}

// handleHistory returns a device's recent notification history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "history not configured")
		return
	}

	deviceID := chi.URLParam(r, "device_id")
	if !s.catalog.Has(deviceID) {
		writeNotFound(w, "unknown device: "+deviceID)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	notifications, err := s.history.History(r.Context(), deviceID, limit)
	if err != nil {
		s.logger.Error("history query failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "history query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":     deviceID,
		"notifications": notifications,
		"count":         len(notifications),
	})
}
