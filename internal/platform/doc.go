// Package platform adapts outbound chat delivery to the messaging
// services the bridge supports (LINE and Telegram).
//
// Each client talks to a small per-platform adapter service over HTTP
// with a fixed 5 second timeout. Mux hides the platform split behind
// the dispatch.Notifier interface.
package platform
