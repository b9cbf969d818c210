// Package mqtt provides the broker transport for device commands and
// status events.
//
// Client wraps the Eclipse Paho client with automatic reconnection,
// subscription restoration, a last-will availability topic, and panic
// recovery around message handlers. Pool layers session-keyed
// connection reuse on top for publishers: one connection per chat
// session, created lazily with bounded retry and recycled once after a
// failed publish before an error is surfaced.
//
// Topics defines the two topic families: iot/{manufacturer}/{type}/{action}
// for commands toward devices and im/{platform}/{chat_id}/{event} for
// status flowing back to chat users. DecodeRoutingKey parses the latter.
package mqtt
