// Package dispatch executes parsed chat commands: it validates the
// target device, publishes command envelopes to manufacturer-scoped
// broker topics, manages device bindings, and sends every user-facing
// reply through an injected Notifier.
//
// The package also defines the two wire envelopes (CommandEnvelope and
// StatusEvent) shared by the bridge, the device agent, and the status
// relay. Encoding and decoding validate required fields so malformed
// messages fail at the serialization boundary.
package dispatch
