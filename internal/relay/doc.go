// Package relay consumes device status events from the broker and
// fans them out to every chat bound to the device.
//
// The originating chat gets a first-person message, optionally
// prefixed by a one-time greeting; the rest of the device's group gets
// a third-person message. Events that cannot be processed are dropped
// so a poison message never stalls the stream.
package relay
