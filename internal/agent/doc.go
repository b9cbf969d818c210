// Package agent is the device-side half of the bridge: it consumes
// command envelopes from the broker, drives the device through the
// executor contract, and publishes status events back toward the chat
// that issued the command.
//
// DeviceServer additionally provides a built-in executor endpoint for
// self-contained devices, so an agent process can run without any
// external device service.
package agent
