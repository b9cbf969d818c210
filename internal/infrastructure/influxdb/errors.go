package influxdb

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	// ErrNotConnected: the client has been closed or never connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed: the startup ping did not succeed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed: a write was rejected. Batched write errors
	// normally surface through the SetOnError callback instead.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled: the influxdb config section is disabled. Connect
	// returns this so callers can treat metrics as optional.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
