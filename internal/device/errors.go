package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotSupported) {
//	    // enumerate valid IDs for the user
//	}
var (
	// ErrDeviceNotSupported is returned when a device ID is not in the
	// supported-device allow-list.
	ErrDeviceNotSupported = errors.New("device: not supported")

	// ErrInvalidDevice is returned when the allow-list itself is invalid
	// (empty, duplicated, or unclassifiable IDs).
	ErrInvalidDevice = errors.New("device: invalid")
)
