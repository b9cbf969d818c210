package platform

import "errors"

var (
	// ErrUnknownPlatform indicates a message for a platform with no
	// registered sender.
	ErrUnknownPlatform = errors.New("platform: unknown platform")

	// ErrSendFailed indicates a non-2xx response or transport failure
	// from a platform adapter.
	ErrSendFailed = errors.New("platform: send failed")
)
