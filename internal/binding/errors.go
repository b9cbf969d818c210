package binding

import "errors"

var (
	// ErrNotBound indicates no chat is bound to the requested device.
	ErrNotBound = errors.New("binding: device has no bound chats")

	// ErrInvalidBinding indicates a bind request with missing fields.
	ErrInvalidBinding = errors.New("binding: chat id and platform are required")
)
