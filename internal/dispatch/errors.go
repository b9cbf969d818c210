package dispatch

import "errors"

var (
	// ErrInvalidEnvelope indicates a command or status message that
	// failed validation at the serialization boundary.
	ErrInvalidEnvelope = errors.New("dispatch: invalid message envelope")

	// ErrUnsupportedDevice indicates a command naming a device outside
	// the supported set.
	ErrUnsupportedDevice = errors.New("dispatch: unsupported device")

	// ErrNoDevice indicates a command that named no device and had no
	// default device context to fall back on.
	ErrNoDevice = errors.New("dispatch: no device resolved")

	// ErrInvalidCommand indicates a message that matched no command form.
	ErrInvalidCommand = errors.New("dispatch: invalid command")
)
