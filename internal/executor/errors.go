package executor

import "errors"

var (
	// ErrInvalidKey indicates a signing or verification key that could
	// not be parsed.
	ErrInvalidKey = errors.New("executor: invalid key")

	// ErrBadSignature indicates a command signature that failed
	// verification.
	ErrBadSignature = errors.New("executor: bad signature")

	// ErrStaleTimestamp indicates a command timestamp outside the
	// accepted clock-skew window.
	ErrStaleTimestamp = errors.New("executor: stale timestamp")

	// ErrUnknownManufacturer indicates a device whose manufacturer has
	// no configured executor endpoint.
	ErrUnknownManufacturer = errors.New("executor: unknown manufacturer")

	// ErrExecutionFailed indicates the device executor reported an
	// error or was unreachable.
	ErrExecutionFailed = errors.New("executor: execution failed")
)
