package util

import "errors"

// Sentinel errors shared across packages. Wrap them with fmt.Errorf("...: %w")
// and test with errors.Is.
var (
	// ErrNotFound indicates a required file, artifact or record is missing
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates an unusable option or parameter
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCorrupt indicates an artifact whose bytes cannot be decoded
	ErrCorrupt = errors.New("corrupt artifact")

	// ErrInvalidToken indicates a feature token that is not a rational number
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnsupported indicates an unknown track, regime or mode name
	ErrUnsupported = errors.New("unsupported")
)
