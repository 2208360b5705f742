package record

import "errors"

var (
	// ErrInvalidPath is returned when a path does not point at a regular
	// file, or, for an inaccessible path, does not look like one (no file
	// extension).
	ErrInvalidPath = errors.New("path does not point to a regular file")

	// ErrNoSessionKey is returned when no session pattern can be derived
	// from a path. Callers treat it as a skip, not a failure.
	ErrNoSessionKey = errors.New("no session key found in path")

	// ErrInvalidChecksum is returned when a supplied checksum does not
	// conform to the fixed-width uppercase hexadecimal digest format.
	ErrInvalidChecksum = errors.New("invalid checksum format")
)
