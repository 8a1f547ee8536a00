package pb

import "errors"

// Sentinel errors for wire encoding and decoding.
var (
	// ErrUnsupportedType is returned for a shape or type code outside the
	// fourteen supported payload types.
	ErrUnsupportedType = errors.New("pb: unsupported payload type")

	// ErrTypeMismatch is returned when a value or file does not match the
	// payload type it is being encoded or decoded as.
	ErrTypeMismatch = errors.New("pb: payload type mismatch")

	// ErrCorruptRecord is returned when a message cannot be decoded.
	ErrCorruptRecord = errors.New("pb: corrupt record")
)
