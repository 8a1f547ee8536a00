package archive

import "errors"

var (
	// ErrChannelNotFound is returned when a channel name is not in the index.
	ErrChannelNotFound = errors.New("archive: channel not found")

	// ErrCorruptHeader is returned by Cursor.Sample when the raw sample at
	// the cursor cannot be decoded. The cursor remains usable.
	ErrCorruptHeader = errors.New("archive: corrupt sample header")

	// ErrCursorExhausted is returned when reading past the last sample.
	ErrCursorExhausted = errors.New("archive: cursor exhausted")
)
