package archive

import (
	"context"

	"github.com/nerrad567/pbexport/internal/channel"
)

// Channel describes one archived channel.
type Channel struct {
	Name string

	// Shape is the shape the channel was declared with. Individual samples
	// may carry a different shape if the channel changed type over time.
	Shape channel.Shape

	// ElementCount is the declared maximum element count.
	ElementCount int
}

// Index is the historian collaborator used by the exporter.
type Index interface {
	// Channels lists every channel, ordered by name.
	Channels(ctx context.Context) ([]Channel, error)

	// Lookup returns one channel.
	// Returns ErrChannelNotFound if the name is unknown.
	Lookup(ctx context.Context, name string) (Channel, error)

	// Meta returns the descriptive metadata of a channel. Channels without
	// limits or state labels return an empty Meta.
	Meta(ctx context.Context, name string) (channel.Meta, error)

	// Open returns a cursor positioned on the channel's first sample.
	// Samples are ordered by timestamp.
	Open(ctx context.Context, name string) (Cursor, error)
}

// Cursor iterates over a channel's samples in timestamp order.
//
// A new cursor is positioned on the first sample. Valid reports whether
// the cursor is on a sample; once it returns false the cursor is
// exhausted.
type Cursor interface {
	Valid() bool

	// Sample decodes the sample at the cursor. It returns ErrCorruptHeader
	// when the raw sample is malformed, and ErrCursorExhausted when the
	// cursor is not Valid.
	Sample() (channel.Sample, error)

	// Next advances to the following sample.
	Next(ctx context.Context) error

	Close() error
}
