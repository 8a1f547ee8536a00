package escape

// Buffer collects the raw bytes of one record and frames them on Finalize.
//
// A Buffer is reused record after record; both internal slices keep their
// capacity between records.
//
// Thread Safety:
//   - A Buffer must not be used from multiple goroutines.
type Buffer struct {
	raw  []byte
	line []byte
}

// Write appends p to the pending record. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.raw = append(b.raw, p...)
	return len(p), nil
}

// Len returns the number of pending raw bytes.
func (b *Buffer) Len() int {
	return len(b.raw)
}

// Finalize escapes the pending bytes, appends the terminator, and clears the
// pending record.
//
// The returned slice is owned by the Buffer and is only valid until the next
// call to Finalize or Reset. Finalize must be called exactly once per record.
func (b *Buffer) Finalize() []byte {
	b.line = Append(b.line[:0], b.raw)
	b.line = append(b.line, Terminator)
	b.raw = b.raw[:0]
	return b.line
}

// Reset discards any pending bytes and the last finalized line.
func (b *Buffer) Reset() {
	b.raw = b.raw[:0]
	b.line = b.line[:0]
}

// Encode lets fn append directly to the pending record. If fn fails the
// pending record is left unchanged.
func (b *Buffer) Encode(fn func(dst []byte) ([]byte, error)) error {
	out, err := fn(b.raw)
	if err != nil {
		return err
	}
	b.raw = out
	return nil
}
