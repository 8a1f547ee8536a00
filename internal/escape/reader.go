package escape

import (
	"bufio"
	"errors"
	"io"
)

// ErrUnterminated is returned by Reader.Next for a trailing fragment that
// has no terminator, typically left by an interrupted write.
var ErrUnterminated = errors.New("escape: unterminated record")

// readerBufferSize is the bufio buffer size used when scanning files.
const readerBufferSize = 64 * 1024

// Reader splits a framed stream into escaped records.
type Reader struct {
	r      *bufio.Reader
	line   []byte
	offset int64
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, readerBufferSize)}
}

// Next returns the next record, still escaped, without its terminator.
//
// At the end of the stream Next returns io.EOF. If the stream ends with a
// fragment that lacks a terminator, Next returns the fragment together with
// ErrUnterminated; the following call returns io.EOF.
//
// The returned slice is only valid until the next call.
func (r *Reader) Next() ([]byte, error) {
	r.line = r.line[:0]
	for {
		chunk, err := r.r.ReadSlice(Terminator)
		r.line = append(r.line, chunk...)
		switch {
		case err == nil:
			r.offset += int64(len(r.line))
			return r.line[:len(r.line)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(r.line) == 0 {
				return nil, io.EOF
			}
			return r.line, ErrUnterminated
		default:
			return nil, err
		}
	}
}

// Offset returns the byte offset just past the last complete record.
func (r *Reader) Offset() int64 {
	return r.offset
}
