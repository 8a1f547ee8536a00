package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nerrad567/pbexport/internal/channel"
	"github.com/nerrad567/pbexport/internal/escape"
	"github.com/nerrad567/pbexport/internal/pb"
)

// File and directory permissions of exported files.
const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// outputFile is one open .pb file.
type outputFile struct {
	path       string
	year       int
	generation int
	start, end int64

	f   *os.File
	w   *bufio.Writer
	enc *pb.Encoder

	// static holds the daily fields for the file's shape.
	static []pb.FieldValue

	// resumeAfter is the last record already in the file when it was
	// opened. Samples at or before it are not written again.
	resumeAfter channel.Timestamp
	resuming    bool

	// high is the latest sample timestamp processed in this file.
	high    channel.Timestamp
	hasHigh bool

	created bool
	records int
}

// fileSpec identifies the file to open.
type fileSpec struct {
	pv           string
	path         string
	year         int
	generation   int
	shape        channel.Shape
	elementCount int
}

// openOutput opens or creates the file described by spec.
//
// An existing file is resumed: its header must match the data type (else
// pb.ErrTypeMismatch), its last record bounds what gets written, and a
// trailing partial line is truncated. A new or empty file gets a header.
func openOutput(spec fileSpec, buf *escape.Buffer, logger Logger) (*outputFile, error) {
	enc, err := pb.NewEncoder(spec.shape)
	if err != nil {
		return nil, err
	}

	start, end := yearBounds(spec.year)
	out := &outputFile{
		path:       spec.path,
		year:       spec.year,
		generation: spec.generation,
		start:      start,
		end:        end,
		enc:        enc,
	}

	if err := os.MkdirAll(filepath.Dir(spec.path), dirPermissions); err != nil {
		return nil, fmt.Errorf("%w: creating directory for %s: %w", ErrIOFailure, spec.path, err)
	}

	f, err := os.OpenFile(spec.path, os.O_RDWR|os.O_CREATE, filePermissions)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrIOFailure, spec.path, err)
	}
	out.f = f

	tail, err := ScanTail(f, enc.Type())
	if err != nil {
		f.Close() //nolint:errcheck // read-only so far
		return nil, fmt.Errorf("%s: %w", spec.path, err)
	}

	if tail.Corrupt > 0 {
		logger.Warn("skipped malformed records in existing file",
			"pv", spec.pv,
			"file", spec.path,
			"count", tail.Corrupt,
			"error", tail.FirstCorrupt,
		)
	}
	if tail.Partial {
		logger.Warn("truncating partial record", "pv", spec.pv, "file", spec.path, "offset", tail.Complete)
		if err := f.Truncate(tail.Complete); err != nil {
			f.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("%w: truncating %s: %w", ErrIOFailure, spec.path, err)
		}
	}
	if _, err := f.Seek(tail.Complete, io.SeekStart); err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: seeking %s: %w", ErrIOFailure, spec.path, err)
	}
	out.w = bufio.NewWriter(f)

	if tail.HasHeader {
		out.resumeAfter, out.resuming = tail.Last, tail.HasLast
		logger.Debug("resuming file",
			"pv", spec.pv,
			"file", spec.path,
			"records", tail.Records,
			"last", tail.Last,
		)
		return out, nil
	}

	out.created = true
	info := pb.PayloadInfo{
		Type:         enc.Type(),
		PVName:       spec.pv,
		Year:         int32(spec.year),
		ElementCount: int32(spec.elementCount),
	}
	if err := buf.Encode(func(dst []byte) ([]byte, error) {
		return pb.AppendPayloadInfo(dst, info), nil
	}); err != nil {
		return nil, errors.Join(err, out.close())
	}
	if err := out.writeLine(buf.Finalize()); err != nil {
		return nil, errors.Join(err, out.close())
	}
	return out, nil
}

// contains reports whether a sample time belongs to the file's year.
func (o *outputFile) contains(t channel.Timestamp) bool {
	return t.Sec >= o.start && t.Sec < o.end
}

// covered reports whether t was already written by an earlier run.
func (o *outputFile) covered(t channel.Timestamp) bool {
	return o.resuming && t.Compare(o.resumeAfter) <= 0
}

// outOfOrder reports whether t is earlier than a sample already processed
// in this file, and records t otherwise.
func (o *outputFile) outOfOrder(t channel.Timestamp) bool {
	if o.hasHigh && t.Before(o.high) {
		return true
	}
	o.high, o.hasHigh = t, true
	return false
}

func (o *outputFile) writeLine(line []byte) error {
	if _, err := o.w.Write(line); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrIOFailure, o.path, err)
	}
	return nil
}

// close flushes and releases the file.
func (o *outputFile) close() error {
	if o.f == nil {
		return nil
	}
	var flushErr error
	if o.w != nil {
		flushErr = o.w.Flush()
	}
	closeErr := o.f.Close()
	o.f = nil

	if err := errors.Join(flushErr, closeErr); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrIOFailure, o.path, err)
	}
	return nil
}
