package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/nerrad567/pbexport/internal/channel"
	"github.com/nerrad567/pbexport/internal/escape"
	"github.com/nerrad567/pbexport/internal/pb"
)

// Tail is what a tail scan recovers from an existing file.
type Tail struct {
	Info pb.PayloadInfo

	// HasHeader is false for an empty file, or one holding only an
	// unterminated fragment.
	HasHeader bool

	// Last is the absolute timestamp of the last record whose timestamp
	// could be decoded. It is only meaningful when HasLast is true.
	Last    channel.Timestamp
	HasLast bool

	// Records counts complete record lines after the header, Corrupt the
	// ones whose timestamp could not be decoded. FirstCorrupt is the first
	// such error.
	Records      int
	Corrupt      int
	FirstCorrupt error

	// Complete is the byte offset just past the last complete line.
	Complete int64

	// Partial is true when the file ends with an unterminated fragment.
	Partial bool
}

// ScanTail reads an existing file and recovers the timestamp of its last
// record.
//
// The header must declare payload type want, otherwise the scan fails with
// pb.ErrTypeMismatch. An undecodable header fails with ErrMissingHeader.
// Malformed record lines are counted and skipped.
func ScanTail(r io.Reader, want pb.PayloadType) (Tail, error) {
	var (
		tail    Tail
		scratch []byte
	)

	lr := escape.NewReader(r)
	info, err := readHeader(lr, &scratch)
	switch {
	case errors.Is(err, io.EOF):
		return tail, nil
	case errors.Is(err, escape.ErrUnterminated):
		tail.Partial = true
		return tail, nil
	case err != nil:
		return tail, err
	}
	tail.Info, tail.HasHeader = info, true
	tail.Complete = lr.Offset()

	if info.Type != want {
		return tail, fmt.Errorf("%w: file holds %s, data is %s", pb.ErrTypeMismatch, info.Type, want)
	}
	start, _ := yearBounds(int(info.Year))

	for {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, escape.ErrUnterminated) {
			tail.Partial = true
			break
		}
		if err != nil {
			return tail, fmt.Errorf("%w: reading: %w", ErrIOFailure, err)
		}
		tail.Records++
		tail.Complete = lr.Offset()

		secs, nano, err := decodeLineTimestamp(line, &scratch)
		if err != nil {
			tail.Corrupt++
			if tail.FirstCorrupt == nil {
				tail.FirstCorrupt = fmt.Errorf("line %d: %w", tail.Records+1, err)
			}
			continue
		}
		tail.Last = channel.Timestamp{Sec: start + int64(secs), Nsec: nano}
		tail.HasLast = true
	}
	return tail, nil
}

// readHeader decodes the first line as a PayloadInfo. It passes through
// io.EOF and escape.ErrUnterminated from the reader.
func readHeader(lr *escape.Reader, scratch *[]byte) (pb.PayloadInfo, error) {
	line, err := lr.Next()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, escape.ErrUnterminated) {
			return pb.PayloadInfo{}, err
		}
		return pb.PayloadInfo{}, fmt.Errorf("%w: reading header: %w", ErrIOFailure, err)
	}

	raw, err := escape.Unescape((*scratch)[:0], line)
	*scratch = raw
	if err != nil {
		return pb.PayloadInfo{}, fmt.Errorf("%w: %w", ErrMissingHeader, err)
	}
	info, err := pb.ParsePayloadInfo(raw)
	if err != nil {
		return pb.PayloadInfo{}, fmt.Errorf("%w: %w", ErrMissingHeader, err)
	}
	return info, nil
}

func decodeLineTimestamp(line []byte, scratch *[]byte) (uint32, uint32, error) {
	raw, err := escape.Unescape((*scratch)[:0], line)
	*scratch = raw
	if err != nil {
		return 0, 0, err
	}
	return pb.DecodeTimestamp(raw)
}

// LastRecord is the result of a typed last-sample lookup.
type LastRecord struct {
	Info pb.PayloadInfo

	// Sample holds the last decodable record with an absolute timestamp.
	Sample channel.Sample
	Fields []pb.FieldValue

	Records int
	Corrupt int
}

// LastSample fully decodes the last record of a file whose header must
// declare payload type want. It fails with pb.ErrTypeMismatch like
// ScanTail, and with ErrNoRecords when no record decodes.
func LastSample(r io.Reader, want pb.PayloadType) (LastRecord, error) {
	return lastSample(r, func(info pb.PayloadInfo) error {
		if info.Type != want {
			return fmt.Errorf("%w: file holds %s, want %s", pb.ErrTypeMismatch, info.Type, want)
		}
		return nil
	})
}

// Inspect is LastSample using whatever type the file's header declares.
func Inspect(r io.Reader) (LastRecord, error) {
	return lastSample(r, func(pb.PayloadInfo) error { return nil })
}

func lastSample(r io.Reader, check func(pb.PayloadInfo) error) (LastRecord, error) {
	var (
		out     LastRecord
		scratch []byte
		found   bool
	)

	lr := escape.NewReader(r)
	info, err := readHeader(lr, &scratch)
	if errors.Is(err, io.EOF) || errors.Is(err, escape.ErrUnterminated) {
		return out, ErrMissingHeader
	}
	if err != nil {
		return out, err
	}
	out.Info = info
	if err := check(info); err != nil {
		return out, err
	}
	start, _ := yearBounds(int(info.Year))

	for {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) || errors.Is(err, escape.ErrUnterminated) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("%w: reading: %w", ErrIOFailure, err)
		}
		out.Records++

		raw, err := escape.Unescape(scratch[:0], line)
		scratch = raw
		if err != nil {
			out.Corrupt++
			continue
		}
		rec, err := pb.DecodeRecord(info.Type, raw)
		if err != nil {
			out.Corrupt++
			continue
		}

		out.Sample = channel.Sample{
			Time:     channel.Timestamp{Sec: start + int64(rec.SecondsIntoYear), Nsec: rec.Nano},
			Severity: rec.Severity,
			Status:   rec.Status,
			Value:    rec.Value,
		}
		out.Fields = rec.Fields
		found = true
	}

	if !found {
		return out, ErrNoRecords
	}
	return out, nil
}
