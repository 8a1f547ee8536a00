package export

import "errors"

// Domain errors for the export package. Type errors are reported with
// pb.ErrUnsupportedType and pb.ErrTypeMismatch; malformed upstream samples
// with archive.ErrCorruptHeader.
var (
	// ErrIOFailure is returned when an output file cannot be created,
	// written, flushed or closed.
	ErrIOFailure = errors.New("export: i/o failure")

	// ErrMissingHeader is returned when an existing file has no readable
	// header line.
	ErrMissingHeader = errors.New("export: missing file header")

	// ErrNoRecords is returned by LastSample when a file has no decodable
	// sample records.
	ErrNoRecords = errors.New("export: no records")

	// ErrInvalidPVName is returned when a PV name maps to a path outside the
	// output directory.
	ErrInvalidPVName = errors.New("export: invalid pv name")
)
