package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/pbexport/internal/archive"
	"github.com/nerrad567/pbexport/internal/channel"
	"github.com/nerrad567/pbexport/internal/escape"
	"github.com/nerrad567/pbexport/internal/pb"
)

// maxGenerations bounds the search for a generation whose existing file
// matches the data type.
const maxGenerations = 1000

// Outcome is the final state of one PV export.
type Outcome string

const (
	// OutcomeOK means every sample was processed.
	OutcomeOK Outcome = "ok"
	// OutcomeFailed means the export stopped on an error.
	OutcomeFailed Outcome = "failed"
)

// Result summarises one PV export.
type Result struct {
	PV      string
	Outcome Outcome
	Err     error

	// Records counts sample records written, Suppressed the outage
	// samples that were not, Skipped the samples already present in
	// existing files, Dropped the out-of-order samples, and Corrupt the
	// upstream samples that could not be decoded.
	Records    int
	Suppressed int
	Skipped    int
	Dropped    int
	Corrupt    int

	// Files lists every file written to, in order.
	Files []string

	// Generation is the PV's final generation number.
	Generation int

	Started  time.Time
	Finished time.Time
}

// Duration returns the wall time of the export.
func (r Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Options configures an Exporter.
type Options struct {
	// OutputDir is the root directory of exported files.
	OutputDir string

	// Separators are the PV name characters mapped to directory
	// separators. DefaultSeparators is the usual value.
	Separators string
}

// Exporter exports PVs from an archive index. It holds no per-PV state and
// may be used by several goroutines at once if the index allows it.
type Exporter struct {
	index  archive.Index
	paths  Paths
	logger Logger
	now    func() time.Time
}

// NewExporter creates an Exporter reading from index.
func NewExporter(index archive.Index, opts Options) *Exporter {
	return &Exporter{
		index:  index,
		paths:  NewPaths(opts.OutputDir, opts.Separators),
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the exporter.
func (e *Exporter) SetLogger(logger Logger) {
	e.logger = logger
}

// Paths returns the file naming used by the exporter.
func (e *Exporter) Paths() Paths {
	return e.paths
}

// Export writes every sample of pv to its output files.
//
// The returned Result is always populated; on failure its Outcome is
// OutcomeFailed and Err equals the returned error. Files already written
// are flushed and closed before Export returns.
func (e *Exporter) Export(ctx context.Context, pv string) (Result, error) {
	res := Result{PV: pv, Started: e.now()}

	err := e.export(ctx, pv, &res)

	res.Finished = e.now()
	res.Outcome = OutcomeOK
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
	}
	return res, err
}

func (e *Exporter) export(ctx context.Context, pv string, res *Result) error {
	if _, err := e.index.Lookup(ctx, pv); err != nil {
		return err
	}
	meta, err := e.index.Meta(ctx, pv)
	if err != nil {
		return err
	}

	cur, err := e.index.Open(ctx, pv)
	if err != nil {
		return err
	}
	defer cur.Close() //nolint:errcheck // read-only cursor

	run := &pvRun{
		e:    e,
		pv:   pv,
		meta: meta,
		cur:  cur,
		res:  res,
	}
	return run.drive(ctx)
}

// pvRun is the state of one PV export.
type pvRun struct {
	e    *Exporter
	pv   string
	meta channel.Meta
	cur  archive.Cursor
	res  *Result

	conn       connectivity
	days       dayTracker
	generation int
	buf        escape.Buffer
}

// drive opens one file after another until the cursor is exhausted.
func (r *pvRun) drive(ctx context.Context) error {
	for r.cur.Valid() {
		s, err := r.cur.Sample()
		if err != nil {
			if err := r.skipCorrupt(ctx, err); err != nil {
				return err
			}
			continue
		}

		f, err := r.open(s)
		if err != nil {
			return err
		}

		err = r.fill(ctx, f)
		if cerr := f.close(); cerr != nil {
			r.e.logger.Error("closing file failed", "pv", r.pv, "file", f.path, "error", cerr)
			err = errors.Join(err, cerr)
		}
		if err != nil {
			return err
		}
		r.e.logger.Debug("closed file", "pv", r.pv, "file", f.path, "records", f.records)
	}
	return nil
}

// skipCorrupt logs a sample decode failure and advances past it. Errors
// other than archive.ErrCorruptHeader are returned.
func (r *pvRun) skipCorrupt(ctx context.Context, err error) error {
	if !errors.Is(err, archive.ErrCorruptHeader) {
		return err
	}
	r.e.logger.Warn("skipping corrupt sample", "pv", r.pv, "error", err)
	r.res.Corrupt++
	return r.cur.Next(ctx)
}

// open opens the file for s, moving to later generations while existing
// files hold a different type.
func (r *pvRun) open(s channel.Sample) (*outputFile, error) {
	year := yearOf(s.Time.Sec)

	elementCount := s.Value.Len()
	if !s.Shape().Array {
		elementCount = 1
	}

	for attempt := 0; ; attempt++ {
		path, err := r.e.paths.File(r.pv, year, r.generation)
		if err != nil {
			return nil, err
		}

		f, err := openOutput(fileSpec{
			pv:           r.pv,
			path:         path,
			year:         year,
			generation:   r.generation,
			shape:        s.Shape(),
			elementCount: elementCount,
		}, &r.buf, r.e.logger)

		if errors.Is(err, pb.ErrTypeMismatch) && attempt < maxGenerations {
			r.e.logger.Warn("existing file has a different type, moving to next generation",
				"pv", r.pv,
				"file", path,
				"generation", r.generation+1,
				"error", err,
			)
			r.generation++
			r.res.Generation = r.generation
			continue
		}
		if err != nil {
			return nil, err
		}

		f.static = staticFields(s.Shape(), r.meta)
		r.res.Files = append(r.res.Files, path)
		if f.created {
			r.e.logger.Info("created file", "pv", r.pv, "file", path)
		}
		return f, nil
	}
}

// fill writes samples to f until the cursor is exhausted, a sample falls
// outside f's year, or the sample type changes.
func (r *pvRun) fill(ctx context.Context, f *outputFile) error {
	for r.cur.Valid() {
		s, err := r.cur.Sample()
		if err != nil {
			if err := r.skipCorrupt(ctx, err); err != nil {
				return err
			}
			continue
		}

		if !f.contains(s.Time) {
			return nil
		}
		if s.Shape() != f.enc.Shape() {
			r.generation++
			r.res.Generation = r.generation
			r.e.logger.Info("type changed, starting new generation",
				"pv", r.pv,
				"from", f.enc.Shape().String(),
				"to", s.Shape().String(),
				"generation", r.generation,
			)
			return nil
		}

		switch {
		case f.outOfOrder(s.Time):
			r.e.logger.Warn("dropping out of order sample", "pv", r.pv, "time", s.Time, "latest", f.high)
			r.res.Dropped++
		case f.covered(s.Time):
			r.replay(s)
			r.res.Skipped++
		default:
			if err := r.write(f, s); err != nil {
				return err
			}
		}

		if err := r.cur.Next(ctx); err != nil {
			return err
		}
	}
	return nil
}

// replay feeds an already-exported sample through the state machines
// without writing it.
func (r *pvRun) replay(s channel.Sample) {
	v := r.conn.observe(s)
	if v.write && v.attachable && r.days.due(s.Time.Sec) {
		r.days.mark(s.Time.Sec)
	}
}

// write runs one sample through the pipeline and appends its record.
func (r *pvRun) write(f *outputFile, s channel.Sample) error {
	v := r.conn.observe(s)
	if !v.write {
		r.e.logger.Debug("suppressing outage sample", "pv", r.pv, "time", s.Time, "class", v.class.String())
		r.res.Suppressed++
		return nil
	}
	if v.class == channel.SpecialOther {
		r.e.logger.Warn("special severity", "pv", r.pv, "time", s.Time, "severity", s.Severity)
	}

	var fields []pb.FieldValue
	if v.attachable && r.days.due(s.Time.Sec) {
		fields = append(fields, f.static...)
		r.days.mark(s.Time.Sec)
	}
	fields = append(fields, v.annotations...)

	rec := pb.Record{
		SecondsIntoYear: uint32(s.Time.Sec - f.start),
		Nano:            s.Time.Nsec,
		Severity:        s.Severity,
		Status:          s.Status,
		Value:           s.Value,
		Fields:          fields,
	}
	if err := r.buf.Encode(func(dst []byte) ([]byte, error) {
		return f.enc.Append(dst, rec)
	}); err != nil {
		return fmt.Errorf("%s: %w", f.path, err)
	}
	if err := f.writeLine(r.buf.Finalize()); err != nil {
		return err
	}

	f.records++
	r.res.Records++
	return nil
}
