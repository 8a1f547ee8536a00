package influxdb

import (
	"context"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/pbexport/internal/export"
)

// MeasurementExport is the measurement name of export statistics.
const MeasurementExport = "pv_export"

// PointWriter accepts points for asynchronous delivery.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Stats writes one point per finished export. It implements
// export.Observer.
type Stats struct {
	w       PointWriter
	batchID string
}

// NewStats returns a Stats observer writing to w.
func NewStats(w PointWriter, batchID string) *Stats {
	return &Stats{w: w, batchID: batchID}
}

// ExportFinished writes the point for res. Delivery errors are reported
// asynchronously, so it never fails.
func (s *Stats) ExportFinished(_ context.Context, res export.Result) error {
	s.w.WritePoint(ExportPoint(s.batchID, res))
	return nil
}

// ExportPoint builds the pv_export point for res, timestamped at the end
// of the export.
func ExportPoint(batchID string, res export.Result) *write.Point {
	fields := map[string]any{
		"records":     res.Records,
		"suppressed":  res.Suppressed,
		"skipped":     res.Skipped,
		"dropped":     res.Dropped,
		"corrupt":     res.Corrupt,
		"files":       len(res.Files),
		"generation":  res.Generation,
		"duration_ms": res.Duration().Milliseconds(),
	}
	if batchID != "" {
		fields["batch_id"] = batchID
	}
	if res.Err != nil {
		fields["error"] = res.Err.Error()
	}
	return write.NewPoint(MeasurementExport,
		map[string]string{"pv": res.PV, "outcome": string(res.Outcome)},
		fields, res.Finished)
}
