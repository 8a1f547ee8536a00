package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/nerrad567/pbexport/internal/export"
)

// Recorder writes every finished export to a Repository.
type Recorder struct {
	repo    Repository
	batchID string
}

// NewRecorder returns a Recorder tagging runs with a fresh batch ID.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, batchID: uuid.NewString()}
}

// BatchID identifies the runs recorded by this Recorder.
func (r *Recorder) BatchID() string {
	return r.batchID
}

// ExportFinished implements export.Observer.
func (r *Recorder) ExportFinished(ctx context.Context, res export.Result) error {
	return r.repo.Create(ctx, FromResult(r.batchID, res))
}

// FromResult converts an export result into a ledger row.
func FromResult(batchID string, res export.Result) *Run {
	run := &Run{
		BatchID:    batchID,
		PV:         res.PV,
		Started:    res.Started,
		Finished:   res.Finished,
		Records:    res.Records,
		Suppressed: res.Suppressed,
		Skipped:    res.Skipped,
		Dropped:    res.Dropped,
		Corrupt:    res.Corrupt,
		Generation: res.Generation,
		Files:      res.Files,
		Outcome:    res.Outcome,
	}
	if res.Err != nil {
		run.Error = res.Err.Error()
	}
	return run
}
