package export

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Observer is notified when a PV export finishes, successfully or not.
// Observers used with Batch.RunAll are called from several goroutines.
type Observer interface {
	ExportFinished(ctx context.Context, res Result) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, res Result) error

// ExportFinished calls f.
func (f ObserverFunc) ExportFinished(ctx context.Context, res Result) error {
	return f(ctx, res)
}

// DefaultDoneToken is the completion line written after each PV.
const DefaultDoneToken = "Done"

// DoneWriter writes one completion line per finished PV. An orchestrator
// feeding PV names waits for this line before sending the next.
type DoneWriter struct {
	mu    sync.Mutex
	w     io.Writer
	token string
}

// NewDoneWriter returns a DoneWriter writing token lines to w. An empty
// token selects DefaultDoneToken.
func NewDoneWriter(w io.Writer, token string) *DoneWriter {
	if token == "" {
		token = DefaultDoneToken
	}
	return &DoneWriter{w: w, token: token}
}

// ExportFinished writes the completion line.
func (d *DoneWriter) ExportFinished(_ context.Context, _ Result) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := fmt.Fprintln(d.w, d.token); err != nil {
		return fmt.Errorf("writing completion line: %w", err)
	}
	if f, ok := d.w.(interface{ Sync() error }); ok {
		f.Sync() //nolint:errcheck // pipes and terminals cannot sync
	}
	return nil
}
