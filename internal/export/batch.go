package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultSentinel is the control line that ends a batch.
const DefaultSentinel = "<>exit"

// Summary counts the PVs handled by a batch.
type Summary struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Batch exports PVs one at a time and notifies observers after each.
//
// A failing PV never stops the batch. Observer errors are logged; the
// final observer's error (the completion signal) stops the batch because
// the orchestrator can no longer be told about progress.
type Batch struct {
	exporter  *Exporter
	observers []Observer
	sentinel  string
	logger    Logger

	mu      sync.Mutex
	summary Summary
}

// NewBatch creates a Batch. Observers are notified in order; the last one
// is expected to be the completion signal (usually a DoneWriter).
func NewBatch(exporter *Exporter, sentinel string, observers ...Observer) *Batch {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	return &Batch{
		exporter:  exporter,
		observers: observers,
		sentinel:  sentinel,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the batch.
func (b *Batch) SetLogger(logger Logger) {
	b.logger = logger
}

// Run reads PV names from in, one per line, until the sentinel line, the
// end of input, or cancellation of ctx. Cancellation is only checked
// between PVs.
func (b *Batch) Run(ctx context.Context, in io.Reader) (Summary, error) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name == b.sentinel {
			b.logger.Info("end of batch")
			return b.Summary(), nil
		}
		if name == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return b.Summary(), err
		}
		if err := b.one(ctx, name); err != nil {
			return b.Summary(), err
		}
	}
	if err := sc.Err(); err != nil {
		return b.Summary(), fmt.Errorf("reading control input: %w", err)
	}
	b.logger.Info("control input closed")
	return b.Summary(), nil
}

// RunAll exports pvs with at most workers concurrent exports. Each PV is
// exported by exactly one worker.
func (b *Batch) RunAll(ctx context.Context, pvs []string, workers int) (Summary, error) {
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, pv := range pvs {
		if gctx.Err() != nil {
			break
		}
		pv := pv
		g.Go(func() error {
			return b.one(gctx, pv)
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return b.Summary(), err
}

// Summary returns the counts so far.
func (b *Batch) Summary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summary
}

// one exports a single PV and notifies observers. Only a failure of the
// completion signal is returned.
func (b *Batch) one(ctx context.Context, pv string) error {
	b.logger.Info("exporting", "pv", pv)

	res, err := b.exporter.Export(ctx, pv)

	b.mu.Lock()
	b.summary.Attempted++
	if err != nil {
		b.summary.Failed++
	} else {
		b.summary.Succeeded++
	}
	b.mu.Unlock()

	if err != nil {
		b.logger.Error("export failed", "pv", pv, "error", err, "records", res.Records)
	} else {
		b.logger.Info("export finished",
			"pv", pv,
			"records", res.Records,
			"suppressed", res.Suppressed,
			"skipped", res.Skipped,
			"files", len(res.Files),
			"duration", res.Duration(),
		)
	}

	// The completion signal is sent even when the batch is being cancelled.
	octx := context.WithoutCancel(ctx)
	for i, o := range b.observers {
		oerr := o.ExportFinished(octx, res)
		if oerr == nil {
			continue
		}
		if i == len(b.observers)-1 {
			return oerr
		}
		b.logger.Warn("export observer failed", "pv", pv, "error", oerr)
	}
	return nil
}
