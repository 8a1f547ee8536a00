package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/pbexport/internal/export"
)

// Publisher is the subset of Client used by Notifier.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	QoS() byte
}

// ExportEvent is the JSON body published for every finished PV.
type ExportEvent struct {
	BatchID    string   `json:"batch_id,omitempty"`
	PV         string   `json:"pv"`
	Outcome    string   `json:"outcome"`
	Records    int      `json:"records"`
	Suppressed int      `json:"suppressed"`
	Skipped    int      `json:"skipped"`
	Dropped    int      `json:"dropped"`
	Corrupt    int      `json:"corrupt"`
	Generation int      `json:"generation"`
	Files      []string `json:"files"`
	Started    string   `json:"started"`
	Finished   string   `json:"finished"`
	DurationMS int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

// Notifier publishes export results. It implements export.Observer.
type Notifier struct {
	pub     Publisher
	batchID string
}

// NewNotifier returns a Notifier publishing through pub. batchID may be
// empty.
func NewNotifier(pub Publisher, batchID string) *Notifier {
	return &Notifier{pub: pub, batchID: batchID}
}

// ExportFinished publishes res on pbexport/export/<outcome>.
func (n *Notifier) ExportFinished(_ context.Context, res export.Result) error {
	payload, err := json.Marshal(n.event(res))
	if err != nil {
		return fmt.Errorf("encoding export event: %w", err)
	}
	return n.pub.Publish(Topics{}.ExportOutcome(string(res.Outcome)), payload, n.pub.QoS(), false)
}

func (n *Notifier) event(res export.Result) ExportEvent {
	files := res.Files
	if files == nil {
		files = []string{}
	}
	ev := ExportEvent{
		BatchID:    n.batchID,
		PV:         res.PV,
		Outcome:    string(res.Outcome),
		Records:    res.Records,
		Suppressed: res.Suppressed,
		Skipped:    res.Skipped,
		Dropped:    res.Dropped,
		Corrupt:    res.Corrupt,
		Generation: res.Generation,
		Files:      files,
		Started:    res.Started.UTC().Format(time.RFC3339Nano),
		Finished:   res.Finished.UTC().Format(time.RFC3339Nano),
		DurationMS: res.Duration().Milliseconds(),
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	return ev
}
