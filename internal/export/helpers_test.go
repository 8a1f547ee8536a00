package export

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/nerrad567/pbexport/internal/archive"
	"github.com/nerrad567/pbexport/internal/channel"
	"github.com/nerrad567/pbexport/internal/escape"
	"github.com/nerrad567/pbexport/internal/pb"
)

// t0 is 2015-03-04T18:46:20Z.
const t0 = 1425494780

var tickLimits = &channel.Limits{DisplayHigh: 10, Units: "tick"}

// memSample is a sample in memIndex; corrupt samples fail to decode.
type memSample struct {
	s       channel.Sample
	corrupt bool
}

type memChannel struct {
	ch      archive.Channel
	meta    channel.Meta
	samples []memSample
}

// memIndex is an in-memory archive.Index.
type memIndex struct {
	mu    sync.Mutex
	chans map[string]*memChannel
}

func newMemIndex() *memIndex {
	return &memIndex{chans: make(map[string]*memChannel)}
}

// add registers a channel whose declared shape is that of its first
// sample.
func (m *memIndex) add(name string, meta channel.Meta, samples ...channel.Sample) *memChannel {
	mc := &memChannel{ch: archive.Channel{Name: name, ElementCount: 1}, meta: meta}
	if len(samples) > 0 {
		mc.ch.Shape = samples[0].Shape()
	}
	for _, s := range samples {
		mc.samples = append(mc.samples, memSample{s: s})
	}
	m.mu.Lock()
	m.chans[name] = mc
	m.mu.Unlock()
	return mc
}

// truncated returns a copy of the index where name has only its first n
// samples.
func (m *memIndex) truncated(name string, n int) *memIndex {
	out := newMemIndex()
	for k, v := range m.chans {
		c := *v
		if k == name {
			c.samples = v.samples[:n]
		}
		out.chans[k] = &c
	}
	return out
}

func (m *memIndex) get(name string) (*memChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.chans[name]
	if !ok {
		return nil, archive.ErrChannelNotFound
	}
	return mc, nil
}

func (m *memIndex) Channels(context.Context) ([]archive.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []archive.Channel
	for _, mc := range m.chans {
		out = append(out, mc.ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memIndex) Lookup(_ context.Context, name string) (archive.Channel, error) {
	mc, err := m.get(name)
	if err != nil {
		return archive.Channel{}, err
	}
	return mc.ch, nil
}

func (m *memIndex) Meta(_ context.Context, name string) (channel.Meta, error) {
	mc, err := m.get(name)
	if err != nil {
		return channel.Meta{}, err
	}
	return mc.meta, nil
}

func (m *memIndex) Open(_ context.Context, name string) (archive.Cursor, error) {
	mc, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return &memCursor{samples: mc.samples}, nil
}

type memCursor struct {
	samples []memSample
	pos     int
}

func (c *memCursor) Valid() bool { return c.pos < len(c.samples) }

func (c *memCursor) Sample() (channel.Sample, error) {
	if !c.Valid() {
		return channel.Sample{}, archive.ErrCursorExhausted
	}
	ms := c.samples[c.pos]
	if ms.corrupt {
		return channel.Sample{}, archive.ErrCorruptHeader
	}
	return ms.s, nil
}

func (c *memCursor) Next(context.Context) error {
	if !c.Valid() {
		return archive.ErrCursorExhausted
	}
	c.pos++
	return nil
}

func (c *memCursor) Close() error { return nil }

func dbl(sec int64, nsec uint32, sevr int32, v float64) channel.Sample {
	return channel.Sample{
		Time:     channel.Timestamp{Sec: sec, Nsec: nsec},
		Severity: sevr,
		Value:    channel.ScalarDouble(v),
	}
}

func i32(sec int64, nsec uint32, v int32) channel.Sample {
	return channel.Sample{
		Time:  channel.Timestamp{Sec: sec, Nsec: nsec},
		Value: channel.ScalarInt(v),
	}
}

func newTestExporter(idx archive.Index, dir string) *Exporter {
	return NewExporter(idx, Options{OutputDir: dir, Separators: DefaultSeparators})
}

func mustExport(t *testing.T, e *Exporter, pv string) Result {
	t.Helper()
	res, err := e.Export(context.Background(), pv)
	if err != nil {
		t.Fatalf("Export(%s) error = %v", pv, err)
	}
	return res
}

// readPB decodes a whole file.
func readPB(t *testing.T, path string) (pb.PayloadInfo, []pb.Record) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()

	lr := escape.NewReader(f)
	var (
		info    pb.PayloadInfo
		records []pb.Record
	)
	for n := 0; ; n++ {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("%s line %d: %v", path, n+1, err)
		}
		raw, err := escape.Unescape(nil, line)
		if err != nil {
			t.Fatalf("%s line %d: %v", path, n+1, err)
		}
		if n == 0 {
			if info, err = pb.ParsePayloadInfo(raw); err != nil {
				t.Fatalf("%s header: %v", path, err)
			}
			continue
		}
		rec, err := pb.DecodeRecord(info.Type, raw)
		if err != nil {
			t.Fatalf("%s line %d: %v", path, n+1, err)
		}
		records = append(records, rec)
	}
	return info, records
}

// snapshot returns every file under dir keyed by relative path.
func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		out[rel] = string(b)
		return nil
	})
	if err != nil {
		t.Fatalf("walking %s: %v", dir, err)
	}
	return out
}

// recordingLogger keeps warnings and errors.
type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
