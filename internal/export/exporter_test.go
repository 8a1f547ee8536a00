package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/pbexport/internal/archive"
	"github.com/nerrad567/pbexport/internal/channel"
	"github.com/nerrad567/pbexport/internal/escape"
	"github.com/nerrad567/pbexport/internal/pb"
)

var doubleStatic = []pb.FieldValue{
	{Name: "HOPR", Val: "10"}, {Name: "LOPR", Val: "0"}, {Name: "EGU", Val: "tick"},
	{Name: "HIHI", Val: "0"}, {Name: "HIGH", Val: "0"}, {Name: "LOW", Val: "0"},
	{Name: "LOLO", Val: "0"}, {Name: "PREC", Val: "0"},
}

// start2015 is the first second of 2015.
const start2015 = 1420070400

func TestExport_Counter(t *testing.T) {
	idx := newMemIndex()
	var samples []channel.Sample
	for i := 0; i < 11; i++ {
		samples = append(samples, i32(t0+int64(i), uint32(i*10), int32(i)))
	}
	idx.add("pv-counter", channel.Meta{Limits: tickLimits}, samples...)

	dir := t.TempDir()
	res := mustExport(t, newTestExporter(idx, dir), "pv-counter")

	path := filepath.Join(dir, "pv", "counter:2015.pb")
	if diff := cmp.Diff([]string{path}, res.Files); diff != "" {
		t.Errorf("Files mismatch (-want +got):\n%s", diff)
	}
	if res.Records != 11 || res.Outcome != OutcomeOK {
		t.Errorf("Result = %+v, want 11 records ok", res)
	}

	info, records := readPB(t, path)
	wantInfo := pb.PayloadInfo{Type: pb.TypeScalarInt, PVName: "pv-counter", Year: 2015, ElementCount: 1}
	if diff := cmp.Diff(wantInfo, info); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if len(records) != 11 {
		t.Fatalf("records = %d, want 11", len(records))
	}

	wantFields := []pb.FieldValue{
		{Name: "HOPR", Val: "10"}, {Name: "LOPR", Val: "0"}, {Name: "EGU", Val: "tick"},
		{Name: "HIHI", Val: "0"}, {Name: "HIGH", Val: "0"}, {Name: "LOW", Val: "0"},
		{Name: "LOLO", Val: "0"},
	}
	if diff := cmp.Diff(wantFields, records[0].Fields); diff != "" {
		t.Errorf("first record fields mismatch (-want +got):\n%s", diff)
	}
	for i, rec := range records {
		if got := int64(rec.SecondsIntoYear) + start2015; got != t0+int64(i) {
			t.Errorf("record %d seconds = %d, want %d", i, got, t0+int64(i))
		}
		if rec.Nano != uint32(i*10) || rec.Value != channel.ScalarInt(int32(i)) {
			t.Errorf("record %d = %+v", i, rec)
		}
		if i > 0 && rec.Fields != nil {
			t.Errorf("record %d has fields %v", i, rec.Fields)
		}
	}
}

func TestExport_EnumStates(t *testing.T) {
	idx := newMemIndex()
	enum := func(sec int64, v uint16) channel.Sample {
		return channel.Sample{Time: channel.Timestamp{Sec: sec}, Value: channel.ScalarEnum(v)}
	}
	idx.add("enum:pv", channel.Meta{States: []string{"A", "B", "third"}},
		enum(t0, 2), enum(t0+1, 0), enum(t0+2, 3))

	dir := t.TempDir()
	mustExport(t, newTestExporter(idx, dir), "enum:pv")

	info, records := readPB(t, filepath.Join(dir, "enum", "pv:2015.pb"))
	if info.Type != pb.TypeScalarEnum {
		t.Errorf("header type = %s, want SCALAR_ENUM", info.Type)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	want := []pb.FieldValue{{Name: "states", Val: "A;B;third"}}
	if diff := cmp.Diff(want, records[0].Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestExport_Outages(t *testing.T) {
	annotated := func(extra ...pb.FieldValue) []pb.FieldValue {
		return append([]pb.FieldValue{
			{Name: "cnxlostepsecs", Val: strconv.Itoa(t0 + 5)},
			{Name: "cnxregainedepsecs", Val: strconv.Itoa(t0 + 10)},
		}, extra...)
	}

	tests := []struct {
		name       string
		severities []int32
		want       []pb.FieldValue
	}{
		{
			name:       "disconnect",
			severities: []int32{channel.SeverityDisconnected},
			want:       annotated(),
		},
		{
			name:       "archive off",
			severities: []int32{channel.SeverityArchiveOff},
			want:       annotated(pb.FieldValue{Name: "startup", Val: "true"}),
		},
		{
			name:       "archive disabled",
			severities: []int32{channel.SeverityArchiveDisabled},
			want:       annotated(pb.FieldValue{Name: "resume", Val: "true"}),
		},
		{
			name:       "disabled then off prefers startup",
			severities: []int32{channel.SeverityArchiveDisabled, channel.SeverityArchiveOff},
			want:       annotated(pb.FieldValue{Name: "startup", Val: "true"}),
		},
		{
			name:       "off then disabled keeps startup",
			severities: []int32{channel.SeverityArchiveOff, channel.SeverityArchiveDisabled},
			want:       annotated(pb.FieldValue{Name: "startup", Val: "true"}),
		},
		{
			name:       "disconnect then off",
			severities: []int32{channel.SeverityDisconnected, channel.SeverityArchiveOff},
			want:       annotated(pb.FieldValue{Name: "startup", Val: "true"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := []channel.Sample{dbl(t0, 0, 0, 42)}
			for i, sevr := range tt.severities {
				samples = append(samples, dbl(t0+5+int64(i), 0, sevr, 0))
			}
			samples = append(samples, dbl(t0+10, 4000, 0, 42))

			idx := newMemIndex()
			idx.add("pv:discon1", channel.Meta{Limits: tickLimits}, samples...)

			dir := t.TempDir()
			res := mustExport(t, newTestExporter(idx, dir), "pv:discon1")
			if res.Suppressed != len(tt.severities) {
				t.Errorf("Suppressed = %d, want %d", res.Suppressed, len(tt.severities))
			}

			_, records := readPB(t, filepath.Join(dir, "pv", "discon1:2015.pb"))
			if len(records) != 2 {
				t.Fatalf("records = %d, want 2", len(records))
			}
			if diff := cmp.Diff(doubleStatic, records[0].Fields); diff != "" {
				t.Errorf("first record fields mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, records[1].Fields); diff != "" {
				t.Errorf("annotation mismatch (-want +got):\n%s", diff)
			}
			if records[1].Nano != 4000 || records[1].Value != channel.ScalarDouble(42) {
				t.Errorf("annotated record = %+v", records[1])
			}
		})
	}
}

func TestExport_RepeatSeverities(t *testing.T) {
	idx := newMemIndex()
	idx.add("pv:repeat1", channel.Meta{Limits: tickLimits},
		dbl(t0, 0, 0, 42),
		dbl(t0+5, 5000, channel.SeverityRepeat, 12),
		dbl(t0+5, 6000, channel.SeverityEstRepeat, 5),
		dbl(t0+10, 4000, 0, 42),
	)

	dir := t.TempDir()
	mustExport(t, newTestExporter(idx, dir), "pv:repeat1")

	_, records := readPB(t, filepath.Join(dir, "pv", "repeat1:2015.pb"))
	want := []pb.Record{
		{SecondsIntoYear: t0 - start2015, Value: channel.ScalarDouble(42), Fields: doubleStatic},
		{SecondsIntoYear: t0 + 5 - start2015, Nano: 5000, Severity: channel.SeverityRepeat, Value: channel.ScalarDouble(12)},
		{SecondsIntoYear: t0 + 5 - start2015, Nano: 6000, Severity: channel.SeverityEstRepeat, Value: channel.ScalarDouble(5)},
		{SecondsIntoYear: t0 + 10 - start2015, Nano: 4000, Value: channel.ScalarDouble(42)},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestExport_SpecialSeverityKeepsOutagePending(t *testing.T) {
	idx := newMemIndex()
	idx.add("pv", channel.Meta{},
		dbl(t0, 0, 0, 1),
		dbl(t0+5, 0, channel.SeverityDisconnected, 0),
		dbl(t0+7, 0, channel.SeverityRepeat, 2),
		dbl(t0+10, 0, 0, 3),
	)

	dir := t.TempDir()
	mustExport(t, newTestExporter(idx, dir), "pv")

	_, records := readPB(t, filepath.Join(dir, "pv:2015.pb"))
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[1].Fields != nil {
		t.Errorf("special severity record has fields %v", records[1].Fields)
	}
	want := []pb.FieldValue{
		{Name: "cnxlostepsecs", Val: strconv.Itoa(t0 + 5)},
		{Name: "cnxregainedepsecs", Val: strconv.Itoa(t0 + 10)},
	}
	if diff := cmp.Diff(want, records[2].Fields); diff != "" {
		t.Errorf("annotation mismatch (-want +got):\n%s", diff)
	}
}

func TestExport_DailyMetadata(t *testing.T) {
	idx := newMemIndex()
	idx.add("pv", channel.Meta{Limits: tickLimits},
		dbl(t0, 0, 0, 1),
		dbl(t0+60, 0, 0, 2),
		dbl(t0+86400, 0, 0, 3),
		dbl(t0+86460, 0, 0, 4),
	)

	dir := t.TempDir()
	mustExport(t, newTestExporter(idx, dir), "pv")

	_, records := readPB(t, filepath.Join(dir, "pv:2015.pb"))
	var withFields []int
	for i, rec := range records {
		if len(rec.Fields) > 0 {
			withFields = append(withFields, i)
		}
	}
	if diff := cmp.Diff([]int{0, 2}, withFields); diff != "" {
		t.Errorf("records with fields mismatch (-want +got):\n%s", diff)
	}
}

func TestExport_YearBoundary(t *testing.T) {
	const start2016 = 1451606400

	idx := newMemIndex()
	idx.add("pv:year", channel.Meta{},
		dbl(start2016-1, 999999999, 0, 1),
		dbl(start2016, 0, 0, 2),
	)

	dir := t.TempDir()
	res := mustExport(t, newTestExporter(idx, dir), "pv:year")
	if len(res.Files) != 2 {
		t.Fatalf("Files = %v, want two files", res.Files)
	}

	info, records := readPB(t, filepath.Join(dir, "pv", "year:2015.pb"))
	if info.Year != 2015 || len(records) != 1 || records[0].Value != channel.ScalarDouble(1) {
		t.Errorf("2015 file = %+v %+v", info, records)
	}

	info, records = readPB(t, filepath.Join(dir, "pv", "year:2016.pb"))
	if info.Year != 2016 || len(records) != 1 {
		t.Fatalf("2016 file = %+v %+v", info, records)
	}
	if records[0].SecondsIntoYear != 0 || records[0].Value != channel.ScalarDouble(2) {
		t.Errorf("2016 record = %+v", records[0])
	}
}

func TestExport_TypeChangeStartsGeneration(t *testing.T) {
	idx := newMemIndex()
	idx.add("pv", channel.Meta{},
		dbl(t0, 0, 0, 1.5),
		i32(t0+1, 0, 2),
		i32(t0+2, 0, 3),
		dbl(t0+3, 0, 0, 4.5),
	)

	dir := t.TempDir()
	res := mustExport(t, newTestExporter(idx, dir), "pv")
	if res.Generation != 2 {
		t.Errorf("Generation = %d, want 2", res.Generation)
	}

	files := []struct {
		name  string
		typ   pb.PayloadType
		count int
	}{
		{"pv:2015.pb", pb.TypeScalarDouble, 1},
		{"pv:2015.pb.1", pb.TypeScalarInt, 2},
		{"pv:2015.pb.2", pb.TypeScalarDouble, 1},
	}
	for _, f := range files {
		info, records := readPB(t, filepath.Join(dir, f.name))
		if info.Type != f.typ || len(records) != f.count {
			t.Errorf("%s: type %s with %d records, want %s with %d", f.name, info.Type, len(records), f.typ, f.count)
		}
	}
}

func TestExport_ResumeIsIdempotent(t *testing.T) {
	const start2016 = 1451606400

	idx := newMemIndex()
	mc := idx.add("pv:resume", channel.Meta{Limits: tickLimits},
		dbl(t0, 0, 0, 42),
		dbl(t0+5, 0, channel.SeverityDisconnected, 0),
		dbl(t0+10, 100, 0, 43),
		dbl(t0+10, 200, 0, 44),
		dbl(t0+86400, 0, 0, 45),
		dbl(t0+86405, 0, channel.SeverityArchiveOff, 0),
		dbl(t0+86410, 0, channel.SeverityRepeat, 9),
		dbl(t0+86420, 0, 0, 46),
		dbl(start2016+3, 0, 0, 47),
		dbl(start2016+4, 0, 0, 48),
	)

	refDir := t.TempDir()
	mustExport(t, newTestExporter(idx, refDir), "pv:resume")
	want := snapshot(t, refDir)

	// Running again over complete output changes nothing.
	res := mustExport(t, newTestExporter(idx, refDir), "pv:resume")
	if res.Records != 0 || res.Skipped == 0 {
		t.Errorf("second run Result = %+v, want nothing written", res)
	}
	if diff := cmp.Diff(want, snapshot(t, refDir)); diff != "" {
		t.Errorf("second run changed output (-want +got):\n%s", diff)
	}

	for n := 1; n < len(mc.samples); n++ {
		t.Run("stop after "+strconv.Itoa(n), func(t *testing.T) {
			dir := t.TempDir()
			mustExport(t, newTestExporter(idx.truncated("pv:resume", n), dir), "pv:resume")
			mustExport(t, newTestExporter(idx, dir), "pv:resume")

			if diff := cmp.Diff(want, snapshot(t, dir)); diff != "" {
				t.Errorf("resumed output differs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExport_PartialLineIsTruncated(t *testing.T) {
	idx := newMemIndex()
	idx.add("pv", channel.Meta{Limits: tickLimits},
		dbl(t0, 0, 0, 1),
		dbl(t0+1, 0, 0, 2),
		dbl(t0+2, 0, 0, 3),
	)

	refDir := t.TempDir()
	mustExport(t, newTestExporter(idx, refDir), "pv")

	dir := t.TempDir()
	mustExport(t, newTestExporter(idx.truncated("pv", 2), dir), "pv")

	path := filepath.Join(dir, "pv:2015.pb")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	if _, err := f.Write([]byte{0x08, 0x03, 0x1b}); err != nil {
		t.Fatalf("writing fragment: %v", err)
	}
	f.Close()

	logger := &recordingLogger{}
	e := newTestExporter(idx, dir)
	e.SetLogger(logger)
	mustExport(t, e, "pv")

	if diff := cmp.Diff(snapshot(t, refDir), snapshot(t, dir)); diff != "" {
		t.Errorf("repaired output differs (-want +got):\n%s", diff)
	}
	if len(logger.warnings) == 0 {
		t.Error("truncation was not logged")
	}
}

func TestExport_EmptyExistingFileGetsHeader(t *testing.T) {
	idx := newMemIndex()
	idx.add("pv", channel.Meta{}, dbl(t0, 0, 0, 1))

	dir := t.TempDir()
	path := filepath.Join(dir, "pv:2015.pb")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("creating empty file: %v", err)
	}

	mustExport(t, newTestExporter(idx, dir), "pv")

	info, records := readPB(t, path)
	if info.Type != pb.TypeScalarDouble || len(records) != 1 {
		t.Errorf("file = %+v with %d records", info, len(records))
	}
}

func TestExport_TypeMismatchLeavesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pv", "mixed:2015.pb")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}

	enc, err := pb.NewEncoder(channel.Shape{Kind: channel.KindInt})
	if err != nil {
		t.Fatal(err)
	}
	existing := escape.Line(pb.AppendPayloadInfo(nil, pb.PayloadInfo{
		Type: pb.TypeScalarInt, PVName: "pv:mixed", Year: 2015, ElementCount: 1,
	}))
	rec, err := enc.Append(nil, pb.Record{SecondsIntoYear: 1, Value: channel.ScalarInt(7)})
	if err != nil {
		t.Fatal(err)
	}
	existing = append(existing, escape.Line(rec)...)
	if err := os.WriteFile(path, existing, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ScanTail(bytes.NewReader(existing), pb.TypeScalarDouble); !errors.Is(err, pb.ErrTypeMismatch) {
		t.Errorf("ScanTail() error = %v, want ErrTypeMismatch", err)
	}

	idx := newMemIndex()
	idx.add("pv:mixed", channel.Meta{}, dbl(t0, 0, 0, 1))

	logger := &recordingLogger{}
	e := newTestExporter(idx, dir)
	e.SetLogger(logger)
	res := mustExport(t, e, "pv:mixed")

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, existing) {
		t.Error("existing file was modified")
	}
	if res.Generation != 1 {
		t.Errorf("Generation = %d, want 1", res.Generation)
	}
	info, records := readPB(t, path+".1")
	if info.Type != pb.TypeScalarDouble || len(records) != 1 {
		t.Errorf("generation file = %+v with %d records", info, len(records))
	}
	if len(logger.warnings) == 0 {
		t.Error("type mismatch was not logged")
	}
}

func TestExport_CorruptSampleIsSkipped(t *testing.T) {
	idx := newMemIndex()
	mc := idx.add("pv", channel.Meta{}, dbl(t0, 0, 0, 1), dbl(t0+1, 0, 0, 2), dbl(t0+2, 0, 0, 3))
	mc.samples[1].corrupt = true

	dir := t.TempDir()
	res := mustExport(t, newTestExporter(idx, dir), "pv")
	if res.Corrupt != 1 || res.Records != 2 {
		t.Errorf("Result = %+v, want 1 corrupt and 2 records", res)
	}
}

func TestExport_OutOfOrderSampleIsDropped(t *testing.T) {
	idx := newMemIndex()
	idx.add("pv", channel.Meta{}, dbl(t0, 0, 0, 1), dbl(t0+5, 0, 0, 2), dbl(t0+3, 0, 0, 3), dbl(t0+5, 0, 0, 4))

	dir := t.TempDir()
	res := mustExport(t, newTestExporter(idx, dir), "pv")
	if res.Dropped != 1 || res.Records != 3 {
		t.Errorf("Result = %+v, want 1 dropped and 3 records", res)
	}
}

func TestExport_Failures(t *testing.T) {
	t.Run("unknown pv", func(t *testing.T) {
		res, err := newTestExporter(newMemIndex(), t.TempDir()).Export(context.Background(), "nope")
		if !errors.Is(err, archive.ErrChannelNotFound) {
			t.Errorf("Export() error = %v, want ErrChannelNotFound", err)
		}
		if res.Outcome != OutcomeFailed || res.Err != err {
			t.Errorf("Result = %+v", res)
		}
	})

	t.Run("unwritable output", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "pv")
		if err := os.WriteFile(blocker, []byte("file, not a directory"), 0o644); err != nil {
			t.Fatal(err)
		}

		idx := newMemIndex()
		idx.add("pv:x", channel.Meta{}, dbl(t0, 0, 0, 1))
		_, err := newTestExporter(idx, dir).Export(context.Background(), "pv:x")
		if !errors.Is(err, ErrIOFailure) {
			t.Errorf("Export() error = %v, want ErrIOFailure", err)
		}
	})

	t.Run("pv escaping the output directory", func(t *testing.T) {
		idx := newMemIndex()
		idx.add("..:..:etc", channel.Meta{}, dbl(t0, 0, 0, 1))
		_, err := newTestExporter(idx, t.TempDir()).Export(context.Background(), "..:..:etc")
		if !errors.Is(err, ErrInvalidPVName) {
			t.Errorf("Export() error = %v, want ErrInvalidPVName", err)
		}
	})
}

func TestLastSample(t *testing.T) {
	idx := newMemIndex()
	idx.add("pv", channel.Meta{},
		dbl(t0, 0, 0, 1),
		dbl(t0+5, 0, channel.SeverityDisconnected, 0),
		dbl(t0+9, 77, 2, 3),
	)

	dir := t.TempDir()
	mustExport(t, newTestExporter(idx, dir), "pv")
	data, err := os.ReadFile(filepath.Join(dir, "pv:2015.pb"))
	if err != nil {
		t.Fatal(err)
	}

	last, err := LastSample(bytes.NewReader(data), pb.TypeScalarDouble)
	if err != nil {
		t.Fatalf("LastSample() error = %v", err)
	}
	want := dbl(t0+9, 77, 2, 3)
	if diff := cmp.Diff(want, last.Sample); diff != "" {
		t.Errorf("LastSample() mismatch (-want +got):\n%s", diff)
	}
	if last.Records != 2 || len(last.Fields) != 2 {
		t.Errorf("LastSample() = %+v, want 2 records and annotation fields", last)
	}

	if _, err := LastSample(bytes.NewReader(data), pb.TypeScalarInt); !errors.Is(err, pb.ErrTypeMismatch) {
		t.Errorf("LastSample(int) error = %v, want ErrTypeMismatch", err)
	}

	inspected, err := Inspect(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if inspected.Info.PVName != "pv" || inspected.Sample.Time != want.Time {
		t.Errorf("Inspect() = %+v", inspected)
	}

	headerOnly := escape.Line(pb.AppendPayloadInfo(nil, inspected.Info))
	if _, err := Inspect(bytes.NewReader(headerOnly)); !errors.Is(err, ErrNoRecords) {
		t.Errorf("Inspect(header only) error = %v, want ErrNoRecords", err)
	}
	if _, err := Inspect(bytes.NewReader(nil)); !errors.Is(err, ErrMissingHeader) {
		t.Errorf("Inspect(empty) error = %v, want ErrMissingHeader", err)
	}
}
