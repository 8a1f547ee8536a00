package ledger

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/pbexport/internal/export"
	"github.com/nerrad567/pbexport/internal/infrastructure/database"
	"github.com/nerrad567/pbexport/migrations"
)

// setupTestDB creates an in-memory database with the state schema applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ms, err := database.LoadMigrations(migrations.FS)
	if err != nil {
		t.Fatalf("loading migrations: %v", err)
	}
	for _, m := range ms {
		if _, err := db.Exec(m.UpSQL); err != nil {
			t.Fatalf("applying %s: %v", m.Version, err)
		}
	}
	return db
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func result(pv string, offset time.Duration, err error) export.Result {
	res := export.Result{
		PV:         pv,
		Outcome:    export.OutcomeOK,
		Records:    10,
		Suppressed: 2,
		Skipped:    1,
		Generation: 0,
		Files:      []string{"/out/" + pv + ":2015.pb"},
		Started:    base.Add(offset),
		Finished:   base.Add(offset + time.Second),
	}
	if err != nil {
		res.Outcome = export.OutcomeFailed
		res.Err = err
	}
	return res
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))

	run := FromResult("batch-1", result("SR:C01", 0, nil))
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if run.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}

	got, err := repo.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("GetByID() mismatch (-want +got):\n%s", diff)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetByID(missing) = %v, want ErrRunNotFound", err)
	}
}

func TestCreateNilFiles(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))

	run := FromResult("b", export.Result{PV: "X", Outcome: export.OutcomeFailed, Err: errors.New("boom")})
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, err := repo.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(got.Files) != 0 || got.Error != "boom" {
		t.Errorf("got Files=%v Error=%q", got.Files, got.Error)
	}
}

func TestLatest(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))
	rec := NewRecorder(repo)

	results := []export.Result{
		result("SR:A", 0, errors.New("disk full")),
		result("SR:A", time.Minute, nil),
		result("SR:B", 0, nil),
		result("SR:B", time.Minute, errors.New("no such channel")),
		result("LN:C", 0, nil),
	}
	for _, res := range results {
		if err := rec.ExportFinished(ctx, res); err != nil {
			t.Fatalf("ExportFinished(%s) error = %v", res.PV, err)
		}
	}

	type row struct {
		PV      string
		Outcome export.Outcome
		Error   string
		BatchID string
	}
	summarise := func(runs []Run) []row {
		var out []row
		for _, r := range runs {
			out = append(out, row{r.PV, r.Outcome, r.Error, r.BatchID})
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		want   []row
	}{
		{
			name: "all",
			want: []row{
				{"LN:C", export.OutcomeOK, "", rec.BatchID()},
				{"SR:A", export.OutcomeOK, "", rec.BatchID()},
				{"SR:B", export.OutcomeFailed, "no such channel", rec.BatchID()},
			},
		},
		{
			name:   "failed only",
			filter: Filter{Outcome: export.OutcomeFailed},
			want:   []row{{"SR:B", export.OutcomeFailed, "no such channel", rec.BatchID()}},
		},
		{
			name:   "prefix",
			filter: Filter{Prefix: "SR:"},
			want: []row{
				{"SR:A", export.OutcomeOK, "", rec.BatchID()},
				{"SR:B", export.OutcomeFailed, "no such channel", rec.BatchID()},
			},
		},
		{
			name:   "no match",
			filter: Filter{Prefix: "XX"},
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := repo.Latest(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Latest() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, summarise(runs)); diff != "" {
				t.Errorf("Latest() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRecorderBatchIDsDiffer(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	if NewRecorder(repo).BatchID() == NewRecorder(repo).BatchID() {
		t.Error("two recorders share a batch ID")
	}
}
