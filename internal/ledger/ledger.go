package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/pbexport/internal/export"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("ledger: run not found")

// Run is one recorded PV export.
type Run struct {
	ID         string
	BatchID    string
	PV         string
	Started    time.Time
	Finished   time.Time
	Records    int
	Suppressed int
	Skipped    int
	Dropped    int
	Corrupt    int
	Generation int
	Files      []string
	Outcome    export.Outcome
	Error      string
}

// Filter narrows Latest.
type Filter struct {
	// Outcome keeps only PVs whose newest run has this outcome.
	Outcome export.Outcome
	// Prefix keeps only PV names starting with it.
	Prefix string
}

// Repository defines the ledger operations.
type Repository interface {
	Create(ctx context.Context, run *Run) error
	GetByID(ctx context.Context, id string) (*Run, error)
	Latest(ctx context.Context, filter Filter) ([]Run, error)
}

// SQLiteRepository stores runs in the export_runs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a ledger backed by db. The export_runs
// migration must already be applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const runColumns = `id, batch_id, pv, started_at, finished_at, records, suppressed,
	skipped, dropped, corrupt, generation, files, outcome, error`

// Create inserts a run. An empty ID is filled with a new UUID.
func (r *SQLiteRepository) Create(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	files := run.Files
	if files == nil {
		files = []string{}
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("marshalling run files: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO export_runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.BatchID, run.PV,
		run.Started.UnixNano(), run.Finished.UnixNano(),
		run.Records, run.Suppressed, run.Skipped, run.Dropped, run.Corrupt,
		run.Generation, string(filesJSON), string(run.Outcome), run.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting export run: %w", err)
	}
	return nil
}

// GetByID returns one run.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM export_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Latest returns the newest run of every PV, ordered by PV name.
func (r *SQLiteRepository) Latest(ctx context.Context, filter Filter) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY pv ORDER BY finished_at DESC, rowid DESC) AS rn
			FROM export_runs
			WHERE substr(pv, 1, length(?1)) = ?1
		)
		WHERE rn = 1 AND (?2 = '' OR outcome = ?2)
		ORDER BY pv`,
		filter.Prefix, string(filter.Outcome))
	if err != nil {
		return nil, fmt.Errorf("querying latest runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating latest runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run               Run
		started, finished int64
		filesJSON         string
		outcome           string
	)
	err := s.Scan(&run.ID, &run.BatchID, &run.PV, &started, &finished,
		&run.Records, &run.Suppressed, &run.Skipped, &run.Dropped, &run.Corrupt,
		&run.Generation, &filesJSON, &outcome, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning export run: %w", err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &run.Files); err != nil {
		return nil, fmt.Errorf("decoding files of run %s: %w", run.ID, err)
	}
	run.Started = time.Unix(0, started).UTC()
	run.Finished = time.Unix(0, finished).UTC()
	run.Outcome = export.Outcome(outcome)
	return &run, nil
}
