package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"

	// versionLen is len("YYYYMMDD_HHMMSS").
	versionLen = 15
)

// ErrNoMigrations is returned by MigrateDown when nothing has been applied.
var ErrNoMigrations = errors.New("database: no applied migrations")

// Migration is one versioned schema change.
type Migration struct {
	// Version is the YYYYMMDD_HHMMSS filename prefix.
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationStatus reports whether a known migration has been applied.
type MigrationStatus struct {
	Version   string
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Migrate applies all pending migrations found at the root of fsys, in
// version order. Each migration runs in its own transaction; on failure the
// earlier ones stay committed and a rerun continues from the failed one.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - fsys: Filesystem holding the *.up.sql and *.down.sql files
//
// Returns:
//   - error: If loading or any migration fails
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return err
	}
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return err
	}
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if err := db.exec(ctx, m.UpSQL,
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			m.Version, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration.
func (db *DB) MigrateDown(ctx context.Context, fsys fs.FS) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return err
	}
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return err
	}
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if _, ok := applied[m.Version]; !ok {
			continue
		}
		if m.DownSQL == "" {
			return fmt.Errorf("migration %s has no down file", m.Version)
		}
		if err := db.exec(ctx, m.DownSQL,
			"DELETE FROM schema_migrations WHERE version = ?", m.Version); err != nil {
			return fmt.Errorf("rolling back migration %s (%s): %w", m.Version, m.Name, err)
		}
		return nil
	}
	return ErrNoMigrations
}

// MigrationStatus lists every migration in fsys with its applied state.
func (db *DB) MigrationStatus(ctx context.Context, fsys fs.FS) ([]MigrationStatus, error) {
	if err := db.createMigrationsTable(ctx); err != nil {
		return nil, err
	}
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return nil, err
	}
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		at, ok := applied[m.Version]
		out = append(out, MigrationStatus{Version: m.Version, Name: m.Name, Applied: ok, AppliedAt: at})
	}
	return out, nil
}

// exec runs a migration body and its bookkeeping statement in one
// transaction.
func (db *DB) exec(ctx context.Context, body, record string, args ...any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		) STRICT`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}
	return nil
}

func (db *DB) appliedMigrations(ctx context.Context) (map[string]time.Time, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var version, at string
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scanning migration record: %w", err)
		}
		t, _ := time.Parse(time.RFC3339, at) //nolint:errcheck // zero time on legacy rows
		applied[version] = t
	}
	return applied, rows.Err()
}

// LoadMigrations reads and pairs the migration files at the root of fsys,
// sorted by version. Files that do not follow the naming scheme are
// ignored; a down file without an up file is an error.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, up, ok := parseMigrationFilename(e.Name())
		if !ok {
			continue
		}
		body, err := fs.ReadFile(fsys, path.Clean(e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", e.Name(), err)
		}
		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if up {
			m.UpSQL = string(body)
		} else {
			m.DownSQL = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %s has no up file", m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// parseMigrationFilename splits "20260118_120000_create_runs.up.sql" into
// its version and name and reports the direction.
func parseMigrationFilename(filename string) (version, name string, up, ok bool) {
	var stem string
	switch {
	case strings.HasSuffix(filename, upSuffix):
		stem, up = strings.TrimSuffix(filename, upSuffix), true
	case strings.HasSuffix(filename, downSuffix):
		stem = strings.TrimSuffix(filename, downSuffix)
	default:
		return "", "", false, false
	}
	if len(stem) < versionLen || stem[8] != '_' {
		return "", "", false, false
	}
	version = stem[:versionLen]
	for i, c := range version {
		if i != 8 && (c < '0' || c > '9') {
			return "", "", false, false
		}
	}
	name = strings.TrimPrefix(stem[versionLen:], "_")
	return version, name, up, true
}
