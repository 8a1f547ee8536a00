package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0o750

	// filePermissions is the permission mode for a writable database file.
	filePermissions = 0o600

	msPerSecond = 1000

	// connectionTimeout bounds the initial ping.
	connectionTimeout = 5 * time.Second

	connMaxIdleTime = 30 * time.Minute
)

// DB wraps a sql.DB connection to one SQLite file.
type DB struct {
	*sql.DB
	path string
}

// Config contains database connection options.
type Config struct {
	// Path is the SQLite file. For writable databases the directory is
	// created if needed.
	Path string

	// ReadOnly opens an existing file without write access. Used for the
	// historian index.
	ReadOnly bool

	// WALMode enables write-ahead logging on writable databases.
	WALMode bool

	// BusyTimeout is the lock wait in seconds.
	BusyTimeout int

	// MaxOpenConns limits the pool. Zero means a single connection, the
	// right choice for a writer; readers shared by export workers should
	// allow one connection per worker.
	MaxOpenConns int
}

// Open creates a database connection with the specified configuration.
//
// Parameters:
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Connected database wrapper
//   - error: If the file cannot be opened or does not answer a ping
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("opening database: empty path")
	}

	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(cfg.BusyTimeout*msPerSecond))
	q.Set("_foreign_keys", "on")

	if cfg.ReadOnly {
		if _, err := os.Stat(cfg.Path); err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		q.Set("mode", "ro")
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		if cfg.WALMode {
			q.Set("_journal_mode", "WAL")
			q.Set("_synchronous", "NORMAL")
		}
	}

	sqlDB, err := sql.Open("sqlite3", "file:"+cfg.Path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	conns := cfg.MaxOpenConns
	if conns < 1 {
		conns = 1
	}
	sqlDB.SetMaxOpenConns(conns)
	sqlDB.SetMaxIdleConns(conns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{DB: sqlDB, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if !cfg.ReadOnly {
		_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // file may be created lazily
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database %s: %w", db.path, err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database answers a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
