package archive

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is the historian index layout. Kind columns hold DBR type codes.
const schema = `
CREATE TABLE IF NOT EXISTS channels (
	id            INTEGER PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	kind          INTEGER NOT NULL,
	is_array      INTEGER NOT NULL DEFAULT 0,
	element_count INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS channel_meta (
	channel_id   INTEGER PRIMARY KEY REFERENCES channels(id) ON DELETE CASCADE,
	display_high REAL NOT NULL DEFAULT 0,
	display_low  REAL NOT NULL DEFAULT 0,
	units        TEXT NOT NULL DEFAULT '',
	high_alarm   REAL NOT NULL DEFAULT 0,
	high_warn    REAL NOT NULL DEFAULT 0,
	low_warn     REAL NOT NULL DEFAULT 0,
	low_alarm    REAL NOT NULL DEFAULT 0,
	prec         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS channel_states (
	channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	idx        INTEGER NOT NULL,
	label      TEXT NOT NULL,
	PRIMARY KEY (channel_id, idx)
);

CREATE TABLE IF NOT EXISTS samples (
	id         INTEGER PRIMARY KEY,
	channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	sec        INTEGER NOT NULL,
	nsec       INTEGER NOT NULL DEFAULT 0,
	severity   INTEGER NOT NULL DEFAULT 0,
	status     INTEGER NOT NULL DEFAULT 0,
	kind       INTEGER NOT NULL,
	is_array   INTEGER NOT NULL DEFAULT 0,
	count      INTEGER NOT NULL DEFAULT 1,
	value      BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_samples_channel_time ON samples(channel_id, sec, nsec, id);
`

// EnsureSchema creates the historian tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating historian schema: %w", err)
	}
	return nil
}
