package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/nerrad567/pbexport/internal/channel"
)

// DefaultPageSize is the number of samples fetched per cursor query.
const DefaultPageSize = 1024

// SQLiteIndex implements Index using SQLite.
type SQLiteIndex struct {
	db       *sql.DB
	pageSize int
}

// NewSQLiteIndex creates an index over an open historian database.
// A pageSize of zero or less selects DefaultPageSize.
func NewSQLiteIndex(db *sql.DB, pageSize int) *SQLiteIndex {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &SQLiteIndex{db: db, pageSize: pageSize}
}

// Channels lists every channel ordered by name.
func (x *SQLiteIndex) Channels(ctx context.Context) ([]Channel, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT name, kind, is_array, element_count FROM channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating channels: %w", err)
	}
	return out, nil
}

// Lookup returns the named channel.
func (x *SQLiteIndex) Lookup(ctx context.Context, name string) (Channel, error) {
	row := x.db.QueryRowContext(ctx,
		`SELECT name, kind, is_array, element_count FROM channels WHERE name = ?`, name)
	ch, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Channel{}, fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	return ch, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChannel(s scanner) (Channel, error) {
	var (
		ch      Channel
		kind    int
		isArray bool
	)
	if err := s.Scan(&ch.Name, &kind, &isArray, &ch.ElementCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ch, err
		}
		return ch, fmt.Errorf("scanning channel: %w", err)
	}
	k, err := kindFromDBR(kind)
	if err != nil {
		return ch, fmt.Errorf("channel %s: %w", ch.Name, err)
	}
	ch.Shape = channel.Shape{Kind: k, Array: isArray}
	return ch, nil
}

// Meta returns the limits and state labels of the named channel.
func (x *SQLiteIndex) Meta(ctx context.Context, name string) (channel.Meta, error) {
	var meta channel.Meta

	id, err := x.channelID(ctx, name)
	if err != nil {
		return meta, err
	}

	var lim channel.Limits
	err = x.db.QueryRowContext(ctx, `
		SELECT display_high, display_low, units, high_alarm, high_warn, low_warn, low_alarm, prec
		FROM channel_meta WHERE channel_id = ?`, id).Scan(
		&lim.DisplayHigh, &lim.DisplayLow, &lim.Units,
		&lim.HighAlarm, &lim.HighWarn, &lim.LowWarn, &lim.LowAlarm, &lim.Precision)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return meta, fmt.Errorf("querying limits of %s: %w", name, err)
	default:
		meta.Limits = &lim
	}

	rows, err := x.db.QueryContext(ctx,
		`SELECT label FROM channel_states WHERE channel_id = ? ORDER BY idx`, id)
	if err != nil {
		return meta, fmt.Errorf("querying states of %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return meta, fmt.Errorf("scanning state of %s: %w", name, err)
		}
		meta.States = append(meta.States, label)
	}
	if err := rows.Err(); err != nil {
		return meta, fmt.Errorf("iterating states of %s: %w", name, err)
	}
	return meta, nil
}

func (x *SQLiteIndex) channelID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := x.db.QueryRowContext(ctx, `SELECT id FROM channels WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("looking up channel %s: %w", name, err)
	}
	return id, nil
}

// Open returns a cursor over the named channel's samples.
func (x *SQLiteIndex) Open(ctx context.Context, name string) (Cursor, error) {
	id, err := x.channelID(ctx, name)
	if err != nil {
		return nil, err
	}

	c := &sqliteCursor{
		db:        x.db,
		channelID: id,
		pageSize:  x.pageSize,
		last:      rawSample{sec: math.MinInt64},
	}
	if err := c.fetch(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// rawSample is one undecoded row of the samples table.
type rawSample struct {
	id       int64
	sec      int64
	nsec     int64
	severity int32
	status   int32
	kind     int
	isArray  bool
	count    int
	value    []byte
}

// sqliteCursor pages through samples with keyset pagination on
// (sec, nsec, id). No rows are held open between pages.
type sqliteCursor struct {
	db        *sql.DB
	channelID int64
	pageSize  int

	page []rawSample
	pos  int
	more bool
	last rawSample
}

func (c *sqliteCursor) fetch(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, sec, nsec, severity, status, kind, is_array, count, value
		FROM samples
		WHERE channel_id = ? AND (sec, nsec, id) > (?, ?, ?)
		ORDER BY sec, nsec, id
		LIMIT ?`,
		c.channelID, c.last.sec, c.last.nsec, c.last.id, c.pageSize)
	if err != nil {
		return fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	c.page = c.page[:0]
	c.pos = 0
	for rows.Next() {
		var r rawSample
		if err := rows.Scan(&r.id, &r.sec, &r.nsec, &r.severity, &r.status,
			&r.kind, &r.isArray, &r.count, &r.value); err != nil {
			return fmt.Errorf("scanning sample: %w", err)
		}
		c.page = append(c.page, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating samples: %w", err)
	}

	c.more = len(c.page) == c.pageSize
	if n := len(c.page); n > 0 {
		c.last = c.page[n-1]
	}
	return nil
}

func (c *sqliteCursor) Valid() bool {
	return c.pos < len(c.page)
}

func (c *sqliteCursor) Sample() (channel.Sample, error) {
	if !c.Valid() {
		return channel.Sample{}, ErrCursorExhausted
	}
	r := c.page[c.pos]

	s := channel.Sample{
		Time:     channel.Timestamp{Sec: r.sec, Nsec: uint32(r.nsec)},
		Severity: r.severity,
		Status:   r.status,
	}
	if r.nsec < 0 || r.nsec >= 1e9 {
		return s, fmt.Errorf("%w: sample %d has nsec %d", ErrCorruptHeader, r.id, r.nsec)
	}
	kind, err := kindFromDBR(r.kind)
	if err != nil {
		return s, fmt.Errorf("sample %d: %w", r.id, err)
	}
	s.Value, err = decodeValue(channel.Shape{Kind: kind, Array: r.isArray}, r.count, r.value)
	if err != nil {
		return s, fmt.Errorf("sample %d: %w", r.id, err)
	}
	return s, nil
}

func (c *sqliteCursor) Next(ctx context.Context) error {
	if !c.Valid() {
		return ErrCursorExhausted
	}
	c.pos++
	if c.pos < len(c.page) || !c.more {
		return nil
	}
	return c.fetch(ctx)
}

func (c *sqliteCursor) Close() error {
	c.page = nil
	c.pos = 0
	c.more = false
	return nil
}
