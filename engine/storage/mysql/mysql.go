// Package mysql implements a session status storage backend using MySQL.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relaypro/relay-go/engine/storage"
)

// MySQLStorage implements a storage.Storage using MySQL.
type MySQLStorage struct {
	db *sql.DB
}

type config struct {
	driver string
	dsn    string
	db     *sql.DB
}

// Option allows configuring a MySQLStorage.
type Option func(*config)

// WithDSN sets the storage MySQL data source name.
func WithDSN(dsn string) Option {
	return func(c *config) {
		c.dsn = dsn
	}
}

// WithDriver sets a custom MySQL driver for the storage.
// Default driver is "mysql" but is ignored if WithDB is used.
func WithDriver(driver string) Option {
	return func(c *config) {
		c.driver = driver
	}
}

// WithDB sets a custom MySQL *sql.DB to the storage.
// If set, driver passed via WithDriver is ignored.
func WithDB(db *sql.DB) Option {
	return func(c *config) {
		c.db = db
	}
}

// New creates and returns a new MySQL.
// The DSN should set parseTime=true.
func New(opts ...Option) (*MySQLStorage, error) {
	cfg := &config{driver: "mysql"}
	for _, opt := range opts {
		opt(cfg)
	}
	var err error
	if cfg.db == nil {
		cfg.db, err = sql.Open(cfg.driver, cfg.dsn)
		if err != nil {
			return nil, err
		}
	}
	if err = cfg.db.Ping(); err != nil {
		return nil, err
	}
	return &MySQLStorage{db: cfg.db}, nil
}

// sqlNullString sets Valid to true of the return value of s is not empty.
func sqlNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const selectStatus = `SELECT id, workflow, trig, source_uri, started_at, stopped_at, reason FROM sessions`

type scanner interface {
	Scan(dest ...any) error
}

func scanStatus(row scanner) (*storage.Status, error) {
	var (
		st                   storage.Status
		trig, source, reason sql.NullString
		stopped              sql.NullTime
	)
	err := row.Scan(&st.ID, &st.Workflow, &trig, &source, &st.Started, &stopped, &reason)
	if err != nil {
		return nil, err
	}
	st.Trigger = trig.String
	st.SourceURI = source.String
	st.Reason = reason.String
	if stopped.Valid {
		st.Stopped = &stopped.Time
	}
	return &st, nil
}

// RetrieveSession returns the status of session id.
func (s *MySQLStorage) RetrieveSession(ctx context.Context, id string) (*storage.Status, error) {
	st, err := scanStatus(s.db.QueryRowContext(ctx, selectStatus+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("select session %s: %w", id, err)
	}
	return st, nil
}

// RetrieveSessions returns statuses matching opt, most recently started first.
func (s *MySQLStorage) RetrieveSessions(ctx context.Context, opt *storage.SearchOptions) ([]*storage.Status, error) {
	if opt == nil {
		opt = &storage.SearchOptions{}
	}
	var (
		q    strings.Builder
		args []any
	)
	q.WriteString(selectStatus)
	if opt.Workflow != "" {
		q.WriteString(` WHERE workflow = ?`)
		args = append(args, opt.Workflow)
	}
	q.WriteString(` ORDER BY started_at DESC, id DESC`)
	if opt.Limit > 0 {
		q.WriteString(` LIMIT ?`)
		args = append(args, opt.Limit)
	}
	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer rows.Close()
	var statuses []*storage.Status
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// RecordSessionStarted stores a newly started session.
func (s *MySQLStorage) RecordSessionStarted(ctx context.Context, st *storage.Status) error {
	if st == nil || st.ID == "" {
		return errors.New("missing session id")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (id, workflow, trig, source_uri, started_at) VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE workflow = VALUES(workflow), trig = VALUES(trig), source_uri = VALUES(source_uri), started_at = VALUES(started_at), stopped_at = NULL, reason = NULL;`,
		st.ID,
		st.Workflow,
		sqlNullString(st.Trigger),
		sqlNullString(st.SourceURI),
		st.Started,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", st.ID, err)
	}
	return nil
}

// RecordSessionStopped marks session id stopped.
func (s *MySQLStorage) RecordSessionStopped(ctx context.Context, id string, reason string, at time.Time) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET stopped_at = ?, reason = ? WHERE id = ?;`,
		at,
		sqlNullString(reason),
		id,
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n < 1 {
		// a stop recorded twice with identical values also affects no rows
		if _, err = s.RetrieveSession(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
