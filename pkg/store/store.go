// Package store manages SQLite persistence for pairsum.
//
// The database is an append-only log of evaluation runs. Each run records
// which evaluator kind was asked for, which path actually executed, the
// value ticker stamp at commit and the resulting value, so the behaviour
// of incremental updates can be audited after the fact.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/daviddao/pairsum/pkg/clock"
	"github.com/daviddao/pairsum/pkg/model"

	_ "modernc.org/sqlite"
)

// timeFormat is RFC 3339 with fixed-width nanoseconds, so stored times
// sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store manages all SQLite operations with WAL mode for concurrent access.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database and initializes the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// retryOnContention wraps retryOp from retry.go with the default config.
// All store write operations should use this to handle transient SQLite
// errors (BUSY, LOCKED, IOERR_SHORT_READ) under concurrent access.
func retryOnContention(fn func() error) error {
	return retryOp(defaultRetryConfig, fn)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id        TEXT PRIMARY KEY,
		started   TEXT NOT NULL,
		last_seen TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session    TEXT NOT NULL REFERENCES sessions(id),
		label      TEXT NOT NULL DEFAULT '',
		frame      INTEGER NOT NULL,
		requested  TEXT NOT NULL,
		used       TEXT NOT NULL,
		epoch      INTEGER NOT NULL DEFAULT 0,
		step       INTEGER NOT NULL DEFAULT 0,
		workers    INTEGER NOT NULL DEFAULT 1,
		sites      INTEGER NOT NULL,
		value      TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_label ON runs(label, id);
	CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session, frame);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// RegisterSession creates or touches a session. Idempotent via ON CONFLICT.
func (s *Store) RegisterSession(id string) (*model.Session, error) {
	now := time.Now().UTC().Format(timeFormat)
	err := retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO sessions (id, started, last_seen) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET last_seen = excluded.last_seen`,
			id, now, now,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetSession(id)
}

const sessionColumns = `s.id, s.started, s.last_seen,
	(SELECT COUNT(*) FROM runs r WHERE r.session = s.id)`

// GetSession retrieves a session with its run count.
func (s *Store) GetSession(id string) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess, err
}

// ListSessions returns all sessions, most recently started first.
func (s *Store) ListSessions() ([]model.Session, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM sessions s ORDER BY s.started DESC, s.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*model.Session, error) {
	var sess model.Session
	var startStr, lsStr string
	if err := row.Scan(&sess.ID, &startStr, &lsStr, &sess.Runs); err != nil {
		return nil, err
	}
	var parseErr error
	sess.Started, parseErr = time.Parse(time.RFC3339Nano, startStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parse started time for session %s: %w", sess.ID, parseErr)
	}
	sess.LastSeen, parseErr = time.Parse(time.RFC3339Nano, lsStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parse last_seen time for session %s: %w", sess.ID, parseErr)
	}
	return &sess, nil
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// RecordRun appends r to the log and touches its session, which must have
// been registered. It sets r.ID, and r.CreatedAt when zero.
func (s *Store) RecordRun(r *model.Run) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(r.Value)
	if err != nil {
		return 0, fmt.Errorf("encode value: %w", err)
	}
	created := r.CreatedAt.UTC().Format(timeFormat)

	var id int64
	err = retryOnContention(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		res, err := tx.Exec(
			`INSERT INTO runs (session, label, frame, requested, used, epoch, step, workers, sites, value, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Session, r.Label, r.Frame, r.Requested.String(), r.Used.String(),
			int64(r.Tick.Epoch), int64(r.Tick.Step), r.Workers, r.Sites, string(value), created,
		)
		if err != nil {
			return err
		}
		res2, err := tx.Exec(`UPDATE sessions SET last_seen = ? WHERE id = ?`, created, r.Session)
		if err != nil {
			return err
		}
		if n, _ := res2.RowsAffected(); n == 0 {
			return fmt.Errorf("session %s: %w", r.Session, ErrNotFound)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	r.ID = id
	return id, nil
}

const runColumns = `id, session, label, frame, requested, used, epoch, step, workers, sites, value, created_at`

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id int64) (*model.Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRuns returns runs in log order. An empty label matches every run;
// limit <= 0 means no limit.
func (s *Store) ListRuns(label string, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM runs
		 WHERE (? = '' OR label = ?)
		 ORDER BY id LIMIT ?`,
		label, label, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

// ListSessionRuns returns the runs of one session ordered by frame.
func (s *Store) ListSessionRuns(session string) ([]model.Run, error) {
	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM runs WHERE session = ? ORDER BY frame, id`, session,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

// LatestRun returns the most recent run with the given label.
func (s *Store) LatestRun(label string) (*model.Run, error) {
	row := s.db.QueryRow(
		`SELECT `+runColumns+` FROM runs WHERE label = ? ORDER BY id DESC LIMIT 1`, label,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run %q: %w", label, ErrNotFound)
	}
	return r, err
}

// CountRuns returns the total number of runs in the log.
func (s *Store) CountRuns() int64 {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count); err != nil {
		return 0
	}
	return count
}

func scanRuns(rows *sql.Rows) ([]model.Run, error) {
	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func scanRun(row scanner) (*model.Run, error) {
	var r model.Run
	var requested, used, value, created string
	var epoch, step int64
	if err := row.Scan(&r.ID, &r.Session, &r.Label, &r.Frame, &requested, &used,
		&epoch, &step, &r.Workers, &r.Sites, &value, &created); err != nil {
		return nil, err
	}
	if err := r.Requested.UnmarshalText([]byte(requested)); err != nil {
		return nil, fmt.Errorf("run %d requested kind: %w", r.ID, err)
	}
	if err := r.Used.UnmarshalText([]byte(used)); err != nil {
		return nil, fmt.Errorf("run %d used kind: %w", r.ID, err)
	}
	r.Tick = clock.Stamp{Epoch: uint64(epoch), Step: uint64(step)}
	if err := json.Unmarshal([]byte(value), &r.Value); err != nil {
		return nil, fmt.Errorf("decode value for run %d: %w", r.ID, err)
	}
	var parseErr error
	r.CreatedAt, parseErr = time.Parse(time.RFC3339Nano, created)
	if parseErr != nil {
		return nil, fmt.Errorf("parse created_at for run %d: %w", r.ID, parseErr)
	}
	return &r, nil
}
