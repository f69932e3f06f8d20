// Package sessiondb persists simulation sessions to a local SQLite
// file so that runs can be compared across machines and commits.
package sessiondb

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	hostname   TEXT NOT NULL,
	cpu        TEXT NOT NULL,
	cores      INTEGER NOT NULL,
	memory_mb  INTEGER NOT NULL,
	go_version TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id      TEXT NOT NULL REFERENCES sessions(id),
	implementation  TEXT NOT NULL,
	scenario        TEXT NOT NULL,
	capacity        INTEGER NOT NULL,
	ticks           INTEGER NOT NULL,
	produced        INTEGER NOT NULL,
	consumed        INTEGER NOT NULL,
	rejected_writes INTEGER NOT NULL,
	rejected_reads  INTEGER NOT NULL,
	resets          INTEGER NOT NULL,
	full_writes     INTEGER NOT NULL,
	empty_reads     INTEGER NOT NULL,
	duration_ns     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);
`

// Session identifies one invocation of the simulator.
type Session struct {
	ID        string
	CreatedAt time.Time
	Hostname  string
	CPU       string
	Cores     int
	MemoryMB  uint64
	GoVersion string
}

// Run is one implementation/scenario pairing within a session.
type Run struct {
	SessionID      string
	Implementation string
	Scenario       string
	Capacity       uint64
	Ticks          uint64
	Produced       int64
	Consumed       int64
	RejectedWrites int64
	RejectedReads  int64
	Resets         int64
	FullWrites     uint64
	EmptyReads     uint64
	Duration       time.Duration
}

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema
// exists. Pass ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening session database")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enabling WAL mode")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertSession records a new session row.
func (s *Store) InsertSession(se Session) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, created_at, hostname, cpu, cores, memory_mb, go_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		se.ID, se.CreatedAt.Unix(), se.Hostname, se.CPU, se.Cores, se.MemoryMB, se.GoVersion,
	)
	return errors.Wrap(err, "inserting session")
}

// InsertRun records one run row under its session.
func (s *Store) InsertRun(r Run) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (session_id, implementation, scenario, capacity, ticks,
		                   produced, consumed, rejected_writes, rejected_reads,
		                   resets, full_writes, empty_reads, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Implementation, r.Scenario, r.Capacity, r.Ticks,
		r.Produced, r.Consumed, r.RejectedWrites, r.RejectedReads,
		r.Resets, r.FullWrites, r.EmptyReads, r.Duration.Nanoseconds(),
	)
	return errors.Wrap(err, "inserting run")
}

// SessionRuns returns all runs recorded for a session, oldest first.
func (s *Store) SessionRuns(sessionID string) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT session_id, implementation, scenario, capacity, ticks,
		        produced, consumed, rejected_writes, rejected_reads,
		        resets, full_writes, empty_reads, duration_ns
		 FROM runs WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationNs int64
		if err := rows.Scan(
			&r.SessionID, &r.Implementation, &r.Scenario, &r.Capacity, &r.Ticks,
			&r.Produced, &r.Consumed, &r.RejectedWrites, &r.RejectedReads,
			&r.Resets, &r.FullWrites, &r.EmptyReads, &durationNs,
		); err != nil {
			return nil, errors.Wrap(err, "scanning run row")
		}
		r.Duration = time.Duration(durationNs)
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "iterating run rows")
}

// Sessions returns the IDs of all recorded sessions, newest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, hostname, cpu, cores, memory_mb, go_version
		 FROM sessions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var se Session
		var createdAt int64
		if err := rows.Scan(&se.ID, &createdAt, &se.Hostname, &se.CPU, &se.Cores, &se.MemoryMB, &se.GoVersion); err != nil {
			return nil, errors.Wrap(err, "scanning session row")
		}
		se.CreatedAt = time.Unix(createdAt, 0)
		sessions = append(sessions, se)
	}
	return sessions, errors.Wrap(rows.Err(), "iterating session rows")
}
