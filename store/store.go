// Package store persists validation runs and their findings to SQLite,
// so successive tool runs can be compared and reported on.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tliron/commonlog"

	"github.com/roxplc/rox/validate"
)

var log = commonlog.GetLogger("rox.store")

// ErrRunNotFound indicates the requested run id doesn't exist.
var ErrRunNotFound = errors.New("run not found")

// Store wraps one findings database.
type Store struct {
	db   *sql.DB
	path string
}

// Run is one recorded validation run.
type Run struct {
	ID         string
	Controller string
	Digest     string
	CreatedAt  time.Time
	Findings   int
}

// Open opens (creating if needed) the findings database at path. Parent
// directories are created.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		controller TEXT NOT NULL,
		digest     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS findings (
		run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		rule     TEXT NOT NULL,
		severity INTEGER NOT NULL,
		program  TEXT NOT NULL DEFAULT '',
		routine  TEXT NOT NULL DEFAULT '',
		rung     INTEGER NOT NULL DEFAULT 0,
		operand  TEXT NOT NULL DEFAULT '',
		message  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS findings_run ON findings(run_id);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// SaveRun records a validation run and its findings in one transaction,
// returning the new run id. digest may carry a controller snapshot
// digest, or "".
func (s *Store) SaveRun(controller, digest string, findings []validate.Finding) (string, error) {
	id := uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO runs (id, controller, digest, created_at) VALUES (?, ?, ?, ?)",
		id, controller, digest, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO findings (run_id, rule, severity, program, routine, rung, operand, message) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range findings {
		if _, err := stmt.Exec(id, f.Rule, int(f.Severity), f.Program, f.Routine, f.Rung, f.Operand, f.Message); err != nil {
			return "", fmt.Errorf("inserting finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	log.Infof("saved run %s for %s with %d findings", id, controller, len(findings))
	return id, nil
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT r.id, r.controller, r.digest, r.created_at, COUNT(f.run_id)
		FROM runs r LEFT JOIN findings f ON f.run_id = r.id
		GROUP BY r.id ORDER BY r.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Controller, &r.Digest, &r.CreatedAt, &r.Findings); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns one run by id.
func (s *Store) Run(id string) (Run, error) {
	var r Run
	err := s.db.QueryRow(`
		SELECT r.id, r.controller, r.digest, r.created_at, COUNT(f.run_id)
		FROM runs r LEFT JOIN findings f ON f.run_id = r.id
		WHERE r.id = ? GROUP BY r.id`, id).
		Scan(&r.ID, &r.Controller, &r.Digest, &r.CreatedAt, &r.Findings)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("querying run: %w", err)
	}
	return r, nil
}

// Findings returns the findings recorded for one run, in insertion order.
func (s *Store) Findings(runID string) ([]validate.Finding, error) {
	if _, err := s.Run(runID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT rule, severity, program, routine, rung, operand, message FROM findings WHERE run_id = ? ORDER BY rowid",
		runID)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	var findings []validate.Finding
	for rows.Next() {
		var f validate.Finding
		var severity int
		if err := rows.Scan(&f.Rule, &severity, &f.Program, &f.Routine, &f.Rung, &f.Operand, &f.Message); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		f.Severity = validate.Severity(severity)
		findings = append(findings, f)
	}
	return findings, rows.Err()
}
