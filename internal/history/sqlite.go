package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/deckbuilder/internal/report"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if needed) a history database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseOpenFailed, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseOpenFailed, err)
	}
	// A single connection keeps :memory: databases coherent across calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrInitializeSchemaFailed, err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		build_trigger TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		revision TEXT,
		snapshot TEXT,
		lessons INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		error TEXT
	);
	CREATE TABLE IF NOT EXISTS lessons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL REFERENCES builds(id),
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		output TEXT NOT NULL,
		fragments INTEGER NOT NULL,
		fingerprint TEXT,
		state TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started_at);
	CREATE INDEX IF NOT EXISTS idx_lessons_build ON lessons(build_id);
	CREATE INDEX IF NOT EXISTS idx_lessons_name ON lessons(kind, name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record persists a finished report and its lessons in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrRecordFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO builds (id, build_trigger, started_at, finished_at, outcome, revision, snapshot, lessons, failed, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BuildID, r.Trigger, r.Start.UnixMilli(), r.End.UnixMilli(), string(r.Outcome),
		r.Revision, r.ConfigSnapshot, len(r.Lessons), r.FailedCount(), strings.Join(msgs, "\n"),
	)
	if err != nil {
		return fmt.Errorf("%w: insert build: %w", ErrRecordFailed, err)
	}

	for _, l := range r.Lessons {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO lessons (build_id, kind, name, output, fragments, fingerprint, state, exit_code, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.BuildID, l.Kind, l.Lesson, l.Output, len(l.Fragments), l.Fingerprint, string(l.State),
			l.ExitCode, l.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("%w: insert lesson %s: %w", ErrRecordFailed, l.Lesson, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrRecordFailed, err)
	}
	return nil
}

// Recent returns up to limit builds, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, build_trigger, started_at, finished_at, outcome, revision, snapshot, lessons, failed, error
		 FROM builds ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	var builds []Build
	for rows.Next() {
		var b Build
		var started, finished int64
		var outcome string
		var revision, snapshot, errText sql.NullString
		if err := rows.Scan(&b.ID, &b.Trigger, &started, &finished, &outcome, &revision, &snapshot,
			&b.Lessons, &b.Failed, &errText); err != nil {
			return nil, fmt.Errorf("%w: scan build: %w", ErrQueryFailed, err)
		}
		b.StartedAt = time.UnixMilli(started)
		b.FinishedAt = time.UnixMilli(finished)
		b.Outcome = report.Outcome(outcome)
		b.Revision = revision.String
		b.Snapshot = snapshot.String
		b.Error = errText.String
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %w", ErrQueryFailed, err)
	}
	return builds, nil
}

// Lessons returns the lesson rows of one build in render order.
func (s *SQLiteStore) Lessons(ctx context.Context, buildID string) ([]Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT build_id, kind, name, output, fragments, fingerprint, state, exit_code, duration_ms
		 FROM lessons WHERE build_id = ? ORDER BY id`, buildID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	var lessons []Lesson
	for rows.Next() {
		var l Lesson
		var fingerprint sql.NullString
		var state string
		var ms int64
		if err := rows.Scan(&l.BuildID, &l.Kind, &l.Name, &l.Output, &l.Fragments, &fingerprint,
			&state, &l.ExitCode, &ms); err != nil {
			return nil, fmt.Errorf("%w: scan lesson: %w", ErrQueryFailed, err)
		}
		l.Fingerprint = fingerprint.String
		l.State = report.LessonState(state)
		l.Duration = time.Duration(ms) * time.Millisecond
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %w", ErrQueryFailed, err)
	}
	return lessons, nil
}

// LastFingerprint returns the fingerprint of the most recent successful render of a lesson.
func (s *SQLiteStore) LastFingerprint(ctx context.Context, kind, lesson string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fp sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM lessons WHERE kind = ? AND name = ? AND state = ?
		 ORDER BY id DESC LIMIT 1`, kind, lesson, string(report.LessonSucceeded)).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return fp.String, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
