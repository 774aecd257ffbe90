// Package history keeps a SQLite record of past builds and their lessons.
package history

import (
	"context"
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/report"
)

// Build is a stored build summary.
type Build struct {
	ID         string
	Trigger    string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    report.Outcome
	Revision   string
	Snapshot   string
	Lessons    int
	Failed     int
	Error      string
}

// Lesson is a stored lesson result.
type Lesson struct {
	BuildID     string
	Kind        string
	Name        string
	Output      string
	Fragments   int
	Fingerprint string
	State       report.LessonState
	ExitCode    int
	Duration    time.Duration
}

// Store defines the interface for persisting and retrieving build history.
type Store interface {
	// Record persists a finished report.
	Record(ctx context.Context, r *report.Report) error

	// Recent returns up to limit builds, newest first.
	Recent(ctx context.Context, limit int) ([]Build, error)

	// Lessons returns the lesson rows of one build in render order.
	Lessons(ctx context.Context, buildID string) ([]Lesson, error)

	// LastFingerprint returns the fingerprint of the most recent successful
	// render of a lesson, or "" if there is none.
	LastFingerprint(ctx context.Context, kind, lesson string) (string, error)

	// Close closes the store and releases resources.
	Close() error
}
