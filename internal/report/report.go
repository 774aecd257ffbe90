// Package report captures the outcome of a deck build: per-lesson results,
// stage timings, and the overall outcome. Reports are persisted next to the
// rendered artifacts and fed to the history store and notifier.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SchemaVersion is bumped when the serialized report shape changes incompatibly.
const SchemaVersion = 1

// Outcome is the typed enumeration of final build result states.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// LessonState is the terminal state of one lesson render.
type LessonState string

const (
	LessonSucceeded    LessonState = "succeeded"
	LessonFailedRender LessonState = "failed_nonzero"
	LessonFailedLaunch LessonState = "failed_launch"
	LessonUnreadable   LessonState = "directory_unreadable"
	LessonCanceled     LessonState = "canceled"
)

// Failed reports whether the state is a failure.
func (s LessonState) Failed() bool { return s != LessonSucceeded }

// LessonResult records one lesson render.
type LessonResult struct {
	Kind        string        `json:"kind"`
	Lesson      string        `json:"lesson"`
	Output      string        `json:"output"`
	Fragments   []string      `json:"fragments"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	State       LessonState   `json:"state"`
	ExitCode    int           `json:"exit_code,omitempty"`
	Command     string        `json:"command,omitempty"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// Report captures a single build run.
type Report struct {
	BuildID        string
	Trigger        string
	Start          time.Time
	End            time.Time
	Outcome        Outcome
	Revision       string
	ConfigSnapshot string
	StageDurations map[string]time.Duration
	Lessons        []LessonResult
	Errors         []error
}

// New starts a report for buildID, stamped with the current time.
func New(buildID, trigger string) *Report {
	return &Report{
		BuildID:        buildID,
		Trigger:        trigger,
		Start:          time.Now(),
		StageDurations: make(map[string]time.Duration),
	}
}

// AddLesson appends a lesson result.
func (r *Report) AddLesson(res LessonResult) {
	r.Lessons = append(r.Lessons, res)
}

// AddError records a build-level failure.
func (r *Report) AddError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}

// Finish stamps the end time and derives the outcome. canceled wins over failure.
func (r *Report) Finish(canceled bool) {
	r.End = time.Now()
	switch {
	case canceled:
		r.Outcome = OutcomeCanceled
	case len(r.Errors) > 0 || r.FailedCount() > 0:
		r.Outcome = OutcomeFailed
	default:
		r.Outcome = OutcomeSuccess
	}
}

// Duration is the wall time between Start and End.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// SucceededCount returns the number of lessons rendered successfully.
func (r *Report) SucceededCount() int {
	n := 0
	for _, l := range r.Lessons {
		if !l.State.Failed() {
			n++
		}
	}
	return n
}

// FailedCount returns the number of lessons that failed.
func (r *Report) FailedCount() int {
	return len(r.Lessons) - r.SucceededCount()
}

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("build=%s outcome=%s lessons=%d succeeded=%d failed=%d duration=%s",
		r.BuildID, r.Outcome, len(r.Lessons), r.SucceededCount(), r.FailedCount(),
		r.Duration().Truncate(time.Millisecond))
}

// Serializable mirrors Report with errors converted to strings.
type Serializable struct {
	SchemaVersion  int                      `json:"schema_version"`
	BuildID        string                   `json:"build_id"`
	Trigger        string                   `json:"trigger,omitempty"`
	Start          time.Time                `json:"start"`
	End            time.Time                `json:"end"`
	Outcome        Outcome                  `json:"outcome"`
	Revision       string                   `json:"revision,omitempty"`
	ConfigSnapshot string                   `json:"config_snapshot,omitempty"`
	StageDurations map[string]time.Duration `json:"stage_durations"`
	Lessons        []LessonResult           `json:"lessons"`
	Errors         []string                 `json:"errors"`
}

// Serializable returns the JSON-friendly form of the report.
func (r *Report) Serializable() *Serializable {
	s := &Serializable{
		SchemaVersion:  SchemaVersion,
		BuildID:        r.BuildID,
		Trigger:        r.Trigger,
		Start:          r.Start,
		End:            r.End,
		Outcome:        r.Outcome,
		Revision:       r.Revision,
		ConfigSnapshot: r.ConfigSnapshot,
		StageDurations: r.StageDurations,
		Lessons:        r.Lessons,
		Errors:         make([]string, len(r.Errors)),
	}
	if s.StageDurations == nil {
		s.StageDurations = map[string]time.Duration{}
	}
	if s.Lessons == nil {
		s.Lessons = []LessonResult{}
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	return s
}

// MarshalJSON encodes the serializable form.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Serializable())
}

// JSONFile and TextFile are the names Persist writes under the output root.
const (
	JSONFile = "build-report.json"
	TextFile = "build-report.txt"
)

// Persist writes build-report.json and build-report.txt atomically into root.
// Errors are returned for caller logging and do not change the build outcome.
func (r *Report) Persist(root string) error {
	if r.End.IsZero() {
		r.Finish(false)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return fmt.Errorf("ensure root for report: %w", err)
	}
	jb, err := json.MarshalIndent(r.Serializable(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	if err := writeAtomic(filepath.Join(root, JSONFile), jb); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(root, TextFile), []byte(r.Summary()+"\n"))
}

// FileMode is the permission of the persisted reports, which live next to the
// published artifacts.
const FileMode = 0o644

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, FileMode); err != nil {
		return fmt.Errorf("write temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp, FileMode); err != nil {
		return fmt.Errorf("chmod temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
