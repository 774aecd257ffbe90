package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyKind       = "kind"
	KeyLesson     = "lesson"
	KeyPath       = "path"
	KeyOutput     = "output"
	KeyCommand    = "command"
	KeyDir        = "dir"
	KeyExitCode   = "exit_code"
	KeyFragments  = "fragments"
	KeyDurationMS = "duration_ms"
	KeySchedule   = "schedule"
	KeyTrigger    = "trigger"
	KeyOutcome    = "outcome"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func Lesson(name string) slog.Attr    { return slog.String(KeyLesson, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Output(p string) slog.Attr       { return slog.String(KeyOutput, p) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func Dir(d string) slog.Attr          { return slog.String(KeyDir, d) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func Fragments(n int) slog.Attr       { return slog.Int(KeyFragments, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Schedule(s string) slog.Attr     { return slog.String(KeySchedule, s) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }

// Duration reports d in milliseconds under the canonical duration key.
func Duration(d time.Duration) slog.Attr {
	return DurationMS(float64(d.Microseconds()) / 1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
