package notify

import (
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/report"
)

// BuildEvent is the message published when a build finishes.
type BuildEvent struct {
	BuildID   string          `json:"build_id"`
	Trigger   string          `json:"trigger,omitempty"`
	Outcome   report.Outcome  `json:"outcome"`
	Revision  string          `json:"revision,omitempty"`
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Artifacts []ArtifactEvent `json:"artifacts"`
	Errors    []string        `json:"errors,omitempty"`
}

// ArtifactEvent describes one lesson render in a BuildEvent.
type ArtifactEvent struct {
	Kind        string             `json:"kind"`
	Lesson      string             `json:"lesson"`
	Output      string             `json:"output"`
	State       report.LessonState `json:"state"`
	Fingerprint string             `json:"fingerprint,omitempty"`
}

// NewBuildEvent derives the published event from a finished report.
func NewBuildEvent(r *report.Report) BuildEvent {
	ev := BuildEvent{
		BuildID:   r.BuildID,
		Trigger:   r.Trigger,
		Outcome:   r.Outcome,
		Revision:  r.Revision,
		Start:     r.Start,
		End:       r.End,
		Succeeded: r.SucceededCount(),
		Failed:    r.FailedCount(),
		Artifacts: make([]ArtifactEvent, 0, len(r.Lessons)),
	}
	for _, l := range r.Lessons {
		ev.Artifacts = append(ev.Artifacts, ArtifactEvent{
			Kind:        l.Kind,
			Lesson:      l.Lesson,
			Output:      l.Output,
			State:       l.State,
			Fingerprint: l.Fingerprint,
		})
	}
	for _, e := range r.Errors {
		ev.Errors = append(ev.Errors, e.Error())
	}
	return ev
}

// Subject returns the subject a build event is published on: the base subject
// suffixed with the outcome, e.g. deckbuilder.builds.failed.
func Subject(base string, outcome report.Outcome) string {
	return base + "." + string(outcome)
}
