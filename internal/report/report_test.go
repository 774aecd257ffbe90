package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinish_DerivesOutcome(t *testing.T) {
	r := New("b1", "cli")
	r.AddLesson(LessonResult{Kind: "slides", Lesson: "intro", State: LessonSucceeded})
	r.Finish(false)
	assert.Equal(t, OutcomeSuccess, r.Outcome)

	r.AddLesson(LessonResult{Kind: "exercises", Lesson: "ex1", State: LessonFailedRender, ExitCode: 1})
	r.Finish(false)
	assert.Equal(t, OutcomeFailed, r.Outcome)
	assert.Equal(t, 1, r.SucceededCount())
	assert.Equal(t, 1, r.FailedCount())

	r.Finish(true)
	assert.Equal(t, OutcomeCanceled, r.Outcome)
}

func TestFinish_BuildLevelError(t *testing.T) {
	r := New("b2", "cli")
	r.AddError(errors.New("extract failed"))
	r.AddError(nil)
	r.Finish(false)
	assert.Equal(t, OutcomeFailed, r.Outcome)
	assert.Len(t, r.Errors, 1)
}

func TestPersist(t *testing.T) {
	root := filepath.Join(t.TempDir(), "target")
	r := New("b3", "watch")
	r.Revision = "abc123"
	r.AddLesson(LessonResult{Kind: "slides", Lesson: "intro", Output: "target/slides/intro.html",
		Fragments: []string{"a.md", "b.md"}, State: LessonSucceeded})
	r.AddError(errors.New("boom"))

	require.NoError(t, r.Persist(root))

	data, err := os.ReadFile(filepath.Join(root, JSONFile))
	require.NoError(t, err)
	var got Serializable
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, SchemaVersion, got.SchemaVersion)
	assert.Equal(t, "b3", got.BuildID)
	assert.Equal(t, OutcomeFailed, got.Outcome)
	assert.Equal(t, []string{"boom"}, got.Errors)
	require.Len(t, got.Lessons, 1)
	assert.Equal(t, []string{"a.md", "b.md"}, got.Lessons[0].Fragments)

	txt, err := os.ReadFile(filepath.Join(root, TextFile))
	require.NoError(t, err)
	assert.Contains(t, string(txt), "outcome=failed")

	_, err = os.Stat(filepath.Join(root, JSONFile+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestSerializable_NonNilCollections(t *testing.T) {
	r := &Report{BuildID: "b4"}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"lessons":[]`)
	assert.Contains(t, string(data), `"stage_durations":{}`)
}

func TestPersist_ReportsAreWorldReadable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	root := t.TempDir()
	r := New("b4", "cli")
	r.Finish(false)
	require.NoError(t, r.Persist(root))

	for _, name := range []string{JSONFile, TextFile} {
		info, err := os.Stat(filepath.Join(root, name))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm(), name)
	}
}
