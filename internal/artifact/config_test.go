package artifact

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_SlideDeckDefaults(t *testing.T) {
	cfg := Resolve(SlideDeck, DefaultSettings(SlideDeck))
	assert.Equal(t, []string{
		"-t", "revealjs",
		"-V", "theme=simple",
		"--highlight-style=kate",
		"--css", "../../slide-style.css",
		"--css", "../../code-style.css",
		"-o", "target/slides/intro.html",
		"-s",
	}, cfg.Args("target/slides/intro.html"))
}

func TestResolve_ExerciseSheetDefaults(t *testing.T) {
	cfg := Resolve(ExerciseSheet, DefaultSettings(ExerciseSheet))
	assert.Equal(t, []string{
		"--css", "../../code-style.css",
		"-o", "target/exercises/ex_part_1.html",
		"-s",
	}, cfg.Args("target/exercises/ex_part_1.html"))
}

func TestResolve_OnlyOutputPathVaries(t *testing.T) {
	for _, k := range Kinds() {
		first := Resolve(k, DefaultSettings(k))
		second := Resolve(k, DefaultSettings(k))
		a := first.Args("out/a.html")
		b := second.Args("out/b.html")
		require.Len(t, b, len(a))
		for i := range a {
			if a[i] == "out/a.html" {
				assert.Equal(t, "out/b.html", b[i])
				continue
			}
			assert.Equal(t, a[i], b[i], "flag %d of %s", i, k)
		}
	}
}

func TestArgs_DoesNotMutateConfig(t *testing.T) {
	cfg := Resolve(SlideDeck, DefaultSettings(SlideDeck))
	before := cfg.Flags()
	_ = cfg.Args("x.html")
	args := cfg.Args("y.html")
	args[0] = "mutated"
	assert.Equal(t, before, cfg.Flags())
}

func TestSettingsApply(t *testing.T) {
	theme := "black"
	empty := ""
	got := DefaultSettings(SlideDeck).Apply(Overrides{Theme: &theme, HighlightStyle: &empty})
	assert.Equal(t, "revealjs", got.Format)
	assert.Equal(t, "black", got.Theme)
	assert.Empty(t, got.HighlightStyle)
	assert.Equal(t, []string{"../../slide-style.css", "../../code-style.css"}, got.Stylesheets)

	style := "pygments"
	ex := DefaultSettings(ExerciseSheet).Apply(Overrides{HighlightStyle: &style, Stylesheets: []string{"a.css"}})
	assert.Equal(t, []string{"--highlight-style=pygments", "--css", "a.css"}, Resolve(ExerciseSheet, ex).Flags())
}

func TestDefaultSettingsReturnsCopy(t *testing.T) {
	s := DefaultSettings(SlideDeck)
	s.Stylesheets[0] = "changed.css"
	assert.Equal(t, "../../slide-style.css", DefaultSettings(SlideDeck).Stylesheets[0])
}

func TestKindNamesAndParse(t *testing.T) {
	assert.Equal(t, "slides", SlideDeck.Subdir())
	assert.Equal(t, "exercises", ExerciseSheet.Subdir())

	k, err := ParseKind("Slides")
	require.NoError(t, err)
	assert.Equal(t, SlideDeck, k)
	k, err = ParseKind("exercise")
	require.NoError(t, err)
	assert.Equal(t, ExerciseSheet, k)
	_, err = ParseKind("handout")
	assert.Error(t, err)

	assert.Equal(t, filepath.Join("target", "slides", "intro.html"), OutputPath("target", SlideDeck, "intro"))
}
