package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
)

// run executes the command line in dir and returns what the command printed.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(dir)

	var out bytes.Buffer
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("deckbuilder"),
		kong.Vars{"version": "test"},
		kong.Bind(&Global{Out: &out}, cli),
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
	)
	require.NoError(t, err)

	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	err = ctx.Run()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// tutorial lays out two lessons and a configuration naming them plus extra.
func tutorial(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "tutorial", "intro", "02-body.md"), "# body\n")
	writeFile(t, filepath.Join(dir, "src", "tutorial", "intro", "01-title.md"), "# title\n")
	writeFile(t, filepath.Join(dir, "src", "tutorial", "intro", "mod.md"), "ignored\n")
	writeFile(t, filepath.Join(dir, "src", "tutorial", "ex1", "01.md"), "# exercise\n")
	writeFile(t, filepath.Join(dir, "deckbuilder.yaml"), `version: "1.0"
lessons:
  slides: [intro]
  exercises: [ex1]
`+extra)
	return dir
}

func TestInit_WritesConfig(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "init", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "deckbuilder.yaml"))
	assert.FileExists(t, filepath.Join(dir, "deckbuilder.yaml"))

	_, err = run(t, dir, "init", "-o", dir)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	_, err = run(t, dir, "init", "-o", dir, "--force")
	require.NoError(t, err)
}

func TestPlan_PrintsCommandsInBuildOrder(t *testing.T) {
	dir := tutorial(t, "extract:\n  command: [tango, --all]\n")

	out, err := run(t, dir, "plan")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "tango --all", lines[0])
	assert.Contains(t, lines[1], "-t revealjs")
	assert.Contains(t, lines[1], "-o target/slides/intro.html -s")
	assert.True(t, strings.HasSuffix(lines[1], "src/tutorial/intro/01-title.md src/tutorial/intro/02-body.md"), lines[1])
	assert.NotContains(t, lines[1], "mod.md")
	assert.Contains(t, lines[2], "-o target/exercises/ex1.html -s")

	assert.NoDirExists(t, filepath.Join(dir, "target"))
}

func TestDiscover_ListsOrderedFragments(t *testing.T) {
	dir := tutorial(t, "")

	out, err := run(t, dir, "discover")
	require.NoError(t, err)
	assert.Contains(t, out, "slides/intro (src/tutorial/intro)\n  src/tutorial/intro/01-title.md\n  src/tutorial/intro/02-body.md\n")
	assert.Contains(t, out, "exercises/ex1 (src/tutorial/ex1)\n  src/tutorial/ex1/01.md\n")
}

func TestDiscover_MissingLessonNamesPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "deckbuilder.yaml"), `version: "1.0"
lessons:
  slides: [ghost]
`)

	out, err := run(t, dir, "discover")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryDiscovery))
	assert.Contains(t, out, "slides/ghost")
	assert.Contains(t, out, "error:")
	assert.Contains(t, err.Error(), filepath.Join("src", "tutorial", "ghost"))
}

func TestBuild_InvalidFailurePolicyOverride(t *testing.T) {
	dir := tutorial(t, "")

	_, err := run(t, dir, "build", "--failure-policy", "sometimes")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestHistory_DisabledIsConfigError(t *testing.T) {
	dir := tutorial(t, "")

	_, err := run(t, dir, "history")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

const fakeRenderer = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; shift; fi
  shift
done
printf '<html><head><title>Rendered</title></head><body></body></html>\n' > "$out"
`

func TestBuild_RendersAndRecordsHistory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell renderer requires a unix shell")
	}
	dir := t.TempDir()
	renderer := filepath.Join(dir, "bin", "fake-pandoc")
	writeFile(t, renderer, fakeRenderer)
	require.NoError(t, os.Chmod(renderer, 0o755))

	dir = tutorial(t, "renderer:\n  executable: "+renderer+"\nhistory:\n  path: state/history.db\nmetrics:\n  textfile: state/deckbuilder.prom\nbuild:\n  index: true\n")

	out, err := run(t, dir, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "outcome=success")
	assert.Contains(t, out, "succeeded=2")

	assert.FileExists(t, filepath.Join(dir, "target", "slides", "intro.html"))
	assert.FileExists(t, filepath.Join(dir, "target", "exercises", "ex1.html"))
	assert.FileExists(t, filepath.Join(dir, "target", "index.html"))
	assert.FileExists(t, filepath.Join(dir, "target", "build-report.json"))

	prom, err := os.ReadFile(filepath.Join(dir, "state", "deckbuilder.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "deckbuilder_build_outcomes_total")

	out, err = run(t, dir, "history", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "OUTCOME")
	assert.Contains(t, out, "cli")
	assert.Contains(t, out, "success")
}

func TestBuild_RendererFailureExitsWithBuildCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell renderer requires a unix shell")
	}
	dir := t.TempDir()
	renderer := filepath.Join(dir, "bin", "broken-pandoc")
	writeFile(t, renderer, "#!/bin/sh\necho 'pandoc: unknown theme' >&2\nexit 1\n")
	require.NoError(t, os.Chmod(renderer, 0o755))

	dir = tutorial(t, "renderer:\n  executable: "+renderer+"\n")

	out, err := run(t, dir, "build")
	require.Error(t, err)
	assert.Contains(t, out, "outcome=failed")

	adapter := ferrors.NewCLIErrorAdapter(false, nil)
	assert.Equal(t, ferrors.ExitBuild, adapter.ExitCodeFor(err))
	assert.Contains(t, adapter.FormatError(err), "pandoc: unknown theme")
	assert.Contains(t, adapter.FormatError(err), filepath.Join("target", "slides", "intro.html"))
}
