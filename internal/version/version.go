package version

import (
	"fmt"
	"runtime/debug"
)

// Version is set at link time:
// go build -ldflags "-X git.home.luguber.info/inful/deckbuilder/internal/version.Version=v1.0.0".
var Version = "unknown"

// Build metadata, also set via ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Resolved returns Version, falling back to the module version recorded by
// `go install` when no ldflags were given.
func Resolved() string {
	if Version != "unknown" && Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// String formats the version line printed by --version.
func String() string {
	return fmt.Sprintf("deckbuilder %s (commit %s, built %s)", Resolved(), GitCommit, BuildTime)
}
