// Package render builds and executes renderer subprocess invocations and turns their
// failures into diagnosable errors.
package render

import (
	"fmt"
	"os"
)

// Env is the process context a subprocess runs in. It is captured once by the caller
// and passed explicitly so failure reports are deterministic.
type Env struct {
	// WorkDir is the subprocess working directory; relative inputs resolve against it.
	WorkDir string
	// SearchPath is the PATH value used to locate executables.
	SearchPath string
}

// CaptureEnv snapshots the current working directory and PATH.
func CaptureEnv() (Env, error) {
	wd, err := os.Getwd()
	if err != nil {
		return Env{}, fmt.Errorf("determine working directory: %w", err)
	}
	return Env{WorkDir: wd, SearchPath: os.Getenv("PATH")}, nil
}
