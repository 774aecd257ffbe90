// Package gitinfo reads the revision of the repository holding the lesson sources.
package gitinfo

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

// ErrNotRepository is returned when no enclosing git repository exists.
var ErrNotRepository = errors.New("not a git repository")

// Revision identifies the source tree a build rendered from.
type Revision struct {
	Commit string
	Branch string
	// Dirty is set when the worktree has uncommitted changes.
	Dirty bool
}

// String returns the short commit, suffixed with "-dirty" when applicable.
func (r Revision) String() string {
	if r.Commit == "" {
		return ""
	}
	short := r.Commit
	if len(short) > 12 {
		short = short[:12]
	}
	if r.Dirty {
		return short + "-dirty"
	}
	return short
}

// Head resolves HEAD of the repository enclosing dir, walking up parent
// directories the way the git CLI does.
func Head(dir string) (Revision, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Revision{}, fmt.Errorf("%w: %s", ErrNotRepository, dir)
	}
	if err != nil {
		return Revision{}, fmt.Errorf("open repository: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return Revision{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	rev := Revision{Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		rev.Branch = ref.Name().Short()
	}

	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			rev.Dirty = !status.IsClean()
		}
	}
	return rev, nil
}
