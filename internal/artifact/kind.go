// Package artifact defines the closed set of artifact kinds deckbuilder produces and
// resolves the renderer configuration associated with each kind.
package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind is the closed set of rendered artifact types.
type Kind int

const (
	// SlideDeck is a reveal.js presentation.
	SlideDeck Kind = iota
	// ExerciseSheet is a standalone HTML document.
	ExerciseSheet
)

// Kinds returns every artifact kind in build order.
func Kinds() []Kind {
	return []Kind{SlideDeck, ExerciseSheet}
}

// String returns the canonical kind name, which is also its output subdirectory.
func (k Kind) String() string {
	switch k {
	case SlideDeck:
		return "slides"
	case ExerciseSheet:
		return "exercises"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Subdir is the directory under the output root that holds artifacts of this kind.
func (k Kind) Subdir() string {
	return k.String()
}

// ParseKind maps a kind name (as used in config and on the command line) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "slides", "slide", "slide_deck":
		return SlideDeck, nil
	case "exercises", "exercise", "exercise_sheet":
		return ExerciseSheet, nil
	default:
		return 0, fmt.Errorf("unknown artifact kind %q (valid: slides, exercises)", s)
	}
}

// OutputPath returns <root>/<subdir>/<lesson>.html.
func OutputPath(root string, k Kind, lesson string) string {
	return filepath.Join(root, k.Subdir(), lesson+".html")
}
