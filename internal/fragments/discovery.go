// Package fragments discovers the Markdown fragments that make up a lesson and orders
// them into the sequence handed to the renderer.
package fragments

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/fragments/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
)

// Layout selects how a lesson's sources are laid out on disk.
type Layout string

const (
	// LayoutDirectory reads every fragment in <root>/<lesson>/ except the sentinel.
	LayoutDirectory Layout = "directory"
	// LayoutSingleFile reads exactly <root>/<lesson><ext>; no scan, no sentinel, no sort.
	LayoutSingleFile Layout = "single_file"
)

const (
	// DefaultExtension is the fragment file extension.
	DefaultExtension = ".md"
	// DefaultSentinel documents a lesson module but is never an orderable fragment.
	DefaultSentinel = "mod.md"
)

// Set is an unordered collection of fragment paths discovered for one lesson.
type Set []string

// Sequence is a Set in renderer order.
type Sequence []string

// Options configures discovery.
type Options struct {
	Layout    Layout
	Extension string
	Sentinel  string
	// BaseDir resolves relative source roots for reading. Returned paths keep the
	// configured (possibly relative) form so they stay valid for a renderer started in BaseDir.
	BaseDir string
}

// Discoverer lists lesson fragments.
type Discoverer struct {
	opts Options
}

// NewDiscoverer creates a Discoverer, filling unset options with defaults.
func NewDiscoverer(opts Options) *Discoverer {
	if opts.Layout == "" {
		opts.Layout = LayoutDirectory
	}
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	if opts.Sentinel == "" {
		opts.Sentinel = DefaultSentinel
	}
	return &Discoverer{opts: opts}
}

// Options returns the effective options.
func (d *Discoverer) Options() Options {
	return d.opts
}

// SourcePath returns the directory (or file, in single-file layout) holding a lesson's sources.
func (d *Discoverer) SourcePath(sourceRoot, lesson string) string {
	if d.opts.Layout == LayoutSingleFile {
		return filepath.Join(sourceRoot, lesson+d.opts.Extension)
	}
	return filepath.Join(sourceRoot, lesson)
}

// Discover returns the fragments of one lesson. It reads the filesystem on every call;
// results are never cached so fragments produced by the extraction step are observed.
func (d *Discoverer) Discover(sourceRoot, lesson string) (Set, error) {
	switch d.opts.Layout {
	case LayoutDirectory:
		return d.discoverDirectory(d.SourcePath(sourceRoot, lesson))
	case LayoutSingleFile:
		return d.discoverSingleFile(d.SourcePath(sourceRoot, lesson))
	default:
		return nil, fmt.Errorf("%w: %q", ferrors.ErrUnknownLayout, d.opts.Layout)
	}
}

func (d *Discoverer) discoverDirectory(dir string) (Set, error) {
	entries, err := os.ReadDir(d.resolve(dir))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ferrors.ErrSourceUnreadable, dir, err)
	}

	set := make(Set, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if name == d.opts.Sentinel {
			slog.Debug("Skipping sentinel fragment", logfields.Path(filepath.Join(dir, name)))
			continue
		}
		if filepath.Ext(name) != d.opts.Extension {
			continue
		}
		set = append(set, filepath.Join(dir, name))
	}
	slog.Debug("Discovered fragments", logfields.Path(dir), logfields.Fragments(len(set)))
	return set, nil
}

func (d *Discoverer) discoverSingleFile(path string) (Set, error) {
	info, err := os.Stat(d.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ferrors.ErrSourceUnreadable, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s: is a directory", ferrors.ErrSourceUnreadable, path)
	}
	return Set{path}, nil
}

func (d *Discoverer) resolve(p string) string {
	if d.opts.BaseDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.opts.BaseDir, p)
}

// Order sorts a Set by full path string. The result is a new slice and depends only
// on the path strings, so identical directory contents always yield the same sequence.
func Order(set Set) Sequence {
	seq := make(Sequence, len(set))
	copy(seq, set)
	slices.Sort(seq)
	return seq
}
