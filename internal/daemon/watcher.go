package daemon

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
)

// SourceWatcher reports changes below a lesson source tree.
type SourceWatcher struct {
	root      string
	extension string
	sentinel  string
	exclude   []string
	watcher   *fsnotify.Watcher
	onChange  func(path string)
}

// NewSourceWatcher watches root recursively. onChange receives the path of
// every relevant event: fragment files, the sentinel file and directories.
// Paths below any exclude directory are ignored.
func NewSourceWatcher(root, extension, sentinel string, exclude []string, onChange func(path string)) (*SourceWatcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source root: %w", err)
	}

	excluded := make([]string, 0, len(exclude))
	for _, e := range exclude {
		if e == "" {
			continue
		}
		abs, absErr := filepath.Abs(e)
		if absErr != nil {
			continue
		}
		excluded = append(excluded, abs)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &SourceWatcher{
		root:      absRoot,
		extension: extension,
		sentinel:  sentinel,
		exclude:   excluded,
		watcher:   w,
		onChange:  onChange,
	}, nil
}

// Root returns the absolute path being watched.
func (sw *SourceWatcher) Root() string { return sw.root }

// Start adds the tree to the watcher and begins processing events.
func (sw *SourceWatcher) Start(ctx context.Context) error {
	if err := sw.addTree(sw.root); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Watching lesson sources", logfields.Path(sw.root))
	go sw.watchLoop(ctx)
	return nil
}

// Close releases the underlying watcher.
func (sw *SourceWatcher) Close() error {
	return sw.watcher.Close()
}

func (sw *SourceWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if sw.excluded(path) {
			return filepath.SkipDir
		}
		if addErr := sw.watcher.Add(path); addErr != nil {
			return fmt.Errorf("failed to watch directory %s: %w", path, addErr)
		}
		return nil
	})
}

func (sw *SourceWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handle(ctx, event)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			slog.ErrorContext(ctx, "Source watcher error", logfields.Error(err))
		}
	}
}

func (sw *SourceWatcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || sw.excluded(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) && isDir(event.Name) {
		if err := sw.addTree(event.Name); err != nil {
			slog.WarnContext(ctx, "Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
		}
		sw.onChange(event.Name)
		return
	}

	if !sw.relevant(event) {
		return
	}
	slog.DebugContext(ctx, "Source change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
	sw.onChange(event.Name)
}

// relevant reports whether event can change a build. Removes and renames are
// always relevant because the removed entry may have been a lesson directory.
func (sw *SourceWatcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return true
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	if sw.sentinel != "" && base == sw.sentinel {
		return true
	}
	return sw.extension != "" && filepath.Ext(base) == sw.extension
}

func (sw *SourceWatcher) excluded(path string) bool {
	for _, e := range sw.exclude {
		if path == e || strings.HasPrefix(path, e+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
