package metadata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the watcher waits for file activity to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports changes to metadata and compose files under a stacks root.
type Watcher struct {
	root     string
	opts     Options
	debounce time.Duration
	logger   zerolog.Logger
}

// NewWatcher creates a watcher for root.
func NewWatcher(root string, opts Options, logger zerolog.Logger) *Watcher {
	return &Watcher{
		root:     root,
		opts:     opts.withDefaults(),
		debounce: DefaultDebounce,
		logger:   logger.With().Str("component", "metadata-watcher").Logger(),
	}
}

// SetDebounce overrides the debounce delay.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Watch blocks until ctx is done, calling onChange once file activity has
// settled. onChange runs on the watching goroutine, so calls never overlap.
func (w *Watcher) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := w.watchTree(watcher); err != nil {
		return err
	}

	w.logger.Info().Str("root", w.root).Msg("Started watching stacks")

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// new stack directories need their own watch
			if event.Op&fsnotify.Create != 0 && w.isStackDir(event.Name) {
				if err := watcher.Add(event.Name); err != nil {
					w.logger.Warn().Err(err).Str("path", event.Name).Msg("Failed to watch directory")
				}
			}

			if !w.relevant(event) {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Stack file changed")

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// watchTree adds the root and every stack directory to the watcher.
func (w *Watcher) watchTree(watcher *fsnotify.Watcher) error {
	if err := watcher.Add(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	dirs, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("failed to read stacks directory: %w", err)
	}
	for _, d := range dirs {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		path := filepath.Join(w.root, d.Name())
		if err := watcher.Add(path); err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch directory")
		}
	}
	return nil
}

func (w *Watcher) isStackDir(path string) bool {
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(w.root) {
		return false
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// relevant reports whether event touches a metadata or compose file, or
// adds or removes a stack directory.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	name := filepath.Base(event.Name)
	if name == w.opts.FileName || slices.Contains(w.opts.ComposeFiles, name) {
		return true
	}

	// stack directories directly under root
	if filepath.Dir(filepath.Clean(event.Name)) == filepath.Clean(w.root) && !strings.HasPrefix(name, ".") {
		return event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
	}
	return false
}
