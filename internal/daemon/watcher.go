// Package daemon keeps a smoke run loop alive: it watches the documentation
// roots for changes, reruns on a schedule, and serves status over HTTP.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/logfields"
)

// SourceWatcher monitors the documentation roots and emits debounced triggers
// when example sources change.
type SourceWatcher struct {
	roots      []string
	extensions map[string]struct{}
	watcher    *fsnotify.Watcher
	debounce   time.Duration

	mu       sync.Mutex
	stopChan chan struct{}
	trigger  chan struct{}
}

// NewSourceWatcher creates a watcher over the configured source roots. The
// extension set decides which file events count; directory events always
// count because new subdirectories must be added to the watch.
func NewSourceWatcher(cfg config.SourcesConfig, debounce time.Duration) (*SourceWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	exts := make(map[string]struct{}, len(cfg.Extensions)+4)
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	if cfg.MarkdownSnippets {
		exts[".md"] = struct{}{}
		exts[".markdown"] = struct{}{}
	}
	if cfg.HTMLSnippets {
		exts[".html"] = struct{}{}
		exts[".htm"] = struct{}{}
	}

	return &SourceWatcher{
		roots:      cfg.Roots,
		extensions: exts,
		watcher:    watcher,
		debounce:   debounce,
		stopChan:   make(chan struct{}),
		trigger:    make(chan struct{}, 1),
	}, nil
}

// Triggers returns the channel that receives one value per debounced burst of
// source changes.
func (w *SourceWatcher) Triggers() <-chan struct{} {
	return w.trigger
}

// Start registers the roots (recursively) and begins watching.
func (w *SourceWatcher) Start(ctx context.Context) error {
	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			return err
		}
	}
	slog.Info("Watching source roots", slog.Int("roots", len(w.roots)))
	go w.watchLoop(ctx)
	return nil
}

// Stop closes the underlying watcher.
func (w *SourceWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	close(w.stopChan)
	return w.watcher.Close()
}

func (w *SourceWatcher) addRecursive(root string) error {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		slog.Warn("Source root not found, not watching", logfields.Path(root))
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return w.watcher.Add(root)
	}
	return filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}

func (w *SourceWatcher) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			slog.Debug("Source change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))

			// New directories join the watch so nested files keep triggering.
			if event.Op&fsnotify.Create == fsnotify.Create {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						slog.Warn("Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
					}
				}
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.fire)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Source watcher error", logfields.Error(err))
		}
	}
}

// relevant reports whether an event should schedule a rerun.
func (w *SourceWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	if ext == "" {
		// Probably a directory; creations matter for the recursive watch.
		return event.Op&fsnotify.Create == fsnotify.Create
	}
	_, ok := w.extensions[ext]
	return ok
}

func (w *SourceWatcher) fire() {
	select {
	case w.trigger <- struct{}{}:
	default:
		// A trigger is already pending.
	}
}
