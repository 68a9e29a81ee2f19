// Package watch re-runs a conversion whenever source files change.
package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes one input directory.
type Watcher struct {
	dir      string
	exts     map[string]bool
	debounce time.Duration
	log      *slog.Logger
}

// NewWatcher creates a Watcher for files in dir with one of exts.
func NewWatcher(dir string, exts []string, debounce time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	accept := make(map[string]bool, len(exts))
	for _, ext := range exts {
		accept[strings.ToLower(ext)] = true
	}
	return &Watcher{dir: dir, exts: accept, debounce: debounce, log: logger}
}

// relevant reports whether ev touches a source file.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !w.exts[strings.ToLower(filepath.Ext(ev.Name))] {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}

// Run calls onChange once per burst of changes until ctx is done.
// Errors from onChange are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.log.Info("watching", "dir", w.dir, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("change detected", "file", filepath.Base(ev.Name), "op", ev.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", "err", err)

		case <-timer.C:
			if err := onChange(ctx); err != nil {
				w.log.Error("conversion failed", "err", err)
			}
		}
	}
}
