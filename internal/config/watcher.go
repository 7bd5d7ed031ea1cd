package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"gridos/internal/logging"
)

// Watcher reloads the config file when it changes on disk and publishes a
// validated replacement snapshot. The kernel never sees a half-applied
// config: the host picks up snapshots from Updates between ticks.
type Watcher struct {
	path    string
	fs      *fsnotify.Watcher
	updates chan Config
	done    chan struct{}
}

// Watch starts watching path. The parent directory is watched rather than
// the file itself so editors that replace-on-save keep working.
func Watch(path string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &Watcher{
		path:    path,
		fs:      fs,
		updates: make(chan Config, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Updates delivers validated replacement snapshots. Buffered with capacity
// one; an unread older snapshot is replaced by the newest.
func (w *Watcher) Updates() <-chan Config { return w.updates }

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}

func (w *Watcher) loop() {
	log := logging.Get(logging.CategoryConfig)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				// Keep running on the previous config; a broken edit must
				// not take the grid down.
				log.Warnw("config reload rejected", "path", w.path, "error", err)
				continue
			}
			select {
			case w.updates <- cfg:
			default:
				// Replace the unread snapshot with the newest one.
				select {
				case <-w.updates:
				default:
				}
				w.updates <- cfg
			}
			log.Infow("config reloaded", "path", w.path)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Warnw("config watcher error", "error", err)
		}
	}
}
