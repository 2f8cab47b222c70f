package patterns

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads a registry when files in the pattern directory change.
type Watcher struct {
	watcher  *fsnotify.Watcher
	registry *Registry
	dir      string
}

// NewWatcher creates a file watcher over the pattern directory.
func NewWatcher(registry *Registry, dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %q: %w", dir, err)
	}
	return &Watcher{watcher: fw, registry: registry, dir: dir}, nil
}

// Run watches for changes and reloads the registry. Blocks until ctx is
// cancelled. Reloads are debounced so editors that write in several steps
// trigger a single reload.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					if err := w.registry.Reload(w.dir); err != nil {
						log.Printf("[WARN] pattern hot-reload failed, keeping previous set: %v", err)
					} else {
						log.Printf("[INFO] pattern set reloaded (version=%s, patterns=%d)",
							w.registry.Version(), w.registry.TotalPatterns())
					}
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[WARN] pattern watcher error: %v", err)
		}
	}
}
