package diagnostics

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spiffcs/inbox/internal/constants"
	"github.com/spiffcs/inbox/internal/log"
)

// FileCollection is a Collection loaded from a JSON file of the form
// [{"url": ..., "diagnostics": [...]}]. Once watched, edits to the file
// replace the snapshot and notify subscribers.
type FileCollection struct {
	mem      *MemoryCollection
	path     string
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

var _ Collection = (*FileCollection)(nil)

// OpenFile loads path. A missing file is an empty collection.
func OpenFile(path string) (*FileCollection, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	entries, err := readEntries(abs)
	if err != nil {
		return nil, err
	}
	return &FileCollection{
		mem:      NewMemoryCollection(entries...),
		path:     abs,
		debounce: constants.DiagnosticsDebounce,
	}, nil
}

// Path returns the absolute path of the backing file.
func (c *FileCollection) Path() string {
	return c.path
}

// Entries implements Collection.
func (c *FileCollection) Entries() []Entry {
	return c.mem.Entries()
}

// Subscribe implements Collection.
func (c *FileCollection) Subscribe() (<-chan struct{}, func()) {
	return c.mem.Subscribe()
}

// Watch starts reloading the file when it changes. The parent directory
// is watched so editors that replace the file by rename are seen.
func (c *FileCollection) Watch() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(c.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", c.path, err)
	}

	c.watcher = w
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.run(w, c.stopCh, c.doneCh)
	log.Debug("watching diagnostics file", "path", c.path)
	return nil
}

// Close stops watching. It is safe to call more than once.
func (c *FileCollection) Close() error {
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()
	if w == nil {
		return nil
	}

	close(c.stopCh)
	<-c.doneCh
	return w.Close()
}

func (c *FileCollection) run(w *fsnotify.Watcher, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-stop:
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != c.path {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			log.Trace("diagnostics file event", "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(c.debounce)
			} else {
				timer.Reset(c.debounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn("diagnostics watcher error", "error", err)

		case <-fire:
			fire = nil
			c.reload()
		}
	}
}

func (c *FileCollection) reload() {
	entries, err := readEntries(c.path)
	if err != nil {
		// Keep the last good snapshot; a half-written file is common.
		log.Warn("failed to reload diagnostics", "path", c.path, "error", err)
		return
	}
	log.Debug("reloaded diagnostics", "path", c.path, "entries", len(entries))
	c.mem.Replace(entries)
}

func readEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read diagnostics: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse diagnostics %s: %w", path, err)
	}
	return entries, nil
}
