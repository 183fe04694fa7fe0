// Package watch notifies stores when their backing files change on disk,
// so hand edits are picked up without a restart.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileWatcher watches a set of files and invokes the callback registered
// for each one. Events are debounced: editors often emit several writes
// for one save.
type FileWatcher struct {
	watcher      *fsnotify.Watcher
	log          zerolog.Logger
	debounceTime time.Duration

	mu        sync.Mutex
	callbacks map[string]func() // keyed by absolute path
	pending   map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFileWatcher creates a watcher with a 500ms debounce.
func NewFileWatcher(log zerolog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FileWatcher{
		watcher:      watcher,
		log:          log,
		debounceTime: 500 * time.Millisecond,
		callbacks:    make(map[string]func()),
		pending:      make(map[string]bool),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Watch registers a callback for one file. The containing directory is
// watched rather than the file itself, so the registration survives the
// remove-and-recreate dance some editors do.
func (fw *FileWatcher) Watch(path string, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve watch path: %w", err)
	}

	fw.mu.Lock()
	fw.callbacks[abs] = onChange
	fw.mu.Unlock()

	if err := fw.watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return nil
}

// Start begins dispatching events until Stop is called.
func (fw *FileWatcher) Start() {
	fw.wg.Add(1)
	go fw.loop()
}

// Stop shuts the watcher down and waits for the dispatch loop to exit.
func (fw *FileWatcher) Stop() {
	fw.cancel()
	fw.watcher.Close()
	fw.wg.Wait()
}

func (fw *FileWatcher) loop() {
	defer fw.wg.Done()

	ticker := time.NewTicker(fw.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			fw.mu.Lock()
			if _, watched := fw.callbacks[abs]; watched {
				fw.pending[abs] = true
			}
			fw.mu.Unlock()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warn().Err(err).Msg("file watcher error")

		case <-ticker.C:
			fw.flushPending()
		}
	}
}

func (fw *FileWatcher) flushPending() {
	fw.mu.Lock()
	var fire []func()
	for path := range fw.pending {
		if cb := fw.callbacks[path]; cb != nil {
			fire = append(fire, cb)
		}
	}
	fw.pending = make(map[string]bool)
	fw.mu.Unlock()

	for _, cb := range fire {
		cb()
	}
}
