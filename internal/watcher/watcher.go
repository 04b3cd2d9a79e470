// Package watcher turns file edits into debounced preview change signals.
//
// FileWatcher is the editing collaborator of the CLI host: it reports writes
// to previewed files (and their templates) as edit events. Debouncer is the
// change notifier that coalesces those edits per session.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/livecanvas/internal/logging"
	"github.com/conneroisu/livecanvas/internal/types"
	"github.com/fsnotify/fsnotify"
)

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// EditEvent is an edit to a file bound to a preview session.
type EditEvent struct {
	Session types.SessionID
	Type    EventType
	Path    string
	Time    time.Time
}

// EditHandler handles edit events. It must not block.
type EditHandler func(event EditEvent)

// FileWatcher watches previewed files for edits.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   logging.Logger
	bindings map[string]types.SessionID // absolute file path -> session
	dirs     map[string]int             // watched directory -> bound files
	handlers []EditHandler
	mutex    sync.RWMutex
	stopOnce sync.Once
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(logger logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:  w,
		logger:   logger.WithComponent("watcher"),
		bindings: make(map[string]types.SessionID),
		dirs:     make(map[string]int),
	}, nil
}

// AddHandler adds an edit handler
func (fw *FileWatcher) AddHandler(handler EditHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// Bind reports edits of each path as edits of session id. The parent
// directory is watched rather than the file, since many editors save by
// writing a temporary file and renaming it over the original.
func (fw *FileWatcher) Bind(id types.SessionID, paths ...string) error {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		if _, ok := fw.bindings[abs]; ok {
			fw.bindings[abs] = id
			continue
		}

		dir := filepath.Dir(abs)
		if fw.dirs[dir] == 0 {
			if err := fw.watcher.Add(dir); err != nil {
				return fmt.Errorf("watching %s: %w", dir, err)
			}
		}
		fw.dirs[dir]++
		fw.bindings[abs] = id
	}

	return nil
}

// Unbind stops reporting edits for every path bound to id.
func (fw *FileWatcher) Unbind(id types.SessionID) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()

	for path, bound := range fw.bindings {
		if bound != id {
			continue
		}
		delete(fw.bindings, path)

		dir := filepath.Dir(path)
		fw.dirs[dir]--
		if fw.dirs[dir] <= 0 {
			delete(fw.dirs, dir)
			_ = fw.watcher.Remove(dir)
		}
	}
}

// Start starts the watch loop. It stops when ctx is done or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// Log error but continue watching
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventTypeCreated
	case event.Has(fsnotify.Write):
		eventType = EventTypeModified
	case event.Has(fsnotify.Remove):
		eventType = EventTypeDeleted
	case event.Has(fsnotify.Rename):
		eventType = EventTypeRenamed
	default:
		// Chmod only; content is unchanged.
		return
	}

	path := filepath.Clean(event.Name)

	fw.mutex.RLock()
	id, bound := fw.bindings[path]
	handlers := fw.handlers
	fw.mutex.RUnlock()

	if !bound {
		return
	}

	edit := EditEvent{
		Session: id,
		Type:    eventType,
		Path:    path,
		Time:    time.Now(),
	}
	for _, handler := range handlers {
		handler(edit)
	}
}
