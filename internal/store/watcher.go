package store

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventKind describes a change to the set of sessions.
type EventKind string

const (
	// SessionCreated is emitted when a session file appears.
	SessionCreated EventKind = "created"
	// SessionRemoved is emitted when a session file disappears.
	SessionRemoved EventKind = "removed"
)

// Event is a change to one session.
type Event struct {
	Kind EventKind
	ID   string
}

// Watcher reports sessions appearing in and disappearing from the data directory.
// Appends to an existing session are not reported.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
}

// NewWatcher creates a watcher for the store's data directory.
func (s *Store) NewWatcher() (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &Watcher{
		dir:     s.dataDir,
		watcher: fsWatcher,
		events:  make(chan Event, 64),
		errors:  make(chan error, 8),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Events returns the channel of session events. It is closed after Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns watcher errors. Errors are dropped when nobody reads them.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.running = true
	go w.processEvents()
	return nil
}

// Stop stops watching and closes the event channel.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.doneCh
	return err
}

func (w *Watcher) processEvents() {
	defer close(w.doneCh)
	defer close(w.events)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	id := filepath.Base(ev.Name)
	if ValidateID(id) != nil {
		return
	}

	var kind EventKind
	switch {
	case ev.Has(fsnotify.Create):
		kind = SessionCreated
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		kind = SessionRemoved
	default:
		return
	}

	select {
	case w.events <- Event{Kind: kind, ID: id}:
	case <-w.stopCh:
	}
}
