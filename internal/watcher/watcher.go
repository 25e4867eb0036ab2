// Package watcher reports module directories appearing, changing or
// disappearing under a modules root, using fsnotify
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmruntime/dmruntime/pkg/logger"
)

// DefaultSettlingDelay is the quiet period before a module event is reported
const DefaultSettlingDelay = 250 * time.Millisecond

// EventType identifies what happened to a module directory
type EventType int

const (
	// ModuleChanged means the directory exists and was created or modified
	ModuleChanged EventType = iota
	// ModuleRemoved means the directory no longer exists
	ModuleRemoved
)

func (t EventType) String() string {
	switch t {
	case ModuleChanged:
		return "changed"
	case ModuleRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ModuleEvent is one settled change of a module directory
type ModuleEvent struct {
	Type EventType
	Dir  string
}

// Watcher watches the modules root and each module directory directly below it
type Watcher struct {
	watcher  *fsnotify.Watcher
	root     string
	logger   logger.Logger
	settling time.Duration
	callback func(ModuleEvent)
	pending  map[string]time.Time
	started  bool
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a watcher for the modules directory root
func New(root string, log logger.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve modules directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		watcher:  fsw,
		root:     abs,
		logger:   log,
		settling: DefaultSettlingDelay,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// SetSettlingDelay sets the delay for event settling
func (w *Watcher) SetSettlingDelay(delay time.Duration) {
	w.mu.Lock()
	w.settling = delay
	w.mu.Unlock()
}

// Root returns the watched modules directory
func (w *Watcher) Root() string {
	return w.root
}

// Start begins watching and reports settled events to callback.
// Callbacks run on timer goroutines and may overlap for different modules.
func (w *Watcher) Start(callback func(ModuleEvent)) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.started = true
	w.callback = callback
	w.mu.Unlock()

	if err := w.watcher.Add(w.root); err != nil {
		close(w.done)
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		close(w.done)
		return fmt.Errorf("failed to read modules directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() && !isHidden(entry.Name()) {
			w.addModuleDir(filepath.Join(w.root, entry.Name()))
		}
	}

	go w.processEvents()

	w.logger.Info(fmt.Sprintf("Started watching %s", w.root))
	return nil
}

// Close stops the watcher. Events still settling are dropped.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()

	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if started {
		<-w.done
	}
	return err
}

// List returns all watched paths
func (w *Watcher) List() []string {
	return w.watcher.WatchList()
}

func (w *Watcher) addModuleDir(dir string) {
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn(fmt.Sprintf("Failed to watch module directory %s: %v", dir, err))
		return
	}
	w.logger.Debug(fmt.Sprintf("Watching module directory: %s", dir))
}

func (w *Watcher) processEvents() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			dir, ok := w.moduleDir(event.Name)
			if !ok {
				continue
			}

			if event.Name == dir && event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(dir); err == nil && info.IsDir() {
					w.addModuleDir(dir)
				}
			}

			w.handleEventWithSettling(dir)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error(fmt.Sprintf("Watcher error: %v", err))
		}
	}
}

// moduleDir maps a path below the root to the module directory containing it
func (w *Watcher) moduleDir(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	if isHidden(first) {
		return "", false
	}
	return filepath.Join(w.root, first), true
}

func (w *Watcher) handleEventWithSettling(dir string) {
	w.mu.Lock()
	w.pending[dir] = time.Now()
	settlingDelay := w.settling
	w.mu.Unlock()

	time.AfterFunc(settlingDelay, func() {
		if w.ctx.Err() != nil {
			return
		}

		w.mu.Lock()
		lastEventTime, exists := w.pending[dir]
		if !exists || time.Since(lastEventTime) < settlingDelay {
			// a newer event reschedules the report
			w.mu.Unlock()
			return
		}
		delete(w.pending, dir)
		callback := w.callback
		w.mu.Unlock()

		event := ModuleEvent{Type: ModuleRemoved, Dir: dir}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			event.Type = ModuleChanged
		}

		w.logger.Debug(fmt.Sprintf("Module directory %s: %s", event.Type, dir))
		if callback != nil {
			callback(event)
		}
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
