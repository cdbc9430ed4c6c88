package watch

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the window between the first observed change and the
// batch delivery when the caller does not configure one.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Debounce is the batching window measured from the first event after an
	// idle period. Zero or negative means DefaultDebounce.
	Debounce time.Duration
	Logger   *zap.Logger
}

// Watcher owns one fsnotify instance and republishes its notifications as
// debounced batches. Watches are per directory and non-recursive; the
// consumer arms every directory it enumerates and re-arms directories it
// discovers through created events.
type Watcher struct {
	rootPath  string
	notifier  *fsnotify.Watcher
	batches   chan Batch
	debounce  time.Duration
	logger    *zap.Logger
	done      chan struct{}
	closeOnce sync.Once

	mutex sync.Mutex
	armed map[string]struct{}
}

// NewWatcher starts a watcher with the workspace root armed.
func NewWatcher(rootPath string, options Options) (*Watcher, error) {
	notifier, notifierError := fsnotify.NewWatcher()
	if notifierError != nil {
		return nil, fmt.Errorf("starting filesystem notifier: %w", notifierError)
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := options.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher := &Watcher{
		rootPath: filepath.ToSlash(filepath.Clean(rootPath)),
		notifier: notifier,
		batches:  make(chan Batch, 1),
		debounce: debounce,
		logger:   logger,
		done:     make(chan struct{}),
		armed:    make(map[string]struct{}),
	}
	if armError := watcher.Arm(watcher.rootPath); armError != nil {
		_ = notifier.Close()
		return nil, fmt.Errorf("watching %s: %w", watcher.rootPath, armError)
	}
	go watcher.run()
	return watcher, nil
}

// RootPath returns the normalized directory the watcher was rooted at.
func (watcher *Watcher) RootPath() string {
	return watcher.rootPath
}

// Batches returns the delivery channel. It is closed when the watcher stops.
func (watcher *Watcher) Batches() <-chan Batch {
	return watcher.batches
}

// Arm registers a watch on one directory. Arming an already armed directory
// is a no-op.
func (watcher *Watcher) Arm(directoryPath string) error {
	normalized := filepath.ToSlash(filepath.Clean(directoryPath))
	watcher.mutex.Lock()
	if _, alreadyArmed := watcher.armed[normalized]; alreadyArmed {
		watcher.mutex.Unlock()
		return nil
	}
	watcher.armed[normalized] = struct{}{}
	watcher.mutex.Unlock()

	if addError := watcher.notifier.Add(normalized); addError != nil {
		watcher.mutex.Lock()
		delete(watcher.armed, normalized)
		watcher.mutex.Unlock()
		return addError
	}
	return nil
}

// Disarm drops the watch on one directory. The kernel already forgets watches
// on deleted paths, so removal errors carry no information and are discarded.
func (watcher *Watcher) Disarm(directoryPath string) {
	normalized := filepath.ToSlash(filepath.Clean(directoryPath))
	watcher.mutex.Lock()
	delete(watcher.armed, normalized)
	watcher.mutex.Unlock()
	_ = watcher.notifier.Remove(normalized)
}

// Close stops event processing and releases the underlying notifier. It is
// safe to call more than once.
func (watcher *Watcher) Close() error {
	var closeError error
	watcher.closeOnce.Do(func() {
		close(watcher.done)
		closeError = watcher.notifier.Close()
	})
	return closeError
}

func (watcher *Watcher) run() {
	defer close(watcher.batches)

	pending := make(map[string]EventKind)
	overflow := false
	var window *time.Timer
	var windowExpired <-chan time.Time
	openWindow := func() {
		if windowExpired == nil {
			window = time.NewTimer(watcher.debounce)
			windowExpired = window.C
		}
	}
	defer func() {
		if window != nil {
			window.Stop()
		}
	}()

	for {
		select {
		case notification, open := <-watcher.notifier.Events:
			if !open {
				return
			}
			kind, relevant := classifyOp(notification.Op)
			if !relevant {
				continue
			}
			path := filepath.ToSlash(notification.Name)
			if previous, present := pending[path]; present {
				merged, keep := mergeEventKinds(previous, kind)
				if keep {
					pending[path] = merged
				} else {
					delete(pending, path)
				}
			} else {
				pending[path] = kind
			}
			openWindow()
		case notificationError, open := <-watcher.notifier.Errors:
			if !open {
				return
			}
			if errors.Is(notificationError, fsnotify.ErrEventOverflow) {
				overflow = true
				openWindow()
				continue
			}
			watcher.logger.Warn("filesystem notification error", zap.Error(notificationError))
		case <-windowExpired:
			windowExpired = nil
			window = nil
			batch, deliverable := buildBatch(watcher.rootPath, pending, overflow)
			pending = make(map[string]EventKind)
			overflow = false
			if !deliverable {
				continue
			}
			select {
			case watcher.batches <- batch:
			case <-watcher.done:
				return
			}
		case <-watcher.done:
			return
		}
	}
}
