package session

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mdpick/mdpick/internal/tree"
)

// debounceDelay coalesces bursts of events for the same path.
const debounceDelay = 200 * time.Millisecond

// watcher is the best-effort change detector for a session. The tree
// is assumed read-only for the session's duration; detected mutations
// only surface as change notifications, they never mutate the tree
// directly.
type watcher struct {
	fs      *fsnotify.Watcher
	changes chan string
	done    chan struct{}
	logger  *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// Watch starts filesystem change detection under the session root.
// Changed paths are delivered on the returned channel; the caller is
// expected to call HandleChange for each on its control thread.
func (s *Session) Watch() (<-chan string, error) {
	if s.watcher != nil {
		return s.watcher.changes, nil
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		fs:      fs,
		changes: make(chan string, 64),
		done:    make(chan struct{}),
		logger:  s.logger,
		timers:  make(map[string]*time.Timer),
	}

	// Watch every non-excluded directory; fsnotify is not recursive.
	var dirs []string
	s.Root.Walk(func(n *tree.Node) {
		if n.IsDir() && n.Selection != tree.Excluded && n.Err == tree.ErrNone {
			dirs = append(dirs, n.Path)
		}
	})
	for _, dir := range dirs {
		if err := fs.Add(dir); err != nil {
			w.logger.Warn("failed to watch directory",
				zap.String("path", dir),
				zap.Error(err))
		}
	}

	go w.run()
	s.watcher = w
	return w.changes, nil
}

// HandleChange reacts to one detected mutation: cached counts for the
// path are dropped and the owning subtree is reclassified.
func (s *Session) HandleChange(path string) {
	s.counter.Invalidate(path)
	node := s.Root.Find(path)
	if node == nil {
		// A new entry appeared; refresh its parent directory.
		if parent := s.Root.Find(filepath.Dir(path)); parent != nil {
			s.builder.Refresh(parent)
		}
		return
	}
	s.builder.Refresh(node)
}

func (w *watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.debounce(event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// debounce schedules delivery of a change after a quiet period,
// resetting the timer on repeated events for the same path.
func (w *watcher) debounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if timer, ok := w.timers[path]; ok {
		timer.Reset(debounceDelay)
		return
	}
	w.timers[path] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.timers, path)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		select {
		case w.changes <- path:
		default:
			// Drop when the consumer is behind; detection is
			// best-effort.
		}
	})
}

func (w *watcher) stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for _, timer := range w.timers {
		timer.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	if err := w.fs.Close(); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("failed to close watcher", zap.Error(err))
	}
	close(w.changes)
}
