// Package session scopes all mutable selection state to one root
// directory. A Session owns the tree and the counter; it is constructed
// when a root is chosen and torn down wholesale when the root changes.
// All tree mutation goes through the session on the caller's control
// thread; the counter only ever sees snapshot file lists.
package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mdpick/mdpick/internal/counter"
	"github.com/mdpick/mdpick/internal/document"
	"github.com/mdpick/mdpick/internal/filter"
	"github.com/mdpick/mdpick/internal/tree"
)

// Session ties a tree, its policy, and a counter to one root path.
type Session struct {
	Root    *tree.Node
	builder *tree.Builder
	counter *counter.Counter
	logger  *zap.Logger
	watcher *watcher

	aggregate counter.Aggregate
	final     bool
}

// Options configures session construction.
type Options struct {
	Workers int
	Logger  *zap.Logger
}

// Open builds the tree under rootPath and prepares a counter. Only a
// failure to access the root itself is returned as an error.
func Open(rootPath string, policy *filter.Policy, tok counter.Tokenizer, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	builder := tree.NewBuilder(policy, logger)
	root, err := builder.Build(rootPath)
	if err != nil {
		return nil, err
	}
	return &Session{
		Root:    root,
		builder: builder,
		counter: counter.New(tok, opts.Workers, logger),
		logger:  logger,
	}, nil
}

// Close releases the watcher, if any. Nodes are owned by the tree and
// simply become unreachable.
func (s *Session) Close() {
	if s.watcher != nil {
		s.watcher.stop()
		s.watcher = nil
	}
}

// Toggle flips the selection at path and returns the affected nodes.
func (s *Session) Toggle(path string) ([]*tree.Node, error) {
	node := s.Root.Find(path)
	if node == nil {
		return nil, fmt.Errorf("no such node: %s", path)
	}
	return tree.Toggle(node), nil
}

// Snapshot collects the countable files as detached items for the
// counter. The counter never receives node references.
func (s *Session) Snapshot() []counter.FileItem {
	var items []counter.FileItem
	s.Root.Walk(func(n *tree.Node) {
		if n.Countable() {
			items = append(items, counter.FileItem{
				Path:    n.Path,
				Size:    n.Size,
				ModTime: n.ModTime,
			})
		}
	})
	return items
}

// Recount starts a counting generation over the current selection.
func (s *Session) Recount() counter.Generation {
	s.final = false
	return s.counter.Request(s.Snapshot())
}

// CancelCount cancels a generation and waits for acknowledgment.
func (s *Session) CancelCount(gen counter.Generation) {
	s.counter.Cancel(gen)
}

// Updates exposes the counter's progress channel.
func (s *Session) Updates() <-chan counter.Update {
	return s.counter.Updates()
}

// Apply folds one counter update back into the tree. It must run on
// the control thread. Results for nodes that were deselected after the
// snapshot are dropped.
func (s *Session) Apply(u counter.Update) {
	switch u.Kind {
	case counter.FileCounted:
		if node := s.Root.Find(u.Path); node != nil && node.Countable() {
			node.SetTokenCount(u.Tokens)
		}
	case counter.FileFailed:
		if node := s.Root.Find(u.Path); node != nil {
			node.ClearTokenCount()
			if node.Err == tree.ErrNone {
				node.Err = tree.ErrUnreadableEncoding
			}
		}
		s.logger.Warn("failed to count file",
			zap.String("path", u.Path),
			zap.Error(u.Err))
	case counter.Done:
		s.aggregate = u.Aggregate
		s.final = true
	case counter.Cancelled:
		s.final = false
	}
}

// AwaitAggregate drains updates, applying each, until the given
// generation reports done or cancelled. It returns the aggregate and
// whether it is final. Updates from superseded generations never
// arrive; a newer generation's updates end the wait for the old one.
func (s *Session) AwaitAggregate(gen counter.Generation) (counter.Aggregate, bool) {
	for u := range s.Updates() {
		s.Apply(u)
		if u.Generation < gen {
			continue
		}
		if u.Kind == counter.Done {
			return u.Aggregate, u.Generation == gen
		}
		if u.Kind == counter.Cancelled && u.Generation == gen {
			return u.Aggregate, false
		}
	}
	return counter.Aggregate{}, false
}

// Aggregate returns the newest authoritative aggregate and whether a
// generation has completed since the last selection change.
func (s *Session) Aggregate() (counter.Aggregate, bool) {
	return s.aggregate, s.final
}

// Refresh re-runs classification for the node at path (or the whole
// tree when path is empty) and invalidates its cached counts.
func (s *Session) Refresh(path string) error {
	node := s.Root
	if path != "" {
		node = s.Root.Find(path)
		if node == nil {
			return fmt.Errorf("no such node: %s", path)
		}
	}
	node.Walk(func(n *tree.Node) {
		s.counter.Invalidate(n.Path)
	})
	s.builder.Refresh(node)
	return nil
}

// Render synthesizes the output document from the current selection
// and resident counts. It never blocks on the counter.
func (s *Session) Render() string {
	return document.Render(s.Root)
}
