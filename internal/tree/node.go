// Package tree owns the in-memory node hierarchy mirroring a directory
// subtree, the tri-state selection rules that operate on it, and the
// content classification applied while building it.
package tree

import (
	"time"
)

// Kind is the filesystem kind of a node.
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
)

// Selection is the per-node selection state.
type Selection int

const (
	Unchecked Selection = iota
	Checked
	Indeterminate
	Excluded
)

func (s Selection) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Checked:
		return "checked"
	case Indeterminate:
		return "indeterminate"
	case Excluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// ContentClass is the result of binary/text classification.
type ContentClass int

const (
	ClassUnknown ContentClass = iota
	ClassText
	ClassBinary
)

// ErrTag is a per-node error marker. The empty tag means no error.
type ErrTag string

const (
	ErrNone               ErrTag = ""
	ErrNotFound           ErrTag = "not-found"
	ErrPermissionDenied   ErrTag = "permission-denied"
	ErrUnreadableEncoding ErrTag = "unreadable-encoding"
	ErrSymlinkCycle       ErrTag = "symlink-cycle"
)

// Node is one tracked filesystem entry. The tree owns its nodes
// root-down; Parent is only a back-reference for propagation.
type Node struct {
	Path      string
	Kind      Kind
	Parent    *Node
	Children  []*Node
	Selection Selection
	Content   ContentClass
	Err       ErrTag

	// TokenCount is nil until computed and cleared on invalidation.
	TokenCount *int

	Size    int64
	ModTime time.Time
}

// IsDir reports whether the node behaves as a directory. Symlinks that
// resolved to directories carry children and count as directories here.
func (n *Node) IsDir() bool {
	return n.Kind == KindDir || (n.Kind == KindSymlink && len(n.Children) > 0)
}

// Countable reports whether the node is eligible for token counting:
// a checked text file with no error attached. Symlinks that resolved
// to files count the same as regular files.
func (n *Node) Countable() bool {
	if n.IsDir() {
		return false
	}
	return n.Selection == Checked &&
		n.Content == ClassText &&
		n.Err == ErrNone
}

// SetTokenCount stores a computed count on the node.
func (n *Node) SetTokenCount(count int) {
	n.TokenCount = &count
}

// ClearTokenCount invalidates any resident count.
func (n *Node) ClearTokenCount() {
	n.TokenCount = nil
}

// Walk visits n and all descendants depth-first in listing order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Find returns the descendant (or n itself) with the given path.
func (n *Node) Find(path string) *Node {
	var found *Node
	n.Walk(func(node *Node) {
		if found == nil && node.Path == path {
			found = node
		}
	})
	return found
}
