package tree

import (
	"os"
	"path/filepath"
)

// Refresh re-runs classification for the subtree rooted at n without
// discarding unrelated nodes. A vanished path is tagged not-found and
// kept in the tree so callers can surface the discrepancy; it is
// dropped from counting and synthesis by the Countable check.
func (b *Builder) Refresh(n *Node) {
	// Excluded subtrees carry no classification state worth renewing.
	if n.Selection == Excluded {
		return
	}
	info, err := os.Stat(n.Path)
	if err != nil {
		if os.IsPermission(err) {
			n.Err = ErrPermissionDenied
		} else {
			n.Err = ErrNotFound
		}
		n.ClearTokenCount()
		markSubtree(n, ErrNotFound)
		bubble(n)
		return
	}
	if n.Err == ErrSymlinkCycle {
		// Cycle leaves stay non-traversable.
		return
	}
	n.Err = ErrNone

	if !n.IsDir() && n.Kind != KindDir {
		if !info.ModTime().Equal(n.ModTime) || info.Size() != n.Size {
			n.Size = info.Size()
			n.ModTime = info.ModTime()
			n.ClearTokenCount()
			n.Content = ClassUnknown
			if n.Selection != Excluded {
				b.classify(n)
			}
		}
		bubble(n)
		return
	}

	n.Size = info.Size()
	n.ModTime = info.ModTime()
	b.mergeChildren(n)
	// New entries arrive unchecked, so the directory's own derived
	// state must be recomputed along with its ancestors'.
	Recompute(n)
	bubble(n)
}

// mergeChildren reconciles a directory's children against a fresh
// listing: surviving nodes keep their selection, new entries are built
// under the current policy, vanished entries stay behind tagged
// not-found.
func (b *Builder) mergeChildren(dir *Node) {
	entries, err := os.ReadDir(dir.Path)
	if err != nil {
		if os.IsPermission(err) {
			dir.Err = ErrPermissionDenied
		} else {
			dir.Err = ErrNotFound
		}
		return
	}

	existing := make(map[string]*Node, len(dir.Children))
	for _, child := range dir.Children {
		existing[filepath.Base(child.Path)] = child
	}

	seen := make(map[string]bool, len(entries))
	var merged []*Node
	for _, entry := range entries {
		seen[entry.Name()] = true
		if child, ok := existing[entry.Name()]; ok {
			merged = append(merged, child)
			b.Refresh(child)
			continue
		}
		child := b.buildEntry(dir, filepath.Join(dir.Path, entry.Name()), entry.Type()&os.ModeSymlink != 0)
		merged = append(merged, child)
	}
	for _, child := range dir.Children {
		if !seen[filepath.Base(child.Path)] {
			child.Err = ErrNotFound
			child.ClearTokenCount()
			markSubtree(child, ErrNotFound)
			merged = append(merged, child)
		}
	}
	dir.Children = merged
}

func markSubtree(n *Node, tag ErrTag) {
	for _, child := range n.Children {
		child.Err = tag
		child.ClearTokenCount()
		markSubtree(child, tag)
	}
}

// bubble re-derives ancestor directory states after a refresh.
func bubble(n *Node) {
	for p := n.Parent; p != nil; p = p.Parent {
		if hasSelectableFiles(p) {
			p.Selection = derive(p)
		}
	}
}
