package tree

// Toggle flips the selection of n and propagates per the tri-state
// rules, returning every node whose selection changed. Excluded nodes
// are never user-selectable; toggling one is a no-op. Toggle is
// synchronous, performs no I/O, and must run on the control thread.
func Toggle(n *Node) []*Node {
	if n == nil || n.Selection == Excluded {
		return nil
	}

	var affected []*Node
	set := func(node *Node, s Selection) {
		if node.Selection != s {
			node.Selection = s
			node.ClearTokenCount()
			affected = append(affected, node)
		}
	}

	if n.IsDir() {
		target := Checked
		if n.Selection == Checked {
			target = Unchecked
		}
		setSubtree(n, target, set)
		// Directory states inside the subtree are derived, not taken
		// from the applied target.
		recomputeSubtree(n, set)
	} else {
		if n.Selection == Checked {
			set(n, Unchecked)
		} else {
			set(n, Checked)
		}
	}

	for p := n.Parent; p != nil; p = p.Parent {
		set(p, derive(p))
	}
	return affected
}

// setSubtree applies target to every non-excluded node under n,
// leaving excluded subtrees untouched.
func setSubtree(n *Node, target Selection, set func(*Node, Selection)) {
	if n.Selection == Excluded {
		return
	}
	set(n, target)
	for _, child := range n.Children {
		setSubtree(child, target, set)
	}
}

func recomputeSubtree(n *Node, set func(*Node, Selection)) {
	if n.Selection == Excluded {
		return
	}
	for _, child := range n.Children {
		recomputeSubtree(child, set)
	}
	if n.IsDir() && hasSelectableFiles(n) {
		set(n, derive(n))
	}
}

// Recompute re-derives every directory state in the subtree bottom-up.
// Used after a build or refresh rather than after a toggle.
func Recompute(n *Node) {
	if n.Selection == Excluded {
		return
	}
	for _, child := range n.Children {
		Recompute(child)
	}
	if n.IsDir() && hasSelectableFiles(n) {
		n.Selection = derive(n)
	}
}

// derive computes a directory's selection from its non-excluded
// descendant files: checked iff all are checked, unchecked iff none
// are, indeterminate otherwise. Directories with no selectable files
// keep their current state.
func derive(n *Node) Selection {
	checked, total := countSelectable(n)
	switch {
	case total == 0:
		return n.Selection
	case checked == total:
		return Checked
	case checked == 0:
		return Unchecked
	default:
		return Indeterminate
	}
}

func hasSelectableFiles(n *Node) bool {
	_, total := countSelectable(n)
	return total > 0
}

func countSelectable(n *Node) (checked, total int) {
	for _, child := range n.Children {
		if child.Selection == Excluded {
			continue
		}
		if child.IsDir() {
			c, t := countSelectable(child)
			checked += c
			total += t
			continue
		}
		total++
		if child.Selection == Checked {
			checked++
		}
	}
	return checked, total
}
