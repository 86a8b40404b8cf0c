package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/mdpick/mdpick/internal/counter"
	"github.com/mdpick/mdpick/internal/tree"
)

var (
	excludedStyle = color.New(color.FgHiBlack)
	binaryStyle   = color.New(color.FgYellow)
	errorStyle    = color.New(color.FgRed)
	checkedStyle  = color.New(color.FgGreen)
)

// printSelectionTree renders the node hierarchy with selection markers
// and per-file token counts, the CLI stand-in for the tree view.
func printSelectionTree(w io.Writer, root *tree.Node, agg counter.Aggregate) {
	fmt.Fprintln(w, filepath.Base(root.Path))
	printChildren(w, root, "")
	fmt.Fprintf(w, "\nTotal Tokens: %d (%d files counted, %d errors)\n",
		agg.Tokens, agg.Files, agg.Errors)
}

func printChildren(w io.Writer, n *tree.Node, prefix string) {
	for i, child := range n.Children {
		connector := "├── "
		extension := "│   "
		if i == len(n.Children)-1 {
			connector = "└── "
			extension = "    "
		}
		fmt.Fprintf(w, "%s%s%s\n", prefix, connector, describe(child))
		if child.IsDir() && child.Selection != tree.Excluded {
			printChildren(w, child, prefix+extension)
		}
	}
}

func describe(n *tree.Node) string {
	name := filepath.Base(n.Path)
	if n.IsDir() {
		name += "/"
	}

	switch {
	case n.Selection == tree.Excluded:
		return excludedStyle.Sprintf("⊘ %s (excluded)", name)
	case n.Err != tree.ErrNone:
		return errorStyle.Sprintf("⚠ %s (%s)", name, n.Err)
	case n.Content == tree.ClassBinary:
		return binaryStyle.Sprintf("%s %s (binary)", marker(n), name)
	}

	label := fmt.Sprintf("%s %s", marker(n), name)
	if !n.IsDir() && n.TokenCount != nil {
		label += fmt.Sprintf(" (%d tokens)", *n.TokenCount)
	}
	if n.Selection == tree.Checked {
		return checkedStyle.Sprint(label)
	}
	return label
}

func marker(n *tree.Node) string {
	switch n.Selection {
	case tree.Checked:
		return "☑"
	case tree.Indeterminate:
		return "◪"
	default:
		return "☐"
	}
}
