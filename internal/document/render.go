// Package document synthesizes the hierarchy-preserving output
// document from a selection tree. The text layout produced here is the
// one compatibility-sensitive artifact of the system: structure tree,
// "# Selected Files", a heading per visited directory, a path and
// token-count header per checked file with its verbatim content, and a
// trailing aggregate summary.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdpick/mdpick/internal/tree"
)

// languageByExt maps extensions to fenced-code-block languages.
var languageByExt = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".go":   "go",
	".html": "html",
	".css":  "css",
	".md":   "markdown",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".xml":  "xml",
	".sql":  "sql",
	".sh":   "bash",
	".cpp":  "cpp",
	".c":    "c",
	".java": "java",
	".rs":   "rust",
}

// LanguageForFile returns the fence language for a filename, or the
// empty string when none is known.
func LanguageForFile(name string) string {
	return languageByExt[strings.ToLower(filepath.Ext(name))]
}

// Render walks the current selection and produces the document text.
// It reads whatever token counts are resident and never waits for the
// counter; files whose counts are absent get a pending marker.
func Render(root *tree.Node) string {
	var b strings.Builder

	b.WriteString("# Repository Structure\n\n")
	b.WriteString("```\n")
	b.WriteString("📦 " + filepath.Base(root.Path) + "\n")
	writeStructure(&b, root, "")
	b.WriteString("```\n\n")

	b.WriteString("# Selected Files\n\n")
	var files, tokens int
	writeSelection(&b, root, root.Path, &files, &tokens)

	b.WriteString("---\n")
	fmt.Fprintf(&b, "Total files: %d\n", files)
	fmt.Fprintf(&b, "Total tokens: %d\n", tokens)
	return b.String()
}

// writeStructure renders the non-excluded tree with box-drawing
// connectors. Children stay in listing order.
func writeStructure(b *strings.Builder, n *tree.Node, prefix string) {
	visible := make([]*tree.Node, 0, len(n.Children))
	for _, child := range n.Children {
		if child.Selection != tree.Excluded {
			visible = append(visible, child)
		}
	}
	for i, child := range visible {
		connector := "├── "
		extension := "│   "
		if i == len(visible)-1 {
			connector = "└── "
			extension = "    "
		}
		name := filepath.Base(child.Path)
		if child.IsDir() {
			b.WriteString(prefix + connector + "📂 " + name + "\n")
			writeStructure(b, child, prefix+extension)
		} else {
			b.WriteString(prefix + connector + name + "\n")
		}
	}
}

// visitable reports whether a directory lies on an unbroken chain down
// to at least one checked file.
func visitable(n *tree.Node) bool {
	if n.Selection != tree.Checked && n.Selection != tree.Indeterminate {
		return false
	}
	for _, child := range n.Children {
		if child.Selection == tree.Excluded {
			continue
		}
		if child.IsDir() {
			if visitable(child) {
				return true
			}
			continue
		}
		if child.Selection == tree.Checked {
			return true
		}
	}
	return false
}

func writeSelection(b *strings.Builder, n *tree.Node, rootPath string, files, tokens *int) {
	for _, child := range n.Children {
		if child.Selection == tree.Excluded {
			continue
		}
		rel, err := filepath.Rel(rootPath, child.Path)
		if err != nil {
			rel = child.Path
		}
		rel = filepath.ToSlash(rel)

		if child.IsDir() {
			if !visitable(child) {
				continue
			}
			fmt.Fprintf(b, "## %s/\n\n", rel)
			writeSelection(b, child, rootPath, files, tokens)
			continue
		}
		if child.Selection != tree.Checked {
			continue
		}
		writeFile(b, child, rel, files, tokens)
	}
}

func writeFile(b *strings.Builder, n *tree.Node, rel string, files, tokens *int) {
	*files++

	switch {
	case n.Content == tree.ClassBinary:
		fmt.Fprintf(b, "### %s (binary)\n\n", rel)
		return
	case n.Err != tree.ErrNone:
		fmt.Fprintf(b, "### %s (error: %s)\n\n", rel, n.Err)
		return
	case n.TokenCount == nil:
		fmt.Fprintf(b, "### %s (tokens pending)\n\n", rel)
	default:
		fmt.Fprintf(b, "### %s (%d tokens)\n\n", rel, *n.TokenCount)
		*tokens += *n.TokenCount
	}

	content, err := os.ReadFile(n.Path)
	if err != nil {
		fmt.Fprintf(b, "Error reading file - %s: %v\n\n", rel, err)
		return
	}
	lang := LanguageForFile(n.Path)
	fmt.Fprintf(b, "```%s\n%s\n```\n\n", lang, strings.TrimSuffix(string(content), "\n"))
}
