package tree

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mdpick/mdpick/internal/filter"
)

// classifyReadLimit bounds the read used for binary detection.
const classifyReadLimit = 8192

// Builder constructs node hierarchies under a filter policy. Per-node
// failures are recorded on the nodes; only root access errors are fatal.
type Builder struct {
	policy  *filter.Policy
	logger  *zap.Logger
	visited map[string]bool
}

// NewBuilder returns a Builder. A nil logger is replaced with a no-op.
func NewBuilder(policy *filter.Policy, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		policy:  policy,
		logger:  logger,
		visited: make(map[string]bool),
	}
}

// Build walks the subtree rooted at rootPath and returns its root node.
func (b *Builder) Build(rootPath string) (*Node, error) {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %s: %w", rootPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to access root path %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", abs)
	}

	root := &Node{
		Path:    abs,
		Kind:    KindDir,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		b.visited[real] = true
	}
	b.populate(root)
	Recompute(root)
	return root, nil
}

// populate lists a directory node and builds its children. Listing
// failures attach to the node instead of aborting the build.
func (b *Builder) populate(dir *Node) {
	entries, err := os.ReadDir(dir.Path)
	if err != nil {
		if os.IsPermission(err) {
			dir.Err = ErrPermissionDenied
		} else if os.IsNotExist(err) {
			dir.Err = ErrNotFound
		} else {
			dir.Err = ErrUnreadableEncoding
		}
		b.logger.Warn("failed to list directory",
			zap.String("path", dir.Path),
			zap.Error(err))
		return
	}

	for _, entry := range entries {
		child := b.buildEntry(dir, filepath.Join(dir.Path, entry.Name()), entry.Type()&os.ModeSymlink != 0)
		dir.Children = append(dir.Children, child)
	}
}

func (b *Builder) buildEntry(parent *Node, path string, isSymlink bool) *Node {
	node := &Node{Path: path, Parent: parent}

	info, err := os.Stat(path)
	if err != nil {
		// Stat follows symlinks, so a dangling link lands here.
		node.Kind = KindFile
		if isSymlink {
			node.Kind = KindSymlink
		}
		if os.IsPermission(err) {
			node.Err = ErrPermissionDenied
		} else {
			node.Err = ErrNotFound
		}
		node.Selection = Unchecked
		return node
	}
	node.Size = info.Size()
	node.ModTime = info.ModTime()

	// The policy sees the kind of the resolved target: a symlink to a
	// file goes through the extension allowlist like any other file.
	kind := filter.KindFile
	switch {
	case isSymlink:
		node.Kind = KindSymlink
		if info.IsDir() {
			kind = filter.KindDir
		}
	case info.IsDir():
		node.Kind = KindDir
		kind = filter.KindDir
	default:
		node.Kind = KindFile
	}

	// Exclusion is decided before any content inspection. Excluded
	// directories are never traversed; their contents inherit the
	// exclusion by construction.
	if parent.Selection == Excluded || b.policy.Classify(path, kind) == filter.Exclude {
		node.Selection = Excluded
		return node
	}

	if isSymlink {
		if cycle := b.checkSymlink(node); cycle {
			return node
		}
	}

	if node.Kind == KindDir || (node.Kind == KindSymlink && info.IsDir()) {
		b.populate(node)
		return node
	}

	b.classify(node)
	return node
}

// checkSymlink resolves a symlink and detects cycles. It reports true
// when the node must stay a non-traversable leaf.
func (b *Builder) checkSymlink(node *Node) bool {
	real, err := filepath.EvalSymlinks(node.Path)
	if err != nil {
		node.Err = ErrNotFound
		return true
	}
	// A link that resolves to one of its own ancestors, or to a
	// directory already traversed, would recurse forever.
	dir := filepath.Dir(node.Path)
	if real == dir || isAncestorOf(real, node.Path) {
		node.Err = ErrSymlinkCycle
		return true
	}
	if b.visited[real] {
		node.Err = ErrSymlinkCycle
		return true
	}
	if info, err := os.Stat(node.Path); err == nil && info.IsDir() {
		b.visited[real] = true
	}
	return false
}

// isAncestorOf reports whether candidate contains path.
func isAncestorOf(candidate, path string) bool {
	rel, err := filepath.Rel(candidate, path)
	if err != nil {
		return false
	}
	return rel == "." ||
		(rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// classify performs the bounded read that decides text vs binary and
// records read failures on the node.
func (b *Builder) classify(node *Node) {
	f, err := os.Open(node.Path)
	if err != nil {
		if os.IsPermission(err) {
			node.Err = ErrPermissionDenied
		} else if os.IsNotExist(err) {
			node.Err = ErrNotFound
		} else {
			node.Err = ErrUnreadableEncoding
		}
		return
	}
	defer f.Close()

	buf := make([]byte, classifyReadLimit)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		node.Err = ErrUnreadableEncoding
		return
	}
	node.Content = classifyBytes(buf[:n], n == classifyReadLimit)
}

// classifyBytes applies the documented heuristic: binary when the
// sample contains a NUL byte or is not valid UTF-8. When the sample is
// truncated, an incomplete trailing rune is tolerated.
func classifyBytes(buf []byte, truncated bool) ContentClass {
	if bytes.IndexByte(buf, 0) >= 0 {
		return ClassBinary
	}
	if truncated {
		for i := 0; i < utf8.UTFMax-1 && len(buf) > 0; i++ {
			r, size := utf8.DecodeLastRune(buf)
			if r == utf8.RuneError && size == 1 {
				buf = buf[:len(buf)-1]
				continue
			}
			break
		}
	}
	if !utf8.Valid(buf) {
		return ClassBinary
	}
	return ClassText
}
