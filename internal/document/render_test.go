package document

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mdpick/mdpick/internal/filter"
	"github.com/mdpick/mdpick/internal/tree"
)

func writeFixture(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// endToEndFixture is the canonical scenario: a text file, a binary
// file, and a default-excluded .git entry.
func endToEndFixture(t *testing.T) (string, *tree.Node) {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "src", "a.py"), []byte(strings.Repeat("x", 3000)))
	writeFixture(t, filepath.Join(dir, "src", "b.bin"), append([]byte{0x00}, bytes.Repeat([]byte{0xfe}, 32)...))
	writeFixture(t, filepath.Join(dir, ".git", "config"), []byte("[core]\n"))

	policy, err := filter.New(dir, filter.Config{ExcludePatterns: filter.DefaultExcludePatterns})
	require.NoError(t, err)
	root, err := tree.NewBuilder(policy, nil).Build(dir)
	require.NoError(t, err)
	return dir, root
}

func TestRenderEndToEnd(t *testing.T) {
	dir, root := endToEndFixture(t)

	src := root.Find(filepath.Join(dir, "src"))
	tree.Toggle(src)

	a := root.Find(filepath.Join(dir, "src", "a.py"))
	require.Equal(t, tree.Checked, a.Selection)
	a.SetTokenCount(750)

	b := root.Find(filepath.Join(dir, "src", "b.bin"))
	require.Equal(t, tree.Checked, b.Selection)
	require.Equal(t, tree.ClassBinary, b.Content)

	doc := Render(root)

	require.True(t, strings.HasPrefix(doc, "# Repository Structure\n"))
	require.Contains(t, doc, "# Selected Files\n")
	require.Contains(t, doc, "## src/\n")
	require.Contains(t, doc, "### src/a.py (750 tokens)\n")
	require.Contains(t, doc, "```python\n"+strings.Repeat("x", 3000)+"\n```\n")
	require.Contains(t, doc, "### src/b.bin (binary)\n")
	require.NotContains(t, doc, ".git", "excluded entries never appear in the document")
	require.Contains(t, doc, "\n---\nTotal files: 2\nTotal tokens: 750\n")
	require.True(t, strings.HasSuffix(doc, "Total tokens: 750\n"))
}

func TestRenderSkipsUncheckedSubtrees(t *testing.T) {
	dir, root := endToEndFixture(t)
	// Nothing selected: no headings at all.
	doc := Render(root)

	require.NotContains(t, doc, "## ")
	require.Contains(t, doc, "Total files: 0\n")
	require.Contains(t, doc, "Total tokens: 0\n")
	// The structure tree still shows non-excluded entries.
	require.Contains(t, doc, "📂 src\n")
	_ = dir
}

func TestRenderPendingMarker(t *testing.T) {
	dir, root := endToEndFixture(t)
	a := root.Find(filepath.Join(dir, "src", "a.py"))
	tree.Toggle(a)

	doc := Render(root)
	require.Contains(t, doc, "### src/a.py (tokens pending)\n")
	require.Contains(t, doc, "Total tokens: 0\n", "pending counts contribute nothing")
}

func TestRenderIndeterminateChainIsVisited(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "a", "b", "deep.py"), []byte("pass\n"))
	writeFixture(t, filepath.Join(dir, "a", "other.py"), []byte("pass\n"))

	policy, err := filter.New(dir, filter.Config{})
	require.NoError(t, err)
	root, err := tree.NewBuilder(policy, nil).Build(dir)
	require.NoError(t, err)

	deep := root.Find(filepath.Join(dir, "a", "b", "deep.py"))
	tree.Toggle(deep)
	deep.SetTokenCount(3)

	doc := Render(root)
	require.Contains(t, doc, "## a/\n", "indeterminate ancestors with checked descendants are visited")
	require.Contains(t, doc, "## a/b/\n")
	require.Contains(t, doc, "### a/b/deep.py (3 tokens)\n")
	require.NotContains(t, doc, "other.py (", "unchecked files are skipped entirely")
}

func TestRenderErrorMarker(t *testing.T) {
	dir, root := endToEndFixture(t)
	a := root.Find(filepath.Join(dir, "src", "a.py"))
	tree.Toggle(a)
	a.Err = tree.ErrUnreadableEncoding

	doc := Render(root)
	require.Contains(t, doc, "### src/a.py (error: unreadable-encoding)\n")
}

func TestLanguageForFile(t *testing.T) {
	require.Equal(t, "python", LanguageForFile("x.py"))
	require.Equal(t, "go", LanguageForFile("x.go"))
	require.Equal(t, "markdown", LanguageForFile("README.MD"))
	require.Equal(t, "", LanguageForFile("x.unknown"))
}
