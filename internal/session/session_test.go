package session

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mdpick/mdpick/internal/counter"
	"github.com/mdpick/mdpick/internal/filter"
	"github.com/mdpick/mdpick/internal/tree"
)

type byteTokenizer struct{}

func (byteTokenizer) Count(text string) (int, error) { return len(text), nil }

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func openFixture(t *testing.T) (string, *Session) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "a.py"), []byte(strings.Repeat("x", 3000)))
	writeFile(t, filepath.Join(dir, "src", "b.bin"), []byte{0x00, 0x01, 0x02})
	writeFile(t, filepath.Join(dir, ".git", "config"), []byte("[core]\n"))

	policy, err := filter.New(dir, filter.Config{ExcludePatterns: filter.DefaultExcludePatterns})
	require.NoError(t, err)
	sess, err := Open(dir, policy, byteTokenizer{}, Options{Workers: 2})
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return dir, sess
}

func TestSelectCountRender(t *testing.T) {
	dir, sess := openFixture(t)

	affected, err := sess.Toggle(filepath.Join(dir, "src"))
	require.NoError(t, err)
	require.NotEmpty(t, affected)

	gen := sess.Recount()
	agg, final := sess.AwaitAggregate(gen)
	require.True(t, final)
	require.Equal(t, 1, agg.Files, "only the text file is counted")
	require.Equal(t, 3000, agg.Tokens)
	require.Equal(t, 0, agg.Errors)

	doc := sess.Render()
	require.Contains(t, doc, "### src/a.py (3000 tokens)\n")
	require.Contains(t, doc, "### src/b.bin (binary)\n")
	require.NotContains(t, doc, ".git/config")
	require.Contains(t, doc, "Total tokens: 3000\n")
}

func TestSnapshotExcludesBinaryAndUnchecked(t *testing.T) {
	dir, sess := openFixture(t)
	_, err := sess.Toggle(filepath.Join(dir, "src"))
	require.NoError(t, err)

	items := sess.Snapshot()
	require.Len(t, items, 1)
	require.Equal(t, filepath.Join(dir, "src", "a.py"), items[0].Path)
}

func TestSnapshotIncludesSymlinkedTextFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks not reliable on windows")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "real.py"), []byte("print()\n"))
	require.NoError(t, os.Symlink(filepath.Join(dir, "real.py"), filepath.Join(dir, "link.py")))

	policy, err := filter.New(dir, filter.Config{})
	require.NoError(t, err)
	sess, err := Open(dir, policy, byteTokenizer{}, Options{Workers: 1})
	require.NoError(t, err)
	t.Cleanup(sess.Close)

	_, err = sess.Toggle(filepath.Join(dir, "link.py"))
	require.NoError(t, err)

	items := sess.Snapshot()
	require.Len(t, items, 1)
	require.Equal(t, filepath.Join(dir, "link.py"), items[0].Path)

	agg, final := sess.AwaitAggregate(sess.Recount())
	require.True(t, final)
	require.Equal(t, 1, agg.Files)
	require.NotNil(t, sess.Root.Find(filepath.Join(dir, "link.py")).TokenCount)
}

func TestToggleUnknownPath(t *testing.T) {
	_, sess := openFixture(t)
	_, err := sess.Toggle("/nowhere/at/all")
	require.Error(t, err)
}

func TestApplyDropsResultsForDeselectedNodes(t *testing.T) {
	dir, sess := openFixture(t)
	aPath := filepath.Join(dir, "src", "a.py")
	_, err := sess.Toggle(aPath)
	require.NoError(t, err)

	// The node was deselected between snapshot and completion.
	_, err = sess.Toggle(aPath)
	require.NoError(t, err)

	sess.Apply(counter.Update{Kind: counter.FileCounted, Path: aPath, Tokens: 99})
	require.Nil(t, sess.Root.Find(aPath).TokenCount)
}

func TestIdenticalRecountsAgree(t *testing.T) {
	dir, sess := openFixture(t)
	_, err := sess.Toggle(filepath.Join(dir, "src"))
	require.NoError(t, err)

	first, ok := sess.AwaitAggregate(sess.Recount())
	require.True(t, ok)
	second, ok := sess.AwaitAggregate(sess.Recount())
	require.True(t, ok)
	require.Equal(t, first, second)
}

func TestRefreshInvalidatesVanishedFile(t *testing.T) {
	dir, sess := openFixture(t)
	aPath := filepath.Join(dir, "src", "a.py")
	_, err := sess.Toggle(aPath)
	require.NoError(t, err)
	_, ok := sess.AwaitAggregate(sess.Recount())
	require.True(t, ok)
	require.NotNil(t, sess.Root.Find(aPath).TokenCount)

	require.NoError(t, os.Remove(aPath))
	require.NoError(t, sess.Refresh(aPath))

	node := sess.Root.Find(aPath)
	require.Equal(t, tree.ErrNotFound, node.Err)
	require.Nil(t, node.TokenCount)
	require.Empty(t, sess.Snapshot(), "vanished files leave the counting set")
}

func TestWatchDetectsWrites(t *testing.T) {
	dir, sess := openFixture(t)
	changes, err := sess.Watch()
	require.NoError(t, err)

	aPath := filepath.Join(dir, "src", "a.py")
	writeFile(t, aPath, []byte("changed"))

	select {
	case path := <-changes:
		require.True(t, strings.HasPrefix(path, dir))
		sess.HandleChange(path)
	case <-time.After(3 * time.Second):
		t.Skip("no filesystem event delivered; watcher is best-effort")
	}
}
