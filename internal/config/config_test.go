package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), FileName), "")
	require.NoError(t, err)
	require.Equal(t, Settings{}, s)
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "\n")
	s, err := Load(path, "")
	require.NoError(t, err)
	require.Equal(t, Settings{}, s)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "extensions: [unclosed\n")
	_, err := Load(path, "")
	require.Error(t, err)
}

func TestLoadBaseSettings(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
extensions: [.go, .rs]
filter_extensions: true
exclude: [vendor, "*.lock"]
workers: 4
model: gpt-4
output: copy
`)
	s, err := Load(path, "")
	require.NoError(t, err)
	require.Equal(t, []string{".go", ".rs"}, s.Extensions)
	require.True(t, s.ExtensionFilteringEnabled())
	require.Equal(t, []string{"vendor", "*.lock"}, s.Exclude)
	require.Equal(t, 4, s.Workers)
	require.Equal(t, "gpt-4", s.Model)
	require.Equal(t, "copy", s.Output)
}

func TestLoadProfileOverlay(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
extensions: [.go]
profiles:
  default:
    exclude: [testdata]
  docs:
    extensions: [.md]
    exclude: [drafts]
`)

	s, err := Load(path, "docs")
	require.NoError(t, err)
	require.Equal(t, []string{".go", ".md"}, s.Extensions)
	require.Equal(t, []string{"drafts"}, s.Exclude)

	// Unknown profile falls back to the default profile.
	s, err = Load(path, "missing")
	require.NoError(t, err)
	require.Equal(t, []string{".go"}, s.Extensions)
	require.Equal(t, []string{"testdata"}, s.Exclude)
}

func TestLayeredLocalWins(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)
	writeConfig(t, homeDir, "model: gpt-4\nworkers: 8\noutput: copy\n")

	local := t.TempDir()
	writeConfig(t, local, "workers: 2\n")

	s, err := LoadLayered(local, "")
	require.NoError(t, err)
	require.Equal(t, 2, s.Workers, "local value overrides home")
	require.Equal(t, "gpt-4", s.Model, "home value survives when local is silent")
	require.Equal(t, "copy", s.Output)
}

func TestLayeredExplicitFalseOverridesTrue(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)
	writeConfig(t, homeDir, "filter_extensions: true\n")

	local := t.TempDir()
	writeConfig(t, local, "filter_extensions: false\n")

	s, err := LoadLayered(local, "")
	require.NoError(t, err)
	require.NotNil(t, s.ExtensionFiltering)
	require.False(t, s.ExtensionFilteringEnabled(), "an explicit local false must beat the home config")

	// A local config that is silent on the flag keeps the home value.
	silent := t.TempDir()
	writeConfig(t, silent, "workers: 2\n")
	s, err = LoadLayered(silent, "")
	require.NoError(t, err)
	require.True(t, s.ExtensionFilteringEnabled())
}

func TestWriteDefaultOutputPreservesKeys(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)
	path := writeConfig(t, homeDir, "model: gpt-4\noutput: print\n")

	require.NoError(t, WriteDefaultOutput("ssh-copy"))

	s, err := Load(path, "")
	require.NoError(t, err)
	require.Equal(t, "ssh-copy", s.Output)
	require.Equal(t, "gpt-4", s.Model)
}

func TestWriteDefaultOutputCreatesFile(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)

	require.NoError(t, WriteDefaultOutput("copy"))

	s, err := Load(filepath.Join(homeDir, FileName), "")
	require.NoError(t, err)
	require.Equal(t, "copy", s.Output)
}
