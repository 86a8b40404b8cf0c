// Package config reads the .mdpick YAML configuration, with per-project
// profiles and a persisted default output mode in the home directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the target directory and in
// the user's home directory.
const FileName = ".mdpick"

// Profile overrides parts of the base configuration.
type Profile struct {
	Extensions []string `yaml:"extensions"`
	Exclude    []string `yaml:"exclude"`
}

// File is the on-disk configuration shape.
type File struct {
	Extensions []string           `yaml:"extensions"`
	FilterExts *bool              `yaml:"filter_extensions"`
	Exclude    []string           `yaml:"exclude"`
	Workers    int                `yaml:"workers"`
	Model      string             `yaml:"model"`
	Output     string             `yaml:"output"`
	Profiles   map[string]Profile `yaml:"profiles"`
}

// Settings is the resolved configuration handed to the rest of the
// program. ExtensionFiltering is nil when no layer set the flag; an
// explicit false in a nearer layer overrides a farther layer's true.
type Settings struct {
	Extensions         []string
	ExtensionFiltering *bool
	Exclude            []string
	Workers            int
	Model              string
	Output             string
}

// ExtensionFilteringEnabled resolves the optional flag; unset means
// disabled.
func (s Settings) ExtensionFilteringEnabled() bool {
	return s.ExtensionFiltering != nil && *s.ExtensionFiltering
}

// Load reads the config file at path and resolves the named profile.
// A missing file yields zero Settings and no error. An unknown profile
// falls back to the "default" profile when one exists.
func Load(path string, profile string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return s, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	s.Extensions = append(s.Extensions, cfg.Extensions...)
	s.Exclude = append(s.Exclude, cfg.Exclude...)
	s.ExtensionFiltering = cfg.FilterExts
	s.Workers = cfg.Workers
	s.Model = cfg.Model
	s.Output = cfg.Output

	if len(cfg.Profiles) > 0 {
		prof, ok := cfg.Profiles[profile]
		if !ok {
			prof, ok = cfg.Profiles["default"]
		}
		if ok {
			s.Extensions = append(s.Extensions, prof.Extensions...)
			s.Exclude = append(s.Exclude, prof.Exclude...)
		}
	}
	return s, nil
}

// LoadLayered merges the home config with the target directory's
// config, the latter taking precedence field by field.
func LoadLayered(dir string, profile string) (Settings, error) {
	var home Settings
	if homeDir, err := os.UserHomeDir(); err == nil {
		home, err = Load(filepath.Join(homeDir, FileName), profile)
		if err != nil {
			return Settings{}, err
		}
	}
	local, err := Load(filepath.Join(dir, FileName), profile)
	if err != nil {
		return Settings{}, err
	}
	return merge(home, local), nil
}

func merge(base, over Settings) Settings {
	out := base
	if len(over.Extensions) > 0 {
		out.Extensions = over.Extensions
	}
	if len(over.Exclude) > 0 {
		out.Exclude = over.Exclude
	}
	if over.ExtensionFiltering != nil {
		out.ExtensionFiltering = over.ExtensionFiltering
	}
	if over.Workers != 0 {
		out.Workers = over.Workers
	}
	if over.Model != "" {
		out.Model = over.Model
	}
	if over.Output != "" {
		out.Output = over.Output
	}
	return out
}

// WriteDefaultOutput persists the default output mode into the home
// config file, preserving unrelated keys and the file's permissions.
func WriteDefaultOutput(mode string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	path := filepath.Join(homeDir, FileName)

	var raw map[string]any
	data, err := os.ReadFile(path)
	if err == nil {
		if len(strings.TrimSpace(string(data))) > 0 {
			if err := yaml.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	raw["output"] = mode

	out, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if len(out) == 0 || out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return os.WriteFile(path, out, perm)
}
