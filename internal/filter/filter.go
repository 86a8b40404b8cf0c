// Package filter decides which filesystem entries are selectable.
package filter

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// Kind is the filesystem kind of a classified path. Symlinks are
// classified as the kind of their resolved target.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

// Decision is the outcome of classifying a path.
type Decision int

const (
	Include Decision = iota
	Exclude
)

// DefaultExtensions is the allowlist used when extension filtering is
// enabled and no explicit list is given.
var DefaultExtensions = []string{".py", ".js", ".md"}

// DefaultExcludePatterns mirrors the exclusions the tool has always
// shipped with: dependency trees, VCS metadata, build output, caches.
var DefaultExcludePatterns = []string{
	"node_modules",
	"venv",
	"myenv",
	".venv",
	"__pycache__",
	".git",
	".idea",
	".vs",
	".vscode",
	"dist",
	"build",
	"target",
	"vendor",
	".pytest_cache",
	".mypy_cache",
	".next",
	"coverage",
	"env",
	".env",
	".env.local",
	".gitignore",
}

// Config carries the user-adjustable filtering options.
type Config struct {
	// Extensions is the allowlist applied to files when
	// ExtensionFiltering is true. Empty means DefaultExtensions.
	Extensions []string
	// ExtensionFiltering enables the allowlist. Directories are never
	// excluded by extension.
	ExtensionFiltering bool
	// ExcludePatterns are matched against single path segments and,
	// when they contain glob metacharacters or separators, against the
	// full relative path (doublestar syntax).
	ExcludePatterns []string
	// UseGitignore layers the root's .gitignore on top of the patterns.
	UseGitignore bool
}

// Policy is a pure decision function over paths. Safe for concurrent
// use after construction.
type Policy struct {
	extensions   map[string]bool
	extFiltering bool
	segments     map[string]bool
	globs        []string
	gitIgnore    *ignore.GitIgnore
	baseDir      string
}

// New compiles a Policy rooted at dir. Patterns without separators or
// glob metacharacters are treated as literal segment excludes; the rest
// are matched as doublestar globs against the slash-relative path.
func New(dir string, cfg Config) (*Policy, error) {
	p := &Policy{
		extensions:   make(map[string]bool),
		extFiltering: cfg.ExtensionFiltering,
		segments:     make(map[string]bool),
		baseDir:      dir,
	}

	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	for _, ext := range exts {
		ext = strings.TrimSpace(strings.ToLower(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		p.extensions[ext] = true
	}

	for _, pat := range cfg.ExcludePatterns {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}
		if strings.ContainsAny(pat, "/*?[{") {
			p.globs = append(p.globs, strings.TrimSuffix(pat, "/"))
		} else {
			p.segments[pat] = true
		}
	}

	if cfg.UseGitignore {
		gitIgnorePath := filepath.Join(dir, ".gitignore")
		if _, err := os.Stat(gitIgnorePath); err == nil {
			gi, err := ignore.CompileIgnoreFile(gitIgnorePath)
			if err != nil {
				return nil, err
			}
			p.gitIgnore = gi
		}
	}

	return p, nil
}

// Classify decides whether the entry at path should be selectable.
// path may be absolute or relative to the policy's base directory.
func (p *Policy) Classify(path string, kind Kind) Decision {
	rel := p.relative(path)

	for _, part := range strings.Split(rel, "/") {
		if p.segments[part] {
			return Exclude
		}
	}
	for _, glob := range p.globs {
		if ok, err := doublestar.Match(glob, rel); err == nil && ok {
			return Exclude
		}
	}
	if p.gitIgnore != nil && p.gitIgnore.MatchesPath(rel) {
		return Exclude
	}

	// Extension filtering never applies to directories.
	if kind == KindFile && p.extFiltering {
		if !p.extensions[strings.ToLower(filepath.Ext(path))] {
			return Exclude
		}
	}

	return Include
}

func (p *Policy) relative(path string) string {
	rel := path
	if filepath.IsAbs(path) {
		if r, err := filepath.Rel(p.baseDir, path); err == nil {
			rel = r
		}
	}
	return filepath.ToSlash(rel)
}
