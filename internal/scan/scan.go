// Package scan enumerates input documents under a base directory using
// include and exclude glob patterns ("**" matches any number of directories).
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/unicode/norm"
)

// DefaultIncludes is used when no include pattern is configured.
var DefaultIncludes = []string{"**/*.xml"}

// DefaultExcludes lists version-control and editor artifacts that are never inputs.
var DefaultExcludes = []string{
	"**/*~",
	"**/#*#",
	"**/.#*",
	"**/%*%",
	"**/._*",
	"**/CVS",
	"**/CVS/**",
	"**/.cvsignore",
	"**/SCCS",
	"**/SCCS/**",
	"**/vssver.scc",
	"**/.svn",
	"**/.svn/**",
	"**/.git",
	"**/.git/**",
	"**/.gitignore",
	"**/.hg",
	"**/.hg/**",
	"**/.DS_Store",
}

// Filters selects files relative to the base directory.
type Filters struct {
	Includes []string
	Excludes []string
	// UseDefaultExcludes adds DefaultExcludes to Excludes.
	UseDefaultExcludes bool
	// ExcludePaths are exact slash-separated paths (files or directories)
	// skipped regardless of patterns.
	ExcludePaths []string
}

// Validate reports the first malformed pattern.
func (f Filters) Validate() error {
	for _, p := range append(append([]string{}, f.Includes...), f.Excludes...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid pattern %q", p)
		}
	}
	return nil
}

func (f Filters) includes() []string {
	if len(f.Includes) == 0 {
		return DefaultIncludes
	}
	return f.Includes
}

func (f Filters) excludes() []string {
	if !f.UseDefaultExcludes {
		return f.Excludes
	}
	return append(append([]string{}, DefaultExcludes...), f.Excludes...)
}

// Included reports whether rel (slash-separated, relative to the base) passes
// the filters. Paths and patterns are compared in NFC form.
func (f Filters) Included(rel string) bool {
	rel = matchKey(rel)
	return !f.excludedPath(rel) && matchAny(f.includes(), rel) && !matchAny(f.excludes(), rel)
}

// matchKey is the form used for comparisons only, never for opening files.
func matchKey(s string) string {
	return norm.NFC.String(s)
}

func (f Filters) excludedPath(rel string) bool {
	for _, p := range f.ExcludePaths {
		p = matchKey(p)
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return false
}

// excludedDir reports whether an entire directory can be pruned.
func (f Filters) excludedDir(rel string) bool {
	rel = matchKey(rel)
	if f.excludedPath(rel) {
		return true
	}
	for _, p := range f.excludes() {
		p = matchKey(p)
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, rel+"/"); ok {
			return true
		}
	}
	return false
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(matchKey(p), rel); ok {
			return true
		}
	}
	return false
}

// Scan walks baseDir and returns the included regular files as slash-separated
// paths relative to baseDir, in walk order (lexical within each directory).
// Names are returned byte-for-byte as stored so they can be opened again.
func Scan(baseDir string, filters Filters) ([]string, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, fmt.Errorf("stat base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base directory %s is not a directory", baseDir)
	}
	return ScanFS(os.DirFS(baseDir), filters)
}

// ScanFS is Scan over an fs.FS rooted at the base directory.
func ScanFS(fsys fs.FS, filters Filters) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		if d.IsDir() {
			if filters.excludedDir(p) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if filters.Included(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}
	return files, nil
}

// Within reports whether target lies under baseDir, returning the slash-separated
// relative path when it does.
func Within(baseDir, target string) (string, bool) {
	rel, err := relPath(baseDir, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return path.Clean(rel), true
}

func relPath(baseDir, target string) (string, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", err
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
