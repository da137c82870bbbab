// Package pathmap derives output locations from source paths.
//
// All functions operate on slash-or-backslash separated relative paths and are
// pure: they never touch the filesystem.
package pathmap

import (
	"path"
	"path/filepath"
	"strings"
)

const (
	upLevel    = "../"
	currentDir = "."
)

// DestinationPath replaces the final extension of sourceRel with extension.
// Sub-directories are preserved. A source without an extension gets extension
// appended. The result uses forward slashes.
func DestinationPath(sourceRel, extension string) string {
	rel := filepath.ToSlash(sourceRel)
	dir, base := path.Split(rel)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return dir + base + extension
}

// OutputFile joins the destination root with DestinationPath, in OS form.
func OutputFile(destDir, sourceRel, extension string) string {
	return filepath.Join(destDir, filepath.FromSlash(DestinationPath(sourceRel, extension)))
}

// RelativePrefix returns the prefix that leads from the output of sourceRel back
// to the destination root: one "../" per ancestor directory. Inputs at the root
// (or empty input) yield ".".
func RelativePrefix(sourceRel string) string {
	depth := len(segments(sourceRel)) - 1
	if depth <= 0 {
		return currentDir
	}
	return strings.Repeat(upLevel, depth)
}

func segments(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	})
}
