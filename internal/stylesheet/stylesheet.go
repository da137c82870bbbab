// Package stylesheet resolves and executes the text/template file that drives
// every generated page.
package stylesheet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"git.home.luguber.info/inful/docweave/internal/freshness"
)

// ErrNotFound is returned when no search directory contains the stylesheet.
var ErrNotFound = errors.New("stylesheet not found")

// Engine locates stylesheets on a search path.
type Engine struct {
	searchPath []string
	funcs      template.FuncMap
}

// NewEngine returns an engine searching dirs in order. An empty search path
// means the current directory.
func NewEngine(dirs ...string) *Engine {
	var searchPath []string
	for _, d := range dirs {
		if strings.TrimSpace(d) != "" {
			searchPath = append(searchPath, d)
		}
	}
	if len(searchPath) == 0 {
		searchPath = []string{"."}
	}
	return &Engine{searchPath: searchPath, funcs: builtinFuncs()}
}

// SearchPath returns the directories consulted by Resolve.
func (e *Engine) SearchPath() []string {
	return append([]string(nil), e.searchPath...)
}

// Locate returns the file backing id without parsing it.
func (e *Engine) Locate(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty stylesheet name", ErrNotFound)
	}
	if filepath.IsAbs(id) {
		if isFile(id) {
			return id, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for _, dir := range e.searchPath {
		candidate := filepath.Join(dir, filepath.FromSlash(id))
		if isFile(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched %s)", ErrNotFound, id, strings.Join(e.searchPath, string(os.PathListSeparator)))
}

// Resolve locates and parses id, capturing its modification time.
func (e *Engine) Resolve(id string) (*Template, error) {
	path, err := e.Locate(id)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is resolved from the configured template search path.
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stylesheet: %w", err)
	}
	tpl, err := template.New(filepath.Base(path)).Funcs(e.funcs).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse stylesheet %s: %w", path, err)
	}
	return &Template{
		id:           id,
		path:         path,
		lastModified: freshness.Stat(path),
		tpl:          tpl,
	}, nil
}

// Template is a parsed stylesheet. It is safe for concurrent Render calls.
type Template struct {
	id           string
	path         string
	lastModified freshness.Stamp
	tpl          *template.Template
}

func (t *Template) ID() string                    { return t.id }
func (t *Template) Path() string                  { return t.path }
func (t *Template) LastModified() freshness.Stamp { return t.lastModified }

// Render executes the stylesheet with bindings as dot.
func (t *Template) Render(w io.Writer, bindings map[string]any) error {
	if err := t.tpl.Execute(w, bindings); err != nil {
		return fmt.Errorf("execute stylesheet %s: %w", t.id, err)
	}
	return nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func builtinFuncs() template.FuncMap {
	return template.FuncMap{
		"join":      strings.Join,
		"lower":     strings.ToLower,
		"upper":     strings.ToUpper,
		"trim":      strings.TrimSpace,
		"replace":   strings.ReplaceAll,
		"hasPrefix": strings.HasPrefix,
		"hasSuffix": strings.HasSuffix,
		"default": func(fallback, v any) any {
			if v == nil {
				return fallback
			}
			if s, ok := v.(string); ok && s == "" {
				return fallback
			}
			return v
		},
	}
}
