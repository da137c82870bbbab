package transform

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/document"
	"git.home.luguber.info/inful/docweave/internal/freshness"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func tick(n int) time.Time { return epoch.Add(time.Duration(n) * time.Minute) }

// fakeStyle renders a one-line summary of the bindings it receives and keeps
// every context it was handed.
type fakeStyle struct {
	stamp freshness.Stamp
	fail  error

	mu   sync.Mutex
	seen map[string]RenderContext
}

func newFakeStyle(modified time.Time) *fakeStyle {
	return &fakeStyle{stamp: freshness.At(modified), seen: map[string]RenderContext{}}
}

func (s *fakeStyle) ID() string                    { return "fake.tmpl" }
func (s *fakeStyle) LastModified() freshness.Stamp { return s.stamp }

func (s *fakeStyle) Render(w io.Writer, bindings map[string]any) error {
	ctx := RenderContext(bindings)
	root := ctx[BindingRoot]
	key := ""
	if el, ok := root.(*etree.Element); ok && el != nil {
		key = el.SelectAttrValue("id", "")
	}
	s.mu.Lock()
	s.seen[key] = ctx
	s.mu.Unlock()

	if _, err := fmt.Fprintf(w, "doc=%s rel=%s\n", key, ctx[BindingRelativePath]); err != nil {
		return err
	}
	return s.fail
}

func (s *fakeStyle) renders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *fakeStyle) context(id string) (RenderContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.seen[id]
	return ctx, ok
}

// countingParser wraps the XML parser and counts calls.
type countingParser struct {
	calls atomic.Int32
	inner document.Parser
}

func newCountingParser() *countingParser {
	return &countingParser{inner: document.NewXMLParser()}
}

func (p *countingParser) Parse(data []byte) (*document.Tree, error) {
	p.calls.Add(1)
	return p.inner.Parse(data)
}

var errRender = errors.New("boom")

// site is a base/destination directory pair on disk.
type site struct {
	base string
	dest string
}

func newSite(t *testing.T) site {
	t.Helper()
	root := t.TempDir()
	return site{base: filepath.Join(root, "src"), dest: filepath.Join(root, "out")}
}

func (s site) source(t *testing.T, rel, content string, mtime time.Time) string {
	t.Helper()
	return writeAt(t, filepath.Join(s.base, filepath.FromSlash(rel)), content, mtime)
}

func (s site) output(t *testing.T, rel, content string, mtime time.Time) string {
	t.Helper()
	return writeAt(t, filepath.Join(s.dest, filepath.FromSlash(rel)), content, mtime)
}

func (s site) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(s.dest, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func (s site) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(s.dest, filepath.FromSlash(rel)))
	return err == nil
}

func writeAt(t *testing.T, path, content string, mtime time.Time) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func doc(id string) string {
	return fmt.Sprintf(`<?xml version="1.0"?><document id=%q><title>%s</title></document>`, id, id)
}
