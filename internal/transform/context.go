package transform

import (
	"time"

	"github.com/beevik/etree"

	"git.home.luguber.info/inful/docweave/internal/document"
)

// Binding names exposed to stylesheets.
const (
	BindingRoot         = "root"
	BindingProject      = "project"
	BindingRelativePath = "relativePath"
	BindingXMLOut       = "xmlout"
	BindingTreeWalk     = "treeWalk"
	BindingXPath        = "xpath"
	BindingEscape       = "escape"
	BindingMarkdown     = "markdown"
	BindingDate         = "date"
)

// RenderContext maps binding names to values for one render call.
type RenderContext map[string]any

// Has reports whether name is bound.
func (c RenderContext) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// ContextBuilder assembles a fresh RenderContext per file.
type ContextBuilder struct {
	now      func() time.Time
	markdown document.Markdown
}

// NewContextBuilder returns a builder stamping contexts with the wall clock.
func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{now: time.Now, markdown: document.NewMarkdown()}
}

// WithClock replaces the time source.
func (b *ContextBuilder) WithClock(now func() time.Time) *ContextBuilder {
	b.now = now
	return b
}

// Build returns the bindings for one render. The project binding is present
// only when project is non-nil.
func (b *ContextBuilder) Build(root, project *etree.Element, relativePath string) RenderContext {
	ctx := RenderContext{
		BindingRoot:         root,
		BindingRelativePath: relativePath,
		BindingXMLOut:       document.Serializer{},
		BindingTreeWalk:     document.TreeWalker{},
		BindingXPath:        document.PathQuery{},
		BindingEscape:       document.Escaper{},
		BindingMarkdown:     b.markdown,
		BindingDate:         b.now(),
	}
	if project != nil {
		ctx[BindingProject] = project
	}
	return ctx
}
