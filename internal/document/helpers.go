package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// Serializer writes elements back out as XML text.
type Serializer struct{}

// String returns el and its subtree as XML.
func (Serializer) String(el *etree.Element) (string, error) {
	if el == nil {
		return "", nil
	}
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	return doc.WriteToString()
}

// Content returns the XML of el's children without el's own tags.
func (Serializer) Content(el *etree.Element) (string, error) {
	if el == nil {
		return "", nil
	}
	cp := el.Copy()
	children := append([]etree.Token(nil), cp.Child...)
	doc := etree.NewDocument()
	for _, tok := range children {
		doc.AddChild(tok)
	}
	return doc.WriteToString()
}

// TreeWalker flattens element trees.
type TreeWalker struct{}

// AllElements returns every descendant of el in document order, excluding el.
func (TreeWalker) AllElements(el *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, child := range e.ChildElements() {
			out = append(out, child)
			walk(child)
		}
	}
	if el != nil {
		walk(el)
	}
	return out
}

// Children returns the direct child elements of el.
func (TreeWalker) Children(el *etree.Element) []*etree.Element {
	if el == nil {
		return nil
	}
	return el.ChildElements()
}

// PathQuery evaluates etree path expressions, an XPath subset such as
// "./section/title" or "//link[@rel='stylesheet']".
type PathQuery struct{}

// Select returns all elements matching expr relative to node. node may be an
// *etree.Element or a *Tree.
func (PathQuery) Select(expr string, node any) ([]*etree.Element, error) {
	el, err := contextElement(node)
	if err != nil || el == nil {
		return nil, err
	}
	p, err := etree.CompilePath(expr)
	if err != nil {
		return nil, fmt.Errorf("compile path %q: %w", expr, err)
	}
	return el.FindElementsPath(p), nil
}

// First returns the first match of expr, or nil.
func (q PathQuery) First(expr string, node any) (*etree.Element, error) {
	matches, err := q.Select(expr, node)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return matches[0], nil
}

// Value returns the text of the first match of expr, or "".
func (q PathQuery) Value(expr string, node any) (string, error) {
	el, err := q.First(expr, node)
	if err != nil || el == nil {
		return "", err
	}
	return el.Text(), nil
}

func contextElement(node any) (*etree.Element, error) {
	switch n := node.(type) {
	case nil:
		return nil, nil
	case *etree.Element:
		return n, nil
	case *Tree:
		return n.Root(), nil
	default:
		return nil, fmt.Errorf("unsupported path context %T", node)
	}
}

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
	"\n", "&#10;",
)

// Escaper escapes text for inclusion in generated markup.
type Escaper struct{}

// Text escapes &, <, > and double quotes.
func (Escaper) Text(s string) string { return textEscaper.Replace(s) }

// Attr escapes a value for use inside a quoted attribute.
func (Escaper) Attr(s string) string { return attrEscaper.Replace(s) }

// HTML escapes s using HTML rules.
func (Escaper) HTML(s string) string { return html.EscapeString(s) }

// StripTags returns the text content of an HTML fragment.
func (Escaper) StripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

// Markdown renders markdown fragments embedded in documents.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown returns a CommonMark renderer.
func NewMarkdown() Markdown {
	return Markdown{md: goldmark.New()}
}

// Render converts markdown source to HTML.
func (m Markdown) Render(src string) (string, error) {
	md := m.md
	if md == nil {
		md = goldmark.New()
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
