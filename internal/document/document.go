// Package document parses source and project files into element trees and
// provides the stateless helper objects templates use to inspect them.
package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// ErrNoRoot is returned for input that contains no root element.
var ErrNoRoot = errors.New("document has no root element")

// Tree is a parsed document.
type Tree struct {
	doc *etree.Document
}

// Root returns the document's root element.
func (t *Tree) Root() *etree.Element {
	if t == nil || t.doc == nil {
		return nil
	}
	return t.doc.Root()
}

// Parser turns raw bytes into a Tree.
type Parser interface {
	Parse(data []byte) (*Tree, error)
}

// XMLParser is a strict, non-validating XML parser.
type XMLParser struct {
	settings etree.ReadSettings
}

// NewXMLParser returns a parser that accepts any declared encoding the
// golang.org/x/net charset tables know about.
func NewXMLParser() *XMLParser {
	return &XMLParser{
		settings: etree.ReadSettings{
			CharsetReader: charset.NewReaderLabel,
		},
	}
}

// Parse implements Parser. Input is checked for well-formedness before the
// tree is built, since the tree builder tolerates mismatched end tags.
func (p *XMLParser) Parse(data []byte) (*Tree, error) {
	if err := p.wellFormed(data); err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	doc.ReadSettings = p.settings
	if _, err := doc.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, ErrNoRoot
	}
	return &Tree{doc: doc}, nil
}

func (p *XMLParser) wellFormed(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = p.settings.CharsetReader
	for {
		if _, err := dec.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// ParseFile reads path and parses it with p.
func ParseFile(p Parser, path string) (*Tree, error) {
	// #nosec G304 -- path comes from the scanner or the configured project file.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Parse(data)
}
