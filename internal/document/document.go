// Package document adapts goquery to the crawler.Document interface.
package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

// Parser builds Documents from raw HTML. The underlying HTML5 parser repairs
// malformed markup instead of rejecting it.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse implements crawler.Parser.
func (p *Parser) Parse(raw []byte) (crawler.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Document wraps a goquery document.
type Document struct {
	doc *goquery.Document
}

// FindAll implements crawler.Document. The attribute value is matched as one
// whitespace-separated token, which is how class names behave.
func (d *Document) FindAll(tag, attr, value string) ([]crawler.Element, error) {
	if d == nil || d.doc == nil {
		return nil, fmt.Errorf("document is empty")
	}
	matcher, err := compile(tag, attr, value)
	if err != nil {
		return nil, err
	}
	sel := d.doc.FindMatcher(matcher)
	out := make([]crawler.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{sel: s})
	})
	return out, nil
}

// Text implements crawler.Document.
func (d *Document) Text() string {
	if d == nil || d.doc == nil {
		return ""
	}
	return d.doc.Text()
}

// Element wraps a single goquery selection node.
type Element struct {
	sel *goquery.Selection
}

// Text implements crawler.Element.
func (e *Element) Text() string {
	return e.sel.Text()
}

// Attr implements crawler.Element.
func (e *Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// FindFirst implements crawler.Element.
func (e *Element) FindFirst(tag string) (crawler.Element, bool) {
	matcher, err := cascadia.Compile(tag)
	if err != nil {
		return nil, false
	}
	first := e.sel.FindMatcher(matcher).First()
	if first.Length() == 0 {
		return nil, false
	}
	return &Element{sel: first}, true
}

func compile(tag, attr, value string) (goquery.Matcher, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, fmt.Errorf("tag is required")
	}
	selector := tag
	if attr = strings.TrimSpace(attr); attr != "" {
		selector = fmt.Sprintf(`%s[%s~=%q]`, tag, attr, value)
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	return m, nil
}
