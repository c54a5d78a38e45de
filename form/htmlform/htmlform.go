// Package htmlform binds the form interfaces to a parsed HTML document
// (golang.org/x/net/html). It is the adapter used in tests and for
// server-side processing of rendered pages: mutations edit the parse tree
// in place and the document can be re-serialised afterwards.
package htmlform

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/formkeep/form"
)

// Document wraps a parsed HTML tree and tracks dispatched change events.
// Static trees have no event loop, so DispatchChange records the field
// name here; hosts embedding a live DOM get real events via rodform.
type Document struct {
	root    *html.Node
	changes []string
}

// Parse reads and parses an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmlform: parse: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Forms discovers all <form> elements in document order.
func (d *Document) Forms() []form.Form {
	var out []form.Form
	walk(d.root, func(n *html.Node) {
		if n.DataAtom == atom.Form {
			out = append(out, &htmlForm{doc: d, node: n})
		}
	})
	return out
}

// Discoverer returns a form.Discoverer over this document.
func (d *Document) Discoverer() form.Discoverer {
	return func() []form.Form { return d.Forms() }
}

// Render serialises the (possibly mutated) document back to HTML.
func (d *Document) Render() (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, d.root); err != nil {
		return "", fmt.Errorf("htmlform: render: %w", err)
	}
	return sb.String(), nil
}

// ChangeEvents returns the names of fields that dispatched a change
// notification since the last reset, in dispatch order.
func (d *Document) ChangeEvents() []string {
	return d.changes
}

// ResetChangeEvents clears the recorded change notifications.
func (d *Document) ResetChangeEvents() {
	d.changes = nil
}

func (d *Document) recordChange(name string) {
	d.changes = append(d.changes, name)
}

// walk visits every element node under n in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func attrVal(n *html.Node, name string) string {
	v, _ := attr(n, name)
	return v
}

func hasAttr(n *html.Node, name string) bool {
	_, ok := attr(n, name)
	return ok
}

func setAttr(n *html.Node, name, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

func delAttr(n *html.Node, name string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return sb.String()
}

func setTextContent(n *html.Node, text string) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
