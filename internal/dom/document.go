// File: internal/dom/document.go
package dom

import (
	"fmt"
	"io"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Scanner is the root of a scannable document.
type Scanner interface {
	// Forms returns every form in document order. Controls outside any
	// <form> are collected into a trailing implicit form.
	Forms() []Form
	// LabelFor returns the label whose for attribute equals id, or nil.
	LabelFor(id string) Element
}

// Form is a container of controls.
type Form struct {
	// Selector is the form's XPath, or "" for the implicit form.
	Selector string
	Elements []Element
}

// Event records one dispatched notification.
type Event struct {
	Type   EventType
	Target string
	// Path is the bubbling chain, target first and root last.
	Path []string
}

// Document is a parsed HTML page whose controls can be read and mutated.
// It is not safe for concurrent use.
type Document struct {
	root      *html.Node
	nodes     map[*html.Node]*node
	events    []Event
	listeners []func(Event)
}

// Parse reads a complete HTML page.
func Parse(r io.Reader) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return NewDocument(root), nil
}

// NewDocument wraps an already parsed tree.
func NewDocument(root *html.Node) *Document {
	return &Document{root: root, nodes: make(map[*html.Node]*node)}
}

// wrap returns the single Element for n so identity comparisons hold.
func (d *Document) wrap(n *html.Node) *node {
	if e, ok := d.nodes[n]; ok {
		return e
	}
	e := &node{doc: d, n: n}
	d.nodes[n] = e
	return e
}

func isControl(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Input, atom.Textarea, atom.Select:
		return true
	}
	return false
}

func (d *Document) Forms() []Form {
	var (
		forms []Form
		loose []Element
	)

	var walk func(n *html.Node, current *Form)
	walk = func(n *html.Node, current *Form) {
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.Form && current == nil:
				forms = append(forms, Form{Selector: UniqueXPath(n)})
				idx := len(forms) - 1
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c, &forms[idx])
				}
				return
			case isControl(n):
				if current != nil {
					current.Elements = append(current.Elements, d.wrap(n))
				} else {
					loose = append(loose, d.wrap(n))
				}
				// Options and other descendants of a control are not controls.
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, current)
		}
	}
	walk(d.root, nil)

	if len(loose) > 0 {
		forms = append(forms, Form{Elements: loose})
	}
	return forms
}

func (d *Document) LabelFor(id string) Element {
	if id == "" {
		return nil
	}
	for _, l := range htmlquery.Find(d.root, "//label[@for]") {
		if htmlquery.SelectAttr(l, "for") == id {
			return d.wrap(l)
		}
	}
	return nil
}

// Query returns the elements matched by an XPath expression.
func (d *Document) Query(expr string) ([]Element, error) {
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			out = append(out, d.wrap(n))
		}
	}
	return out, nil
}

// OnEvent registers a listener invoked for every dispatched event.
func (d *Document) OnEvent(fn func(Event)) {
	d.listeners = append(d.listeners, fn)
}

// Events returns a copy of the event log.
func (d *Document) Events() []Event {
	return append([]Event(nil), d.events...)
}

func (d *Document) dispatch(target *node, t EventType) {
	var path []string
	for n := target.n; n != nil && n.Type == html.ElementNode; n = n.Parent {
		path = append(path, describe(n))
	}
	ev := Event{Type: t, Target: target.XPath(), Path: path}
	d.events = append(d.events, ev)
	for _, fn := range d.listeners {
		fn(ev)
	}
}

// Render serializes the current tree.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}
