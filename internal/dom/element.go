// File: internal/dom/element.go
package dom

import (
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Kind is the declared kind of a form control.
type Kind string

const (
	KindText     Kind = "text"
	KindEmail    Kind = "email"
	KindTel      Kind = "tel"
	KindPassword Kind = "password"
	KindCheckbox Kind = "checkbox"
	KindSelect   Kind = "select"
	KindHidden   Kind = "hidden"
	KindSubmit   Kind = "submit"
	KindButton   Kind = "button"
	KindFile     Kind = "file"
	KindOther    Kind = "other"
)

// inputKinds maps the input type attribute onto a Kind. Types absent here are KindOther.
var inputKinds = map[string]Kind{
	"":         KindText,
	"text":     KindText,
	"search":   KindText,
	"url":      KindText,
	"email":    KindEmail,
	"tel":      KindTel,
	"password": KindPassword,
	"checkbox": KindCheckbox,
	"hidden":   KindHidden,
	"submit":   KindSubmit,
	"button":   KindButton,
	"reset":    KindButton,
	"image":    KindButton,
	"file":     KindFile,
}

// EventType names a synthetic notification raised after a mutation.
type EventType string

const (
	EventInput  EventType = "input"
	EventChange EventType = "change"
	EventBlur   EventType = "blur"
)

// Option is one entry of a select control.
type Option struct {
	Text     string
	Value    string
	Disabled bool
}

// Element is a node of a scannable document.
type Element interface {
	Tag() string
	Attr(name string) string
	HasAttr(name string) bool
	Kind() Kind
	// MaxLength reports the declared maxlength, or 0 when absent or invalid.
	MaxLength() int
	// Size reports the declared display width, or 0 when absent or invalid.
	Size() int
	Parent() Element
	Children() []Element
	Text() string
	Value() string
	SetValue(v string)
	Checked() bool
	SetChecked(checked bool)
	Options() []Option
	SelectedIndex() int
	Select(index int) bool
	Dispatch(t EventType)
	XPath() string
}

type node struct {
	doc *Document
	n   *html.Node
}

func (e *node) Tag() string { return strings.ToLower(e.n.Data) }

func (e *node) Attr(name string) string { return htmlquery.SelectAttr(e.n, name) }

func (e *node) HasAttr(name string) bool { return hasAttr(e.n, name) }

func (e *node) Kind() Kind {
	switch e.n.DataAtom {
	case atom.Select:
		return KindSelect
	case atom.Textarea:
		return KindText
	case atom.Input:
		if k, ok := inputKinds[strings.ToLower(strings.TrimSpace(e.Attr("type")))]; ok {
			return k
		}
	}
	return KindOther
}

func (e *node) MaxLength() int { return positiveIntAttr(e, "maxlength") }

func (e *node) Size() int { return positiveIntAttr(e, "size") }

func positiveIntAttr(e *node, name string) int {
	v, err := strconv.Atoi(strings.TrimSpace(e.Attr(name)))
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

func (e *node) Parent() Element {
	p := e.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(p)
}

func (e *node) Children() []Element {
	var out []Element
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

func (e *node) Text() string { return htmlquery.InnerText(e.n) }

func (e *node) Value() string {
	switch e.n.DataAtom {
	case atom.Textarea:
		return htmlquery.InnerText(e.n)
	case atom.Select:
		opts := e.Options()
		if i := e.SelectedIndex(); i >= 0 && i < len(opts) {
			return opts[i].Value
		}
		return ""
	}
	return e.Attr("value")
}

func (e *node) SetValue(v string) {
	if e.n.DataAtom == atom.Textarea {
		for c := e.n.FirstChild; c != nil; {
			next := c.NextSibling
			e.n.RemoveChild(c)
			c = next
		}
		e.n.AppendChild(&html.Node{Type: html.TextNode, Data: v})
		return
	}
	setAttr(e.n, "value", v)
}

func (e *node) Checked() bool { return hasAttr(e.n, "checked") }

func (e *node) SetChecked(checked bool) {
	if checked {
		setAttr(e.n, "checked", "")
		return
	}
	removeAttr(e.n, "checked")
}

func (e *node) optionNodes() []*html.Node {
	if e.n.DataAtom != atom.Select {
		return nil
	}
	return htmlquery.Find(e.n, ".//option")
}

func (e *node) Options() []Option {
	nodes := e.optionNodes()
	opts := make([]Option, 0, len(nodes))
	for _, o := range nodes {
		text := strings.TrimSpace(htmlquery.InnerText(o))
		value := text
		if hasAttr(o, "value") {
			value = htmlquery.SelectAttr(o, "value")
		}
		disabled := hasAttr(o, "disabled")
		if p := o.Parent; p != nil && p.DataAtom == atom.Optgroup && hasAttr(p, "disabled") {
			disabled = true
		}
		opts = append(opts, Option{Text: text, Value: value, Disabled: disabled})
	}
	return opts
}

// SelectedIndex follows browser defaults: the first option marked selected,
// else the first option, else -1 for an empty list.
func (e *node) SelectedIndex() int {
	nodes := e.optionNodes()
	for i, o := range nodes {
		if hasAttr(o, "selected") {
			return i
		}
	}
	if len(nodes) == 0 {
		return -1
	}
	return 0
}

func (e *node) Select(index int) bool {
	nodes := e.optionNodes()
	if index < 0 || index >= len(nodes) {
		return false
	}
	for i, o := range nodes {
		if i == index {
			setAttr(o, "selected", "")
		} else {
			removeAttr(o, "selected")
		}
	}
	return true
}

func (e *node) Dispatch(t EventType) { e.doc.dispatch(e, t) }

func (e *node) XPath() string { return UniqueXPath(e.n) }

// describe renders a node as tag#id for event paths.
func describe(n *html.Node) string {
	tag := strings.ToLower(n.Data)
	if id := htmlquery.SelectAttr(n, "id"); id != "" {
		return tag + "#" + id
	}
	return tag
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, name, value string) {
	for i := range n.Attr {
		if strings.EqualFold(n.Attr[i].Key, name) {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if !strings.EqualFold(a.Key, name) {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}
