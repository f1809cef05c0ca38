// File: internal/autofill/signature.go
package autofill

import (
	"strings"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/dom"
)

// Signature is the lower-cased descriptive text used to classify a control.
type Signature struct {
	ID           string
	Name         string
	Placeholder  string
	Class        string
	Label        string
	AriaLabel    string
	Autocomplete string
}

// Values returns every signature value in a fixed order.
func (s Signature) Values() []string {
	return []string{s.ID, s.Name, s.Placeholder, s.Class, s.Label, s.AriaLabel, s.Autocomplete}
}

// ExtractSignature reads the signature values of el. Missing attributes yield "".
func ExtractSignature(doc dom.Scanner, el dom.Element) Signature {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return Signature{
		ID:           norm(el.Attr("id")),
		Name:         norm(el.Attr("name")),
		Placeholder:  norm(el.Attr("placeholder")),
		Class:        norm(el.Attr("class")),
		Label:        norm(AssociatedLabel(doc, el)),
		AriaLabel:    norm(el.Attr("aria-label")),
		Autocomplete: norm(el.Attr("autocomplete")),
	}
}

// AssociatedLabel resolves the label text of el, trying in order: a label
// whose for attribute equals el's id, an enclosing label below the nearest
// form, and the first label among the children of el's parent.
func AssociatedLabel(doc dom.Scanner, el dom.Element) string {
	if id := el.Attr("id"); id != "" && doc != nil {
		if label := doc.LabelFor(id); label != nil {
			return label.Text()
		}
	}

	for p := el.Parent(); p != nil && p.Tag() != "form"; p = p.Parent() {
		if p.Tag() == "label" {
			return p.Text()
		}
	}

	if parent := el.Parent(); parent != nil {
		for _, sib := range parent.Children() {
			// Its for attribute is not consulted, so a label bound to a
			// neighbouring control can describe el too.
			if sib.Tag() == "label" {
				return sib.Text()
			}
		}
	}
	return ""
}
