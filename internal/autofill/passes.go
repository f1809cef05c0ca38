// File: internal/autofill/passes.go
package autofill

import (
	"strings"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/dom"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/identity"
)

// formRun carries the state of one form across the passes of a single fill.
type formRun struct {
	doc  dom.Scanner
	rec  identity.Record
	form dom.Form
	res  *FillResult
	cfg  config.AutofillConfig

	sigs map[dom.Element]Signature
	// assigned holds the controls given a role by the primary pass.
	assigned map[dom.Element]bool
}

func newFormRun(doc dom.Scanner, rec identity.Record, form dom.Form, res *FillResult, cfg config.AutofillConfig) *formRun {
	return &formRun{
		doc:      doc,
		rec:      rec,
		form:     form,
		res:      res,
		cfg:      cfg,
		sigs:     make(map[dom.Element]Signature, len(form.Elements)),
		assigned: make(map[dom.Element]bool),
	}
}

func (r *formRun) signature(el dom.Element) Signature {
	if sig, ok := r.sigs[el]; ok {
		return sig
	}
	sig := ExtractSignature(r.doc, el)
	r.sigs[el] = sig
	return sig
}

// write applies the write contract: set the value then raise input, change
// and blur. An empty value leaves the control untouched.
func (r *formRun) write(el dom.Element, value string, role Role, pass Pass) {
	r.res.Decisions = append(r.res.Decisions, FillDecision{Selector: el.XPath(), Role: role, Value: value, Pass: pass})
	if value == "" {
		return
	}
	el.SetValue(value)
	el.Dispatch(dom.EventInput)
	el.Dispatch(dom.EventChange)
	el.Dispatch(dom.EventBlur)
	r.res.Filled++
}

func (r *formRun) valueFor(role Role) string {
	switch role {
	case RoleUsername:
		return r.rec.Username
	case RoleName:
		return r.rec.Name
	case RoleFirstName:
		return r.rec.FirstName()
	case RoleLastName:
		return r.rec.LastName()
	case RoleAddress:
		return r.rec.Address
	case RolePhone:
		return r.rec.Phone
	case RoleEmail:
		return r.rec.Email
	case RolePassword, RoleConfirmPassword:
		return r.rec.Password
	}
	return ""
}

// --- Primary pass ---

func (r *formRun) primaryPass() {
	for _, el := range r.form.Elements {
		switch el.Kind() {
		case dom.KindHidden, dom.KindSubmit, dom.KindButton, dom.KindFile:
			continue
		case dom.KindSelect:
			// Dropdowns are handled by the select pass.
			continue
		case dom.KindCheckbox:
			r.consent(el)
			continue
		}

		role := Classify(el, r.signature(el))
		if role == RoleNone {
			continue
		}
		r.assigned[el] = true
		r.write(el, r.valueFor(role), role, PassPrimary)
	}
}

func (r *formRun) consent(el dom.Element) {
	if !r.cfg.CheckConsent || !matchesAny(r.signature(el).Values(), consentKeywords) {
		return
	}
	r.res.Decisions = append(r.res.Decisions, FillDecision{Selector: el.XPath(), Role: RoleConsent, Pass: PassConsent})
	el.SetChecked(true)
	el.Dispatch(dom.EventChange)
	r.res.Filled++
}

// Classify assigns a role to a textual control. Declared types win over
// keywords; keyword roles are tried in a fixed order and the first match wins.
func Classify(el dom.Element, sig Signature) Role {
	if role := declaredRole(el.Kind(), sig.Autocomplete); role != RoleNone {
		return role
	}
	vals := sig.Values()
	for _, role := range classificationOrder {
		if matchesAny(vals, roleKeywords[role]) {
			return role
		}
	}
	return RoleNone
}

func declaredRole(kind dom.Kind, autocomplete string) Role {
	switch {
	case kind == dom.KindEmail || autocomplete == "email":
		return RoleEmail
	case kind == dom.KindTel || autocomplete == "tel" || autocomplete == "mobile" || autocomplete == "phone":
		return RolePhone
	case kind == dom.KindPassword || autocomplete == "new-password" || autocomplete == "current-password":
		return RolePassword
	}
	return RoleNone
}

// --- Select pass ---

// countryAliases are fallbacks tried only when the raw token matches no
// option, so that an address ending in "USA" can still reach "United States".
var countryAliases = map[string][]string{
	"usa":           {"united states"},
	"us":            {"united states"},
	"u.s.":          {"united states"},
	"u.s.a.":        {"united states"},
	"america":       {"united states"},
	"uk":            {"united kingdom"},
	"gb":            {"united kingdom"},
	"great britain": {"united kingdom"},
	"uae":           {"united arab emirates"},
}

func (r *formRun) selectPass() {
	for _, el := range r.form.Elements {
		if el.Kind() != dom.KindSelect {
			continue
		}
		vals := r.signature(el).Values()

		var (
			role  Role
			token string
		)
		switch {
		case matchesAny(vals, []string{"country"}):
			role, token = RoleCountry, r.rec.Country()
		case matchesAny(vals, []string{"state", "province"}):
			role, token = RoleState, r.rec.State()
		default:
			continue
		}

		token = strings.ToLower(token)
		if token == "" {
			continue
		}
		idx := MatchOption(el.Options(), candidatesFor(role, token))
		if idx < 0 {
			continue
		}
		el.Select(idx)
		el.Dispatch(dom.EventChange)
		r.res.Filled++
		r.res.Decisions = append(r.res.Decisions, FillDecision{
			Selector: el.XPath(), Role: role, Value: el.Options()[idx].Text, Pass: PassSelect,
		})
	}
}

func candidatesFor(role Role, token string) []string {
	if role == RoleCountry {
		return append([]string{token}, countryAliases[token]...)
	}
	return []string{token}
}

// MatchOption returns the index of the first enabled option whose lower-cased
// text contains a candidate or is contained by it, trying candidates in
// order. Options without text are ignored. It returns -1 when nothing matches.
func MatchOption(opts []dom.Option, candidates []string) int {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		for i, opt := range opts {
			text := strings.ToLower(strings.TrimSpace(opt.Text))
			if text == "" || opt.Disabled {
				continue
			}
			if strings.Contains(text, c) || strings.Contains(c, text) {
				return i
			}
		}
	}
	return -1
}

// --- Grouped phone pass ---

func (r *formRun) phoneGroupPass() {
	digits := r.rec.Digits()
	seen := make(map[dom.Element]bool)

	for _, el := range r.form.Elements {
		if !isSegmentCandidate(el) {
			continue
		}
		parent := el.Parent()
		if parent == nil || seen[parent] {
			continue
		}
		nearby := []string{strings.ToLower(parent.Text())}
		if !matchesAny(r.signature(el).Values(), phoneGroupKeywords) && !matchesAny(nearby, phoneGroupKeywords) {
			continue
		}
		seen[parent] = true

		group := segmentGroup(parent)
		if len(group) < 2 || len(group) > 4 {
			continue
		}
		r.fillSegments(group, digits)
	}
}

func (r *formRun) fillSegments(group []dom.Element, digits string) {
	cursor := 0
	for _, seg := range group {
		width := segmentWidth(seg)
		part := ""
		if cursor < len(digits) {
			part = digits[cursor:min(cursor+width, len(digits))]
		}
		cursor += width

		if r.assigned[seg] {
			continue
		}
		r.assigned[seg] = true
		r.write(seg, part, RolePhone, PassPhoneGroup)
	}
}

func isSegmentCandidate(el dom.Element) bool {
	if el.Tag() != "input" {
		return false
	}
	ml, size := el.MaxLength(), el.Size()
	return ml == 3 || ml == 4 || size == 3 || size == 4
}

// segmentGroup returns the direct input children of parent that can hold
// part of a phone number, in document order.
func segmentGroup(parent dom.Element) []dom.Element {
	var group []dom.Element
	for _, c := range parent.Children() {
		if c.Tag() != "input" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(c.Attr("type"))) {
		case "", "text", "tel", "number":
			group = append(group, c)
		}
	}
	return group
}

// segmentWidth is the declared maxlength capped at 4, defaulting to 4.
func segmentWidth(el dom.Element) int {
	if ml := el.MaxLength(); ml > 0 && ml < 4 {
		return ml
	}
	return 4
}
