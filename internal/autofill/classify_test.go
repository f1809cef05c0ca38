package autofill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/dom"
)

func firstElement(t *testing.T, doc *dom.Document) dom.Element {
	t.Helper()
	forms := doc.Forms()
	require.NotEmpty(t, forms)
	require.NotEmpty(t, forms[0].Elements)
	return forms[0].Elements[0]
}

func TestExtractSignature(t *testing.T) {
	doc := parseDoc(t, `
<form>
  <label for="em">  E-Mail Address </label>
  <input id="em" name="UserMail" placeholder="you@Example.com" class="Field Wide"
         aria-label="Your Email" autocomplete="EMAIL">
</form>`)
	el := firstElement(t, doc)

	sig := ExtractSignature(doc, el)
	assert.Equal(t, Signature{
		ID:           "em",
		Name:         "usermail",
		Placeholder:  "you@example.com",
		Class:        "field wide",
		Label:        "e-mail address",
		AriaLabel:    "your email",
		Autocomplete: "email",
	}, sig)
	assert.Len(t, sig.Values(), 7)
}

func TestAssociatedLabel(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"explicit for", `<form><label for="x">Explicit</label><div><input id="x"></div></form>`, "Explicit"},
		{"wrapping label", `<form><label>Wrapped <span><input></span></label></form>`, "Wrapped "},
		{"sibling label", `<form><div><label>Sibling</label><input></div></form>`, "Sibling"},
		{"sibling bound elsewhere still counts", `<form><div><label for="other">Other</label><input></div></form>`, "Other"},
		{"first sibling label wins", `<form><div><label>One</label><label>Two</label><input></div></form>`, "One"},
		{"wrapping stops at form", `<label>Outside<form><input></form></label>`, ""},
		{"explicit beats wrapping", `<form><label for="y">By id</label><label>Wrapper <input id="y"></label></form>`, "By id"},
		{"none", `<form><input></form>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseDoc(t, tt.html)
			els, err := doc.Query("//input")
			require.NoError(t, err)
			require.Len(t, els, 1)
			assert.Equal(t, tt.want, AssociatedLabel(doc, els[0]))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		html string
		want Role
	}{
		{"email keyword", `<input name="user_email">`, RoleEmail},
		{"phone keyword", `<input id="mobileNo">`, RolePhone},
		{"password keyword", `<input name="passcode">`, RolePassword},
		// "password" is evaluated before the confirmation keywords and also matches.
		{"confirm keyword", `<input name="confirm-password">`, RolePassword},
		{"confirm only", `<input name="passwd2">`, RolePassword},
		{"username", `<input name="nickname">`, RoleUsername},
		{"first name", `<input placeholder="Given-Name">`, RoleFirstName},
		{"last name", `<input class="surname">`, RoleLastName},
		{"generic name", `<input aria-label="Display name">`, RoleName},
		{"address", `<input name="addressLine1">`, RoleAddress},
		{"declared email beats keywords", `<input type="email" name="password">`, RoleEmail},
		{"declared tel via autocomplete", `<input name="x" autocomplete="tel">`, RolePhone},
		{"declared password via autocomplete", `<input name="x" autocomplete="current-password">`, RolePassword},
		{"no match", `<input name="coupon">`, RoleNone},
		{"other kind still matched", `<input type="number" name="phone">`, RolePhone},

		// Substring matching has known false positives. They are kept.
		{"hotel holds tel", `<input name="hotel">`, RolePhone},
		{"account radio taken for username", `<input type="radio" name="account_type" value="personal">`, RoleUsername},
		{"csrf state text field is unclassified", `<input name="oauth_state">`, RoleNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseDoc(t, "<form>"+tt.html+"</form>")
			el := firstElement(t, doc)
			assert.Equal(t, tt.want, Classify(el, ExtractSignature(doc, el)))
		})
	}
}

func TestClassify_ConfirmationOnlyKeyword(t *testing.T) {
	// "verifypassword" holds "password", so the password role claims it first;
	// both fields end up with the same value either way.
	assert.True(t, matchesAny([]string{"verifypassword"}, roleKeywords[RolePassword]))
	assert.True(t, matchesAny([]string{"verifypassword"}, roleKeywords[RoleConfirmPassword]))
}

func TestMatchesAny(t *testing.T) {
	assert.True(t, matchesAny([]string{"", "agree-terms"}, consentKeywords))
	assert.True(t, matchesAny([]string{"terms"}, consentKeywords), "exact equality matches")
	assert.False(t, matchesAny([]string{""}, consentKeywords))
	assert.False(t, matchesAny(nil, consentKeywords))
	assert.False(t, matchesAny([]string{"newsletter"}, consentKeywords))
}

func TestMatchOption(t *testing.T) {
	opts := []dom.Option{
		{Text: "", Value: ""},
		{Text: "Canada"},
		{Text: "United States"},
		{Text: "Illinois"},
		{Text: "Narnia", Disabled: true},
	}

	assert.Equal(t, 2, MatchOption(opts, candidatesFor(RoleCountry, "usa")), "alias reached when the token matches nothing")
	assert.Equal(t, 2, MatchOption(opts, []string{"united states of america"}), "option text contained in the token")
	assert.Equal(t, 3, MatchOption(opts, candidatesFor(RoleState, "il")))
	assert.Equal(t, 1, MatchOption(opts, []string{"canada"}))
	assert.Equal(t, -1, MatchOption(opts, []string{"narnia"}), "disabled options are never chosen")
	assert.Equal(t, -1, MatchOption(opts, []string{"germany"}))
	assert.Equal(t, -1, MatchOption(opts, []string{""}))
}

func TestMatchOption_RawTokenBeforeAliases(t *testing.T) {
	opts := []dom.Option{{Text: "United States"}, {Text: "USA"}}
	assert.Equal(t, 1, MatchOption(opts, candidatesFor(RoleCountry, "usa")))

	// The first option containing the token wins, even a surprising one.
	opts = []dom.Option{{Text: "Australia"}, {Text: "United States"}}
	assert.Equal(t, 0, MatchOption(opts, candidatesFor(RoleCountry, "us")))
}

func TestMatchOption_EmptyTextSkipped(t *testing.T) {
	// An empty option text is contained by every token and would always win.
	opts := []dom.Option{{Text: "  ", Value: "none"}, {Text: "Canada"}}
	assert.Equal(t, 1, MatchOption(opts, []string{"canada"}))
}
