// File: internal/mail/extract.go
package mail

import (
	"html"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	sixDigitCode  = regexp.MustCompile(`\b\d{6}\b`)
	fourDigitCode = regexp.MustCompile(`\b\d{4}\b`)
	linkPattern   = regexp.MustCompile(`https?://\S+`)
)

// notFoundExcerpt is how much message text is quoted when no code is found.
const notFoundExcerpt = 200

// ExtractCode finds the verification code in msg: a 6-digit number, then a
// 4-digit number, then the first http(s) link. When nothing matches it
// returns a description quoting the start of the text and found=false.
func ExtractCode(msg *Message) (code string, found bool) {
	if msg == nil {
		return NotFoundMessage(""), false
	}

	text := msg.Text
	if strings.TrimSpace(text) == "" {
		text = PlainText(msg.HTML)
	}

	for _, re := range []*regexp.Regexp{sixDigitCode, fourDigitCode, linkPattern} {
		if m := re.FindString(text); m != "" {
			return m, true
		}
	}
	if link := firstLink(msg.HTML); link != "" {
		return link, true
	}
	return NotFoundMessage(text), false
}

// NotFoundMessage quotes the first characters of text.
func NotFoundMessage(text string) string {
	r := []rune(text)
	if len(r) > notFoundExcerpt {
		r = r[:notFoundExcerpt]
	}
	return "No verification code found in the message. Full text: " + string(r) + "..."
}

// PlainText strips every tag from the HTML parts and joins them.
func PlainText(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)

	var b strings.Builder
	for _, part := range parts {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(html.UnescapeString(p.Sanitize(part)))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// firstLink returns the first http(s) anchor target in the HTML parts.
func firstLink(parts []string) string {
	for _, part := range parts {
		doc, err := htmlquery.Parse(strings.NewReader(part))
		if err != nil {
			continue
		}
		for _, a := range htmlquery.Find(doc, "//a[@href]") {
			href := strings.TrimSpace(htmlquery.SelectAttr(a, "href"))
			if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
				return href
			}
		}
	}
	return ""
}
