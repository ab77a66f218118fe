package termui

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

const maxTextLen = 10000

// Inbound text is shown as plain text: no markup, no terminal control codes.
var textPolicy = bluemonday.StrictPolicy()

// Sanitize strips HTML tags and control characters from inbound text and
// caps it at maxTextLen runes. Tabs and newlines survive.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(textPolicy.Sanitize(s))

	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' && r != '\n' {
			continue
		}
		if r == unicode.ReplacementChar {
			continue
		}
		if n == maxTextLen {
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}
