package extract

import (
	"strings"
	"unicode"
)

// Sanitize normalizes extracted text: control and other non-printable runes
// are dropped, whitespace runs collapse to single spaces, and invalid UTF-8
// sequences are removed rather than surfaced as errors.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case unicode.IsPrint(r):
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// truncate cuts s to at most n runes, appending an ellipsis when content was
// dropped.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "..."
}
