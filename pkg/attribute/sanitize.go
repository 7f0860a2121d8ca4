package attribute

import "strings"

// Sanitize turns s into a valid engine variable name: every character outside
// [A-Za-z0-9_] becomes '_' and a leading digit gets a '_' prefix. It reports false for
// an empty input.
func Sanitize(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	var b strings.Builder
	b.Grow(len(s) + 1)
	if s[0] >= '0' && s[0] <= '9' {
		b.WriteByte('_')
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String(), true
}
