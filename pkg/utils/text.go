package utils

import (
	"strings"
	"unicode"
)

// Snippet returns the first maxRunes runes of s with whitespace collapsed,
// appending "..." when the text was cut. If maxRunes is 0 or negative, returns
// s unchanged.
func Snippet(s string, maxRunes int) string {
	s = CollapseWhitespace(s)
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return strings.TrimRight(string(runes[:maxRunes]), " ") + "..."
}

// CollapseWhitespace trims s and replaces runs of whitespace with single spaces.
func CollapseWhitespace(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	wasSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
