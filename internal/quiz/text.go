package quiz

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// collapseSpace joins whitespace runs into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// trimSpace trims ASCII and ideographic whitespace.
func trimSpace(s string) string {
	return strings.TrimFunc(s, unicode.IsSpace)
}
