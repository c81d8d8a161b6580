package imaging

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Calibration snippet sizes, in runes.
const (
	snippetWindow = 8
	snippetSpan   = 15
	maxGotRunes   = 80
)

// normalizeForMatch folds compatibility forms and drops all whitespace.
func normalizeForMatch(s string) string {
	s = norm.NFKC.String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// stemSnippet returns the first runes of the normalized stem, or "" when the
// stem is too short to calibrate against.
func stemSnippet(stem string) string {
	r := []rune(normalizeForMatch(stem))
	if len(r) < snippetWindow {
		return ""
	}
	if len(r) > snippetSpan {
		r = r[:snippetSpan]
	}
	return string(r)
}

// calibrated reports whether some window of the snippet appears in the text
// recovered from the crop.
func calibrated(snippet, regionText string) bool {
	region := normalizeForMatch(regionText)
	r := []rune(snippet)
	for i := 0; i+snippetWindow <= len(r); i++ {
		if strings.Contains(region, string(r[i:i+snippetWindow])) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
