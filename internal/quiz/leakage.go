package quiz

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// minHeaderOffset keeps a header phrase at the very start of a piece from
// wiping the piece out.
const minHeaderOffset = 2

// nextQuestion is the opening of the following question run into this one,
// e.g. " 13. (1)". The whitespace in front and the answer digit are required,
// so enumerations such as " 1.甲材料" inside a stem are left alone.
var nextQuestion = regexp.MustCompile(`[\s\x{3000}]+\d{1,3}[.．]\s*[（(]\s*[1-4①-④]\s*[)）]`)

// Trimmer removes trailing text that belongs to the next question or to a
// repeated page header.
type Trimmer struct {
	headers []string
}

// NewTrimmer creates a trimmer for the given cross-page header phrases.
func NewTrimmer(headers []string) *Trimmer {
	return &Trimmer{headers: headers}
}

// Trim truncates text at the earliest of the first next-question marker and
// the first header phrase past the minimum offset. When something was cut it
// returns the start of the removed text as a snippet and cut is true.
func (t *Trimmer) Trim(text string) (kept, snippet string, cut bool) {
	pos := -1

	if loc := nextQuestion.FindStringIndex(text); loc != nil {
		pos = loc[0]
	}

	for _, h := range t.headers {
		if h == "" {
			continue
		}
		idx := indexFrom(text, h, minHeaderOffset)
		if idx >= 0 && (pos < 0 || idx < pos) {
			pos = idx
		}
	}

	if pos < 0 {
		return text, "", false
	}
	return trimSpace(text[:pos]), truncateRunes(trimSpace(text[pos:]), MaxSnippetRunes), true
}

// indexFrom finds sub in s starting at rune offset from.
func indexFrom(s, sub string, from int) int {
	start := 0
	for i := 0; i < from && start < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[start:])
		start += size
	}
	idx := strings.Index(s[start:], sub)
	if idx < 0 {
		return -1
	}
	return start + idx
}
