package quiz

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// answerPattern is the "<n>. (<d>)" fragment that opens a block. It is read
// as an annotation only; segmentation never depends on it.
var answerPattern = regexp.MustCompile(
	`^[ \t\x{3000}]*\d{1,3}[ \t\x{3000}]*[.．][ \t\x{3000}]*[（(][ \t\x{3000}]*([1-4①②③④])[ \t\x{3000}]*[)）]`)

// headerPattern is the same fragment with the answer part optional.
var headerPattern = regexp.MustCompile(
	`^[ \t\x{3000}]*\d{1,3}[ \t\x{3000}]*[.．](?:[ \t\x{3000}]*[（(][ \t\x{3000}]*[1-4①②③④][ \t\x{3000}]*[)）])?[ \t\x{3000}]*`)

// Answer is the declared correct option. Known is false when the block
// carries no usable answer marker.
type Answer struct {
	Index int
	Known bool
}

// ExtractAnswer reads the 0-based answer index from the start of a block.
func ExtractAnswer(block string) Answer {
	m := answerPattern.FindStringSubmatch(block)
	if m == nil {
		return Answer{}
	}
	switch m[1] {
	case "1", "①":
		return Answer{Index: 0, Known: true}
	case "2", "②":
		return Answer{Index: 1, Known: true}
	case "3", "③":
		return Answer{Index: 2, Known: true}
	case "4", "④":
		return Answer{Index: 3, Known: true}
	}
	return Answer{}
}

// stripHeader removes a leading "<n>.(<d>)" fragment if present. A leading
// decimal such as "1.5公尺" is left alone.
func stripHeader(s string) string {
	loc := headerPattern.FindStringIndex(s)
	if loc == nil {
		return s
	}
	head := s[:loc[1]]
	dot := strings.IndexAny(head, ".．")
	_, size := utf8.DecodeRuneInString(head[dot:])
	if r, _ := utf8.DecodeRuneInString(s[dot+size:]); r >= '0' && r <= '9' {
		return s
	}
	return s[loc[1]:]
}
