package quiz

import (
	"iter"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// questionMarker matches a line that opens a question: up to three digits and
// a period, optionally followed by the answer digit in parentheses.
var questionMarker = regexp.MustCompile(
	`(?m)^[ \t\x{3000}]*(\d{1,3})[.．](?:[ \t\x{3000}]*[（(][ \t\x{3000}]*[1-4①-④][ \t\x{3000}]*[)）])?`)

type marker struct {
	start int
	qno   string
}

// findMarkers returns question markers in document order. A period followed
// by a digit is a decimal number, not a question index.
func findMarkers(text string) []marker {
	var out []marker
	for _, m := range questionMarker.FindAllStringSubmatchIndex(text, -1) {
		digitsStart, periodEnd := m[2], m[3]+len("．")
		if text[m[3]] == '.' {
			periodEnd = m[3] + 1
		}
		if next, _ := utf8.DecodeRuneInString(text[periodEnd:]); next >= '0' && next <= '9' {
			continue
		}
		n, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		out = append(out, marker{start: digitsStart, qno: strconv.Itoa(n)})
	}
	return out
}

// opensQuestion reports whether line begins with a question marker.
func opensQuestion(line string) bool {
	return len(findMarkers(line)) > 0
}

// Segment splits text into question blocks, one per marker, each running to
// the next marker or the end of text. A block must be longer than
// minBlockRunes; shorter ones are dropped as false positives. page is 0 for whole-document text.
func Segment(text string, page int) iter.Seq[Block] {
	return func(yield func(Block) bool) {
		markers := findMarkers(text)
		for i, mk := range markers {
			end := len(text)
			if i+1 < len(markers) {
				end = markers[i+1].start
			}
			raw := strings.TrimSpace(text[mk.start:end])
			if utf8.RuneCountInString(raw) <= minBlockRunes {
				continue
			}
			if !yield(Block{QNo: mk.qno, Page: page, Text: raw}) {
				return
			}
		}
	}
}
