package quiz

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const explanationMarker = "解析"

// explanationStart finds the rationale marker. It must start the block,
// follow whitespace or an opening bracket, or be followed by a colon or a
// closing bracket, so words like 解析度 in a stem are skipped while
// "丁解析：" glued to the last option is still found. A bracket in front is
// included in the returned offset.
func explanationStart(block string) int {
	for from := 0; ; {
		idx := strings.Index(block[from:], explanationMarker)
		if idx < 0 {
			return -1
		}
		idx += from
		if idx == 0 {
			return 0
		}
		prev, size := utf8.DecodeLastRuneInString(block[:idx])
		switch {
		case strings.ContainsRune("【[（(", prev):
			return idx - size
		case unicode.IsSpace(prev):
			return idx
		}
		if next, _ := utf8.DecodeRuneInString(block[idx+len(explanationMarker):]); strings.ContainsRune(":：】]", next) {
			return idx
		}
		from = idx + len(explanationMarker)
	}
}

// ExtractExplanation splits a block into the question part and its
// explanation. The explanation runs from after the marker and its punctuation
// to the next question marker or the end, with whitespace collapsed.
func ExtractExplanation(block string) (question, explanation string) {
	start := explanationStart(block)
	if start < 0 {
		return block, ""
	}

	tail := block[start:]
	tail = tail[strings.Index(tail, explanationMarker)+len(explanationMarker):]
	tail = strings.TrimLeftFunc(tail, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(":：】]）)", r)
	})

	for _, mk := range findMarkers(tail) {
		if mk.start > 0 {
			tail = tail[:mk.start]
			break
		}
	}

	return block[:start], truncateRunes(collapseSpace(tail), MaxExplainRunes)
}
