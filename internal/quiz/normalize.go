package quiz

import (
	"regexp"
	"strings"
)

// Normalizer drops header, footer and banner lines from page text.
type Normalizer struct {
	patterns []*regexp.Regexp
}

// NewNormalizer creates a normalizer for the given noise line patterns.
func NewNormalizer(patterns []*regexp.Regexp) *Normalizer {
	return &Normalizer{patterns: patterns}
}

// Normalize removes noise lines one at a time. Lines that open a question are
// always kept, whatever the patterns say.
func (n *Normalizer) Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if n.isNoise(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func (n *Normalizer) isNoise(line string) bool {
	if opensQuestion(line) {
		return false
	}
	for _, p := range n.patterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}
