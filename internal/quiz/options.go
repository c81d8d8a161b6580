package quiz

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// Variant names the option notation a block was split with.
type Variant string

const (
	VariantNone     Variant = ""
	VariantCircled  Variant = "circled"
	VariantLettered Variant = "lettered"
)

// SplitResult is the outcome of one strategy. Variant is VariantNone when the
// strategy did not match; Stem and Options are then empty.
type SplitResult struct {
	Variant Variant
	Stem    string
	Options [4]string
}

// Matched reports whether a strategy produced a stem and four options.
func (r SplitResult) Matched() bool {
	return r.Variant != VariantNone
}

// OptionStrategy splits a question body into stem and four options.
type OptionStrategy interface {
	Name() Variant
	Split(body string) SplitResult
}

// DefaultStrategies returns the strategies in the order they are tried.
func DefaultStrategies() []OptionStrategy {
	return []OptionStrategy{CircledStrategy{}, LetteredStrategy{}}
}

// SplitOptions returns the first matching strategy's result.
func SplitOptions(strategies []OptionStrategy, body string) SplitResult {
	for _, s := range strategies {
		if res := s.Split(body); res.Matched() {
			return res
		}
	}
	return SplitResult{}
}

var circledMarks = regexp.MustCompile(`[①②③④]`)

// CircledStrategy splits on ① ② ③ ④.
type CircledStrategy struct{}

// Name implements OptionStrategy.
func (CircledStrategy) Name() Variant { return VariantCircled }

// Split needs exactly one of each circled numeral, so exactly five segments.
func (CircledStrategy) Split(body string) SplitResult {
	locs := circledMarks.FindAllStringIndex(body, -1)
	if len(locs) != 4 {
		return SplitResult{}
	}

	var opts [4]string
	var seen [4]bool
	for i, loc := range locs {
		r, _ := utf8.DecodeRuneInString(body[loc[0]:])
		slot := int(r - '①')
		if seen[slot] {
			return SplitResult{}
		}
		seen[slot] = true

		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		opts[slot] = body[loc[1]:end]
	}

	return finishSplit(VariantCircled, body[:locs[0][0]], opts)
}

var letterMarks = regexp.MustCompile(`[（(]?([A-DＡ-Ｄ])[ \t\x{3000}]*[.．，、)）]`)

// LetteredStrategy splits on A. B. C. D. (also A，/A、/A)/(A) and full-width
// letters).
type LetteredStrategy struct{}

// Name implements OptionStrategy.
func (LetteredStrategy) Name() Variant { return VariantLettered }

// Split picks the first A marker, then the first B after it, and so on. A
// letter glued to a preceding Latin letter or digit is part of a word.
func (LetteredStrategy) Split(body string) SplitResult {
	type mark struct{ start, end int }
	var picked []mark
	want := 'A'

	for _, m := range letterMarks.FindAllStringSubmatchIndex(body, -1) {
		if want > 'D' {
			break
		}
		r, _ := utf8.DecodeRuneInString(body[m[2]:])
		if r >= 'Ａ' && r <= 'Ｄ' {
			r = r - 'Ａ' + 'A'
		}
		if r != want {
			continue
		}
		if prev, _ := utf8.DecodeLastRuneInString(body[:m[0]]); prev < utf8.RuneSelf &&
			(unicode.IsLetter(prev) || unicode.IsDigit(prev)) {
			continue
		}
		picked = append(picked, mark{start: m[0], end: m[1]})
		want++
	}
	if len(picked) < 4 {
		return SplitResult{}
	}

	var opts [4]string
	for i, mk := range picked {
		end := len(body)
		if i+1 < len(picked) {
			end = picked[i+1].start
		}
		opts[i] = body[mk.end:end]
	}

	return finishSplit(VariantLettered, body[:picked[0].start], opts)
}

// finishSplit trims and caps the pieces and rejects empty options.
func finishSplit(v Variant, stem string, opts [4]string) SplitResult {
	res := SplitResult{Variant: v, Stem: truncateRunes(trimSpace(stem), MaxStemRunes)}
	for i, o := range opts {
		o = trimSpace(o)
		if o == "" {
			return SplitResult{}
		}
		res.Options[i] = truncateRunes(o, MaxOptionRunes)
	}
	return res
}
