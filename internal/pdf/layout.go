package pdf

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// rowTolerance is how far apart two baselines may be and still share a line.
const rowTolerance = 3.0

// Glyph is one positioned piece of text, usually a single character.
type Glyph struct {
	Text     string
	Box      Rect
	Baseline float64
	FontSize float64
}

// Line is a row of glyphs read left to right.
type Line struct {
	Glyphs []Glyph
	Box    Rect

	text  string
	spans []span
}

type span struct {
	start, end int // byte range in text
	glyph      int
}

// Text returns the line's characters with spaces where glyphs are far apart.
func (l *Line) Text() string { return l.text }

// glyphBox builds a glyph box from a baseline origin. Widths reported by some
// CID fonts are unusable, so implausible ones are replaced by an estimate.
func glyphBox(s string, x, baseline, size, width float64) Rect {
	if size <= 0 {
		size = 10
	}
	if width <= 0 || width > 2*size {
		width = size
		if r, _ := utf8.DecodeRuneInString(s); r < 0x2E80 {
			width = size / 2
		}
	}
	return Rect{X0: x, Y0: baseline - 0.8*size, X1: x + width, Y1: baseline + 0.2*size}
}

// buildLines groups glyphs into rows by baseline and orders each row by x,
// top row first.
func buildLines(glyphs []Glyph) []Line {
	sorted := make([]Glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if strings.TrimFunc(g.Text, func(r rune) bool { return r == '\n' || r == '\r' }) == "" {
			continue
		}
		sorted = append(sorted, g)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Baseline < sorted[j].Baseline
	})

	var lines []Line
	for _, g := range sorted {
		n := len(lines)
		if n > 0 && math.Abs(lines[n-1].Glyphs[0].Baseline-g.Baseline) <= rowTolerance {
			lines[n-1].Glyphs = append(lines[n-1].Glyphs, g)
			continue
		}
		lines = append(lines, Line{Glyphs: []Glyph{g}})
	}

	for i := range lines {
		lines[i].finish()
	}
	return lines
}

// finish sorts the row and builds its text and byte-to-glyph spans. A space
// is inserted when the gap between glyphs exceeds a third of the font size.
func (l *Line) finish() {
	sort.SliceStable(l.Glyphs, func(i, j int) bool {
		return l.Glyphs[i].Box.X0 < l.Glyphs[j].Box.X0
	})

	var b strings.Builder
	l.spans = l.spans[:0]
	l.Box = Rect{}
	for i, g := range l.Glyphs {
		if strings.TrimSpace(g.Text) == "" {
			if b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
				b.WriteByte(' ')
			}
			continue
		}
		if i > 0 && b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
			prev := l.Glyphs[i-1]
			if g.Box.X0-prev.Box.X1 > g.FontSize/3 {
				b.WriteByte(' ')
			}
		}
		start := b.Len()
		b.WriteString(g.Text)
		l.spans = append(l.spans, span{start: start, end: b.Len(), glyph: i})
		l.Box = l.Box.Union(g.Box)
	}
	l.text = strings.TrimRightFunc(b.String(), unicode.IsSpace)
}

// boxOf returns the union of glyph boxes covering text[start:end].
func (l *Line) boxOf(start, end int) Rect {
	var box Rect
	for _, sp := range l.spans {
		if sp.end > start && sp.start < end {
			box = box.Union(l.Glyphs[sp.glyph].Box)
		}
	}
	return box
}

// Hit is one occurrence of searched text.
type Hit struct {
	Box       Rect
	LineStart bool // the occurrence is the first text on its line
}

func searchLines(lines []Line, needle string) []Hit {
	if needle == "" {
		return nil
	}
	var hits []Hit
	for i := range lines {
		l := &lines[i]
		for from := 0; from < len(l.text); {
			idx := strings.Index(l.text[from:], needle)
			if idx < 0 {
				break
			}
			idx += from
			hits = append(hits, Hit{
				Box:       l.boxOf(idx, idx+len(needle)),
				LineStart: strings.TrimSpace(l.text[:idx]) == "",
			})
			from = idx + len(needle)
		}
	}
	return hits
}

// textIn returns the text of glyphs whose centers fall inside r, one line
// per row.
func textIn(lines []Line, r Rect) string {
	var rows []string
	for i := range lines {
		var b strings.Builder
		for _, g := range lines[i].Glyphs {
			cx := (g.Box.X0 + g.Box.X1) / 2
			cy := (g.Box.Y0 + g.Box.Y1) / 2
			if r.Contains(cx, cy) {
				b.WriteString(g.Text)
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			rows = append(rows, s)
		}
	}
	return strings.Join(rows, "\n")
}

func joinLines(lines []Line) string {
	parts := make([]string, len(lines))
	for i := range lines {
		parts[i] = lines[i].text
	}
	return strings.Join(parts, "\n")
}
