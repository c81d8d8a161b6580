package pdf

import (
	"fmt"
	"image/color"
	"math"
	"strings"
)

// Layout of synthesized memory pages.
const (
	memoryMargin     = 50.0
	memoryFontSize   = 10.0
	memoryLineHeight = 14.0
)

// MemoryPage describes a page built from plain text. Text is laid out top to
// bottom, one row per line, with CJK characters a full em wide and others
// half an em. The page grows to fit long text.
type MemoryPage struct {
	Text     string
	Images   []Rect
	Drawings []Rect
}

// MemoryDocument is a Document held entirely in memory, used for text that
// did not come from a file and for building fixtures.
type MemoryDocument struct {
	name  string
	pages []*Page
}

// NewMemoryDocument lays out the given pages. Rendering uses the built-in
// Go font.
func NewMemoryDocument(name string, pages []MemoryPage) (*MemoryDocument, error) {
	renderer, err := NewRenderer("")
	if err != nil {
		return nil, err
	}

	doc := &MemoryDocument{name: name}
	for i, mp := range pages {
		glyphs := layoutText(mp.Text)
		height := defaultPageHeight
		if n := len(glyphs); n > 0 {
			height = math.Max(height, glyphs[n-1].Box.Y1+memoryMargin)
		}
		page := newPage(i+1, defaultPageWidth, height, glyphs)
		page.renderer = renderer
		for j, box := range mp.Images {
			page.images = append(page.images, ImageInfo{Name: fmt.Sprintf("Im%d", j), Format: "raw", Box: box})
		}
		for _, box := range mp.Drawings {
			page.paths = append(page.paths, rectPath(box))
		}
		doc.pages = append(doc.pages, page)
	}
	return doc, nil
}

func layoutText(text string) []Glyph {
	var glyphs []Glyph
	baseline := memoryMargin + memoryFontSize
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		x := memoryMargin
		for _, r := range line {
			s := string(r)
			box := glyphBox(s, x, baseline, memoryFontSize, 0)
			if r == '\t' {
				box.X1 = x + 2*memoryFontSize
				s = " "
			}
			glyphs = append(glyphs, Glyph{Text: s, Box: box, Baseline: baseline, FontSize: memoryFontSize})
			x = box.X1
		}
		baseline += memoryLineHeight
	}
	return glyphs
}

func rectPath(r Rect) paintedPath {
	corners := []point{{r.X0, r.Y0}, {r.X1, r.Y0}, {r.X1, r.Y1}, {r.X0, r.Y1}}
	segs := []pathSeg{{kind: segMove, pts: [3]point{corners[0]}}}
	for _, c := range corners[1:] {
		segs = append(segs, pathSeg{kind: segLine, pts: [3]point{c}})
	}
	segs = append(segs, pathSeg{kind: segClose})
	black := color.RGBA{A: 0xff}
	return paintedPath{
		segs:      segs,
		stroke:    true,
		strokeRGB: black,
		fillRGB:   black,
		lineWidth: 1,
		box:       r,
	}
}

// Path returns the document name.
func (d *MemoryDocument) Path() string { return d.name }

// NumPages returns the page count.
func (d *MemoryDocument) NumPages() int { return len(d.pages) }

// Page returns the 1-based page n.
func (d *MemoryDocument) Page(n int) (*Page, error) {
	if n < 1 || n > len(d.pages) {
		return nil, &DocumentError{Path: d.name, Op: "page", Page: n, Err: ErrInvalidPage}
	}
	return d.pages[n-1], nil
}

// Close is a no-op.
func (d *MemoryDocument) Close() error { return nil }
