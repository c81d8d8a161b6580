// Package imaging locates figure regions for image-bearing questions, crops
// them out of the page, and checks each crop against the question text.
package imaging

import (
	"context"
	"sort"
	"strconv"

	"github.com/a3tai/exam-pdf-importer/internal/pdf"
)

// DefaultMaxQuestion is the highest question number the anchor scan tries.
const DefaultMaxQuestion = 200

// Vertical geometry of a question band, in points.
const (
	anchorTopPad    = 4.0
	anchorBottomGap = 2.0
	fallbackHeight  = 220.0
)

// Anchor is the position of a question marker on its page.
type Anchor struct {
	Page   int
	QNo    int
	Box    pdf.Rect // the marker text
	YStart float64
	YEnd   float64
}

type anchorKey struct{ page, qno int }

// AnchorIndex maps (page, question number) to marker positions.
type AnchorIndex struct {
	anchors map[anchorKey]Anchor
	first   map[int]int // qno -> lowest page holding it
}

// Lookup returns the anchor of qno on page, or on the first page holding
// qno when page is 0.
func (ix *AnchorIndex) Lookup(page, qno int) (Anchor, bool) {
	if page == 0 {
		p, ok := ix.first[qno]
		if !ok {
			return Anchor{}, false
		}
		page = p
	}
	a, ok := ix.anchors[anchorKey{page, qno}]
	return a, ok
}

// Len returns the number of anchors.
func (ix *AnchorIndex) Len() int { return len(ix.anchors) }

// BuildAnchorIndex scans every page for question markers "<n>." or "<n>．"
// beginning a line, n from 1 to maxQ. The topmost line-start hit wins. Each
// anchor's band runs from just above it to just above the next anchor on the
// page, or a fixed height when it is the last one.
func BuildAnchorIndex(ctx context.Context, doc pdf.Document, maxQ int) (*AnchorIndex, error) {
	if maxQ <= 0 {
		maxQ = DefaultMaxQuestion
	}
	ix := &AnchorIndex{
		anchors: make(map[anchorKey]Anchor),
		first:   make(map[int]int),
	}

	for n := 1; n <= doc.NumPages(); n++ {
		page, err := doc.Page(n)
		if err != nil {
			// A page that cannot be parsed holds no anchors.
			continue
		}
		var found []Anchor
		for q := 1; q <= maxQ; q++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if box, ok := markerBox(page, q); ok {
				found = append(found, Anchor{Page: n, QNo: q, Box: box})
			}
		}

		sort.Slice(found, func(i, j int) bool { return found[i].Box.Y0 < found[j].Box.Y0 })
		_, height := page.Size()
		for i := range found {
			a := &found[i]
			a.YStart = a.Box.Y0 - anchorTopPad
			if i+1 < len(found) {
				a.YEnd = found[i+1].Box.Y0 - anchorBottomGap
			} else {
				a.YEnd = a.Box.Y0 + fallbackHeight
			}
			if a.YStart < 0 {
				a.YStart = 0
			}
			if a.YEnd > height {
				a.YEnd = height
			}
			ix.anchors[anchorKey{n, a.QNo}] = *a
			if _, ok := ix.first[a.QNo]; !ok {
				ix.first[a.QNo] = n
			}
		}
	}
	return ix, nil
}

func markerBox(page *pdf.Page, q int) (pdf.Rect, bool) {
	num := strconv.Itoa(q)
	var best pdf.Rect
	found := false
	for _, needle := range []string{num + ".", num + "．"} {
		for _, hit := range page.Search(needle) {
			if !hit.LineStart {
				continue
			}
			if !found || hit.Box.Y0 < best.Y0 {
				best = hit.Box
				found = true
			}
		}
	}
	return best, found
}
