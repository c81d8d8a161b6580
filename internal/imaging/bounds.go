package imaging

import (
	"math"

	"github.com/a3tai/exam-pdf-importer/internal/pdf"
)

// Horizontal geometry of a crop.
const (
	lineTolerance   = 3.0
	markerPad       = 1.0
	leftFraction    = 0.14
	forcedFraction  = 0.08
	rightFraction   = 0.96
	hairlineMaxSize = 1.5
)

// answerMarkers are the printed answer parentheticals on an anchor line.
var answerMarkers = []string{
	"(1)", "(2)", "(3)", "(4)",
	"（1）", "（2）", "（3）", "（4）",
}

// cropBounds computes the crop rectangle for an anchor. The left edge sits
// just right of the answer parenthetical on the anchor line so the printed
// answer never lands in the image; without one it falls back to a fixed
// fraction of the page width, narrower when force-rendering.
func cropBounds(page *pdf.Page, a Anchor, force bool) pdf.Rect {
	width, height := page.Size()

	left := -1.0
	anchorMid := (a.Box.Y0 + a.Box.Y1) / 2
	for _, m := range answerMarkers {
		for _, hit := range page.Search(m) {
			mid := (hit.Box.Y0 + hit.Box.Y1) / 2
			if math.Abs(mid-anchorMid) > lineTolerance {
				continue
			}
			left = math.Max(left, hit.Box.X1+markerPad)
		}
	}
	if left < 0 {
		left = fallbackLeft(width, force)
	}

	return pdf.Rect{
		X0: left,
		Y0: a.YStart,
		X1: rightFraction * width,
		Y1: a.YEnd,
	}.Clamp(width, height)
}

// fixedCrop is the anchor-independent horizontal span used when the precise
// crop failed, over the anchor's band.
func fixedCrop(page *pdf.Page, a Anchor) pdf.Rect {
	width, height := page.Size()
	return pdf.Rect{
		X0: fallbackLeft(width, true),
		Y0: a.YStart,
		X1: rightFraction * width,
		Y1: a.YEnd,
	}.Clamp(width, height)
}

func fallbackLeft(width float64, force bool) float64 {
	if force {
		return forcedFraction * width
	}
	return leftFraction * width
}

// hasGraphic reports whether a raster image or a vector drawing overlaps r.
// Hairline rules such as underlines and table borders do not count.
func hasGraphic(page *pdf.Page, r pdf.Rect) bool {
	for _, box := range page.ImageBoxes() {
		if box.Intersects(r) {
			return true
		}
	}
	for _, box := range page.DrawingBoxes() {
		if math.Min(box.Width(), box.Height()) < hairlineMaxSize {
			continue
		}
		if box.Intersects(r) {
			return true
		}
	}
	return false
}
