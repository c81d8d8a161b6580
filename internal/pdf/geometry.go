package pdf

import "math"

// Rect is an axis-aligned box in page space: points, origin at the top-left
// corner of the page, y growing downwards.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width of the box.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height of the box.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Empty reports whether the box has no area.
func (r Rect) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// Intersects reports whether two boxes overlap with positive area.
func (r Rect) Intersects(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

// Union returns the smallest box holding both. An empty receiver is ignored.
func (r Rect) Union(o Rect) Rect {
	if r == (Rect{}) {
		return o
	}
	return Rect{
		X0: math.Min(r.X0, o.X0),
		Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
	}
}

// Clamp limits the box to a page of the given size.
func (r Rect) Clamp(width, height float64) Rect {
	return Rect{
		X0: math.Max(0, math.Min(r.X0, width)),
		Y0: math.Max(0, math.Min(r.Y0, height)),
		X1: math.Max(0, math.Min(r.X1, width)),
		Y1: math.Max(0, math.Min(r.Y1, height)),
	}
}

// Contains reports whether the point lies inside the box.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X0 && x <= r.X1 && y >= r.Y0 && y <= r.Y1
}

// point is a position in PDF user space.
type point struct{ x, y float64 }

// matrix is a PDF transformation matrix [a b 0; c d 0; e f 1].
type matrix [3][3]float64

var identity = matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func (m matrix) mul(o matrix) matrix {
	var r matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				r[i][j] += m[i][k] * o[k][j]
			}
		}
	}
	return r
}

func (m matrix) apply(p point) point {
	return point{
		x: m[0][0]*p.x + m[1][0]*p.y + m[2][0],
		y: m[0][1]*p.x + m[1][1]*p.y + m[2][1],
	}
}

// scale is the mean stretch of the matrix, used for line widths.
func (m matrix) scale() float64 {
	sx := math.Hypot(m[0][0], m[0][1])
	sy := math.Hypot(m[1][0], m[1][1])
	return (sx + sy) / 2
}
