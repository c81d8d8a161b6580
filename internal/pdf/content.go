package pdf

import (
	"image/color"
	"math"

	"github.com/ledongthuc/pdf"
)

// maxFormDepth bounds recursion through nested form XObjects.
const maxFormDepth = 4

// ImageInfo is an image XObject drawn on the page.
type ImageInfo struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Box    Rect   `json:"box"`
}

type segKind byte

const (
	segMove segKind = iota
	segLine
	segCubic
	segClose
)

type pathSeg struct {
	kind segKind
	pts  [3]point // page space
}

// paintedPath is a vector path that was filled or stroked.
type paintedPath struct {
	segs      []pathSeg
	fill      bool
	stroke    bool
	evenOdd   bool
	fillRGB   color.RGBA
	strokeRGB color.RGBA
	lineWidth float64
	box       Rect
}

type graphicsState struct {
	ctm       matrix
	fill      color.RGBA
	stroke    color.RGBA
	lineWidth float64
}

// contentScanner walks a page content stream collecting the vector paths and
// image placements that text extraction ignores.
type contentScanner struct {
	mediaX0, mediaY1 float64

	gs    graphicsState
	saved []graphicsState
	path  []pathSeg
	cur   point // user space
	start point

	paths  []paintedPath
	images []ImageInfo
	forms  []Rect
}

func newContentScanner(mediaX0, mediaY1 float64) *contentScanner {
	black := color.RGBA{A: 0xff}
	return &contentScanner{
		mediaX0: mediaX0,
		mediaY1: mediaY1,
		gs:      graphicsState{ctm: identity, fill: black, stroke: black, lineWidth: 1},
	}
}

// toPage maps a user space point through the CTM into top-left page space.
func (s *contentScanner) toPage(p point) point {
	d := s.gs.ctm.apply(p)
	return point{x: d.x - s.mediaX0, y: s.mediaY1 - d.y}
}

// scan interprets a content stream. Malformed streams make the underlying
// reader panic; whatever was collected before the failure is kept.
func (s *contentScanner) scan(strm, resources pdf.Value, depth int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()

	pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
		n := stk.Len()
		args := make([]pdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		s.do(op, args, resources, depth)
	})
	return nil
}

func nums(args []pdf.Value) []float64 {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		switch a.Kind() {
		case pdf.Integer, pdf.Real:
			out = append(out, a.Float64())
		}
	}
	return out
}

func (s *contentScanner) do(op string, args []pdf.Value, resources pdf.Value, depth int) {
	f := nums(args)
	switch op {
	case "q":
		s.saved = append(s.saved, s.gs)
	case "Q":
		if n := len(s.saved); n > 0 {
			s.gs = s.saved[n-1]
			s.saved = s.saved[:n-1]
		}
	case "cm":
		if len(f) == 6 {
			m := matrix{{f[0], f[1], 0}, {f[2], f[3], 0}, {f[4], f[5], 1}}
			s.gs.ctm = m.mul(s.gs.ctm)
		}
	case "w":
		if len(f) == 1 {
			s.gs.lineWidth = f[0]
		}

	case "g", "G", "rg", "RG", "k", "K", "sc", "SC", "scn", "SCN":
		c, ok := colorFrom(f)
		if !ok {
			return
		}
		if op == "g" || op == "rg" || op == "k" || op == "sc" || op == "scn" {
			s.gs.fill = c
		} else {
			s.gs.stroke = c
		}

	case "m":
		if len(f) == 2 {
			s.cur = point{f[0], f[1]}
			s.start = s.cur
			s.path = append(s.path, pathSeg{kind: segMove, pts: [3]point{s.toPage(s.cur)}})
		}
	case "l":
		if len(f) == 2 {
			s.cur = point{f[0], f[1]}
			s.path = append(s.path, pathSeg{kind: segLine, pts: [3]point{s.toPage(s.cur)}})
		}
	case "c":
		if len(f) == 6 {
			s.curve(point{f[0], f[1]}, point{f[2], f[3]}, point{f[4], f[5]})
		}
	case "v":
		if len(f) == 4 {
			s.curve(s.cur, point{f[0], f[1]}, point{f[2], f[3]})
		}
	case "y":
		if len(f) == 4 {
			end := point{f[2], f[3]}
			s.curve(point{f[0], f[1]}, end, end)
		}
	case "h":
		s.path = append(s.path, pathSeg{kind: segClose})
		s.cur = s.start
	case "re":
		if len(f) == 4 {
			x, y, w, h := f[0], f[1], f[2], f[3]
			corners := []point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
			s.path = append(s.path, pathSeg{kind: segMove, pts: [3]point{s.toPage(corners[0])}})
			for _, c := range corners[1:] {
				s.path = append(s.path, pathSeg{kind: segLine, pts: [3]point{s.toPage(c)}})
			}
			s.path = append(s.path, pathSeg{kind: segClose})
			s.cur, s.start = corners[0], corners[0]
		}

	case "S", "s":
		s.paint(false, true, false, op == "s")
	case "f", "F":
		s.paint(true, false, false, true)
	case "f*":
		s.paint(true, false, true, true)
	case "B", "b":
		s.paint(true, true, false, op == "b")
	case "B*", "b*":
		s.paint(true, true, true, op == "b*")
	case "n":
		s.path = s.path[:0]

	case "Do":
		if len(args) == 1 {
			s.xobject(args[0].Name(), resources, depth)
		}
	}
}

func (s *contentScanner) curve(c1, c2, end point) {
	s.path = append(s.path, pathSeg{
		kind: segCubic,
		pts:  [3]point{s.toPage(c1), s.toPage(c2), s.toPage(end)},
	})
	s.cur = end
}

func (s *contentScanner) paint(fill, stroke, evenOdd, closePath bool) {
	if len(s.path) == 0 {
		return
	}
	segs := make([]pathSeg, len(s.path), len(s.path)+1)
	copy(segs, s.path)
	if closePath && segs[len(segs)-1].kind != segClose {
		segs = append(segs, pathSeg{kind: segClose})
	}
	s.path = s.path[:0]

	box := segsBox(segs)
	lw := s.gs.lineWidth * s.gs.ctm.scale()
	if stroke {
		pad := lw / 2
		box = Rect{X0: box.X0 - pad, Y0: box.Y0 - pad, X1: box.X1 + pad, Y1: box.Y1 + pad}
	}
	s.paths = append(s.paths, paintedPath{
		segs:      segs,
		fill:      fill,
		stroke:    stroke,
		evenOdd:   evenOdd,
		fillRGB:   s.gs.fill,
		strokeRGB: s.gs.stroke,
		lineWidth: lw,
		box:       box,
	})
}

func segsBox(segs []pathSeg) Rect {
	box := Rect{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
	for _, sg := range segs {
		n := 0
		switch sg.kind {
		case segMove, segLine:
			n = 1
		case segCubic:
			n = 3
		}
		for _, p := range sg.pts[:n] {
			box.X0 = math.Min(box.X0, p.x)
			box.Y0 = math.Min(box.Y0, p.y)
			box.X1 = math.Max(box.X1, p.x)
			box.Y1 = math.Max(box.Y1, p.y)
		}
	}
	if math.IsInf(box.X0, 0) {
		return Rect{}
	}
	return box
}

// xobject records an image placement or descends into a form.
func (s *contentScanner) xobject(name string, resources pdf.Value, depth int) {
	obj := resources.Key("XObject").Key(name)
	if obj.IsNull() {
		return
	}
	switch obj.Key("Subtype").Name() {
	case "Image":
		s.images = append(s.images, ImageInfo{
			Name:   name,
			Format: imageFormat(filterName(obj.Key("Filter"))),
			Box:    s.unitSquare(),
		})
	case "Form":
		if depth >= maxFormDepth {
			return
		}
		saved := s.gs
		if m := obj.Key("Matrix"); m.Kind() == pdf.Array && m.Len() == 6 {
			var f [6]float64
			for i := range f {
				f[i] = m.Index(i).Float64()
			}
			fm := matrix{{f[0], f[1], 0}, {f[2], f[3], 0}, {f[4], f[5], 1}}
			s.gs.ctm = fm.mul(s.gs.ctm)
		}
		formRes := obj.Key("Resources")
		if formRes.IsNull() {
			formRes = resources
		}
		before := len(s.paths) + len(s.images)
		_ = s.scan(obj, formRes, depth+1)
		if len(s.paths)+len(s.images) == before {
			if b := obj.Key("BBox"); b.Kind() == pdf.Array && b.Len() == 4 {
				s.forms = append(s.forms, s.transformBox(
					b.Index(0).Float64(), b.Index(1).Float64(),
					b.Index(2).Float64(), b.Index(3).Float64()))
			}
		}
		s.gs = saved
	}
}

func (s *contentScanner) unitSquare() Rect {
	return s.transformBox(0, 0, 1, 1)
}

func (s *contentScanner) transformBox(x0, y0, x1, y1 float64) Rect {
	first := s.toPage(point{x0, y0})
	box := Rect{X0: first.x, Y0: first.y, X1: first.x, Y1: first.y}
	for _, c := range []point{{x1, y0}, {x1, y1}, {x0, y1}} {
		p := s.toPage(c)
		box.X0 = math.Min(box.X0, p.x)
		box.Y0 = math.Min(box.Y0, p.y)
		box.X1 = math.Max(box.X1, p.x)
		box.Y1 = math.Max(box.Y1, p.y)
	}
	return box
}

func colorFrom(f []float64) (color.RGBA, bool) {
	clamp := func(v float64) uint8 {
		return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	switch len(f) {
	case 1:
		g := clamp(f[0])
		return color.RGBA{R: g, G: g, B: g, A: 0xff}, true
	case 3:
		return color.RGBA{R: clamp(f[0]), G: clamp(f[1]), B: clamp(f[2]), A: 0xff}, true
	case 4:
		k := 1 - f[3]
		return color.RGBA{
			R: clamp((1 - f[0]) * k),
			G: clamp((1 - f[1]) * k),
			B: clamp((1 - f[2]) * k),
			A: 0xff,
		}, true
	}
	return color.RGBA{}, false
}

// filterName returns the last filter of a filter pipeline, the one that
// determines the decoded format.
func filterName(v pdf.Value) string {
	if v.Kind() == pdf.Array {
		if n := v.Len(); n > 0 {
			return v.Index(n - 1).Name()
		}
		return ""
	}
	return v.Name()
}
