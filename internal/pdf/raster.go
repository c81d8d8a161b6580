package pdf

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// maxRenderPixels caps the area of a single rendered region.
const maxRenderPixels = 4096 * 4096

var placeholderFill = color.RGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}

// Renderer rasterizes page regions: vector paths, placed images and text.
type Renderer struct {
	font *truetype.Font

	mu    sync.Mutex
	faces map[int]font.Face
}

// NewRenderer loads the TrueType font at fontPath, or the built-in Go font
// when the path is empty.
func NewRenderer(fontPath string) (*Renderer, error) {
	data := goregular.TTF
	if fontPath != "" {
		b, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read font: %w", err)
		}
		data = b
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &Renderer{font: f, faces: make(map[int]font.Face)}, nil
}

// face returns a cached face for a pixel size rounded to a half pixel.
func (r *Renderer) face(px float64) font.Face {
	key := int(math.Round(px * 2))
	if key < 2 {
		key = 2
	}
	if f, ok := r.faces[key]; ok {
		return f
	}
	f := truetype.NewFace(r.font, &truetype.Options{
		Size:    float64(key) / 2,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	r.faces[key] = f
	return f
}

// render draws the clip region of a page at the given zoom. rasters maps
// image resource names to decoded images; unknown images are drawn as grey
// boxes.
func (r *Renderer) render(ctx context.Context, p *Page, clip Rect, zoom float64, rasters map[string]image.Image) (image.Image, error) {
	if zoom <= 0 {
		zoom = 1
	}
	clip = clip.Clamp(p.width, p.height)
	if clip.Empty() {
		return nil, ErrEmptyRegion
	}
	w := int(math.Ceil(clip.Width() * zoom))
	h := int(math.Ceil(clip.Height() * zoom))
	if w*h > maxRenderPixels {
		return nil, fmt.Errorf("render region too large: %dx%d", w, h)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	toPx := func(x, y float64) (float64, float64) {
		return (x - clip.X0) * zoom, (y - clip.Y0) * zoom
	}

	for i, path := range p.paths {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !path.box.Intersects(clip) {
			continue
		}
		drawPath(dc, path, toPx, zoom)
	}

	dst, _ := dc.Image().(*image.RGBA)
	for _, pl := range p.images {
		if !pl.Box.Intersects(clip) {
			continue
		}
		x0, y0 := toPx(pl.Box.X0, pl.Box.Y0)
		x1, y1 := toPx(pl.Box.X1, pl.Box.Y1)
		target := image.Rect(int(x0), int(y0), int(math.Ceil(x1)), int(math.Ceil(y1)))
		if src, ok := rasters[pl.Name]; ok && dst != nil {
			draw.CatmullRom.Scale(dst, target, src, src.Bounds(), draw.Over, nil)
			continue
		}
		dc.SetColor(placeholderFill)
		dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
		dc.Fill()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dc.SetColor(color.Black)
	for i := range p.lines {
		if !p.lines[i].Box.Intersects(clip) {
			continue
		}
		for _, g := range p.lines[i].Glyphs {
			if !g.Box.Intersects(clip) {
				continue
			}
			dc.SetFontFace(r.face(g.FontSize * zoom))
			x, y := toPx(g.Box.X0, g.Baseline)
			dc.DrawString(g.Text, x, y)
		}
	}

	return dc.Image(), nil
}

func drawPath(dc *gg.Context, path paintedPath, toPx func(x, y float64) (float64, float64), zoom float64) {
	for _, sg := range path.segs {
		switch sg.kind {
		case segMove:
			dc.MoveTo(toPx(sg.pts[0].x, sg.pts[0].y))
		case segLine:
			dc.LineTo(toPx(sg.pts[0].x, sg.pts[0].y))
		case segCubic:
			x1, y1 := toPx(sg.pts[0].x, sg.pts[0].y)
			x2, y2 := toPx(sg.pts[1].x, sg.pts[1].y)
			x3, y3 := toPx(sg.pts[2].x, sg.pts[2].y)
			dc.CubicTo(x1, y1, x2, y2, x3, y3)
		case segClose:
			dc.ClosePath()
		}
	}

	if path.evenOdd {
		dc.SetFillRule(gg.FillRuleEvenOdd)
	} else {
		dc.SetFillRule(gg.FillRuleWinding)
	}
	if path.fill {
		dc.SetColor(path.fillRGB)
		if path.stroke {
			dc.FillPreserve()
		} else {
			dc.Fill()
		}
	}
	if path.stroke {
		dc.SetColor(path.strokeRGB)
		dc.SetLineWidth(math.Max(1, path.lineWidth*zoom))
		dc.Stroke()
	}
	dc.ClearPath()
}
