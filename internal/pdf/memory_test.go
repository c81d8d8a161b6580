package pdf

import (
	"context"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDocument(t *testing.T) {
	doc, err := NewMemoryDocument("mem.pdf", []MemoryPage{
		{Text: "1.(2)下列何者正確？\n①甲②乙③丙④丁\n2.(1)第二題"},
		{Text: "3.(4)第三題", Drawings: []Rect{{X0: 100, Y0: 100, X1: 200, Y1: 180}}},
	})
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, "mem.pdf", doc.Path())
	assert.Equal(t, 2, doc.NumPages())

	p1, err := doc.Page(1)
	require.NoError(t, err)
	assert.Equal(t, 1, p1.Number())
	assert.Equal(t, "1.(2)下列何者正確？\n①甲②乙③丙④丁\n2.(1)第二題", p1.Text())
	assert.Empty(t, p1.DrawingBoxes())

	hits := p1.Search("2.")
	require.Len(t, hits, 1)
	assert.True(t, hits[0].LineStart)

	p2, err := doc.Page(2)
	require.NoError(t, err)
	assert.Len(t, p2.DrawingBoxes(), 1)
	assert.Empty(t, p2.ImageBoxes())

	_, err = doc.Page(3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPage)
	var docErr *DocumentError
	require.ErrorAs(t, err, &docErr)
	assert.Equal(t, 3, docErr.Page)
}

func TestMemoryPageGrowsToFitText(t *testing.T) {
	text := ""
	for i := 0; i < 100; i++ {
		text += "行\n"
	}
	doc, err := NewMemoryDocument("long.pdf", []MemoryPage{{Text: text}})
	require.NoError(t, err)
	p, err := doc.Page(1)
	require.NoError(t, err)
	_, h := p.Size()
	assert.Greater(t, h, defaultPageHeight)
}

func TestPageRender(t *testing.T) {
	doc, err := NewMemoryDocument("mem.pdf", []MemoryPage{{
		Text:     "1.(1)如下圖所示",
		Drawings: []Rect{{X0: 100, Y0: 100, X1: 200, Y1: 180}},
		Images:   []Rect{{X0: 300, Y0: 100, X1: 400, Y1: 180}},
	}})
	require.NoError(t, err)
	p, err := doc.Page(1)
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("zoomed size", func(t *testing.T) {
		img, err := p.Render(ctx, Rect{X0: 90, Y0: 90, X1: 210, Y1: 190}, 2)
		require.NoError(t, err)
		assert.Equal(t, 240, img.Bounds().Dx())
		assert.Equal(t, 200, img.Bounds().Dy())
	})

	t.Run("draws stroke", func(t *testing.T) {
		img, err := p.Render(ctx, Rect{X0: 90, Y0: 90, X1: 210, Y1: 190}, 1)
		require.NoError(t, err)
		// Left edge of the rectangle at x=100 maps to pixel 10.
		r, g, b, _ := img.At(10, 50).RGBA()
		assert.Less(t, r+g+b, uint32(3*0xf000))
		// Inside the rectangle stays white.
		assert.Equal(t, color.RGBAModel.Convert(color.White), color.RGBAModel.Convert(img.At(50, 50)))
	})

	t.Run("image placeholder", func(t *testing.T) {
		img, err := p.Render(ctx, Rect{X0: 300, Y0: 100, X1: 400, Y1: 180}, 1)
		require.NoError(t, err)
		assert.Equal(t, color.RGBAModel.Convert(placeholderFill), color.RGBAModel.Convert(img.At(50, 40)))
	})

	t.Run("empty region", func(t *testing.T) {
		_, err := p.Render(ctx, Rect{X0: 700, Y0: 100, X1: 800, Y1: 180}, 1)
		assert.ErrorIs(t, err, ErrEmptyRegion)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)
		_, err := p.Render(cctx, Rect{X0: 90, Y0: 90, X1: 210, Y1: 190}, 1)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestDrawingBoxesSkipsWhiteBackground(t *testing.T) {
	p := newPage(1, 595, 842, nil)
	bg := rectPath(Rect{X0: 0, Y0: 0, X1: 595, Y1: 842})
	bg.stroke = false
	bg.fill = true
	bg.fillRGB = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	p.paths = append(p.paths, bg, rectPath(Rect{X0: 10, Y0: 10, X1: 20, Y1: 20}))
	p.forms = []Rect{{X0: 30, Y0: 30, X1: 60, Y1: 60}}

	assert.Equal(t, []Rect{{X0: 10, Y0: 10, X1: 20, Y1: 20}, {X0: 30, Y0: 30, X1: 60, Y1: 60}}, p.DrawingBoxes())
}

func TestContentScannerPaths(t *testing.T) {
	s := newContentScanner(0, 842)
	s.gs.lineWidth = 2

	s.path = append(s.path, pathSeg{kind: segMove, pts: [3]point{s.toPage(point{100, 742})}})
	s.curve(point{150, 792}, point{200, 792}, point{250, 742})
	s.paint(false, true, false, false)

	require.Len(t, s.paths, 1)
	got := s.paths[0]
	assert.True(t, got.stroke)
	assert.Equal(t, Rect{X0: 99, Y0: 49, X1: 251, Y1: 101}, got.box)
	assert.Empty(t, s.path)

	s.paint(true, false, false, true)
	assert.Len(t, s.paths, 1, "painting without a path is ignored")
}

func TestContentScannerUnitSquare(t *testing.T) {
	s := newContentScanner(0, 842)
	s.gs.ctm = matrix{{120, 0, 0}, {0, 80, 0}, {50, 600, 1}}
	assert.Equal(t, Rect{X0: 50, Y0: 162, X1: 170, Y1: 242}, s.unitSquare())
}

func TestColorFrom(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want color.RGBA
		ok   bool
	}{
		{"gray", []float64{0.5}, color.RGBA{R: 128, G: 128, B: 128, A: 255}, true},
		{"rgb", []float64{1, 0, 0}, color.RGBA{R: 255, A: 255}, true},
		{"cmyk black", []float64{0, 0, 0, 1}, color.RGBA{A: 255}, true},
		{"pattern only", nil, color.RGBA{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := colorFrom(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImageFormat(t *testing.T) {
	assert.Equal(t, "JPEG", imageFormat("DCTDecode"))
	assert.Equal(t, "PNG/Deflate", imageFormat("FlateDecode"))
	assert.Equal(t, "raw", imageFormat(""))
	assert.Equal(t, "LZWDecode", imageFormat("LZWDecode"))
}
