package pdf

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"sync"

	"github.com/ledongthuc/pdf"
)

const (
	defaultPageWidth  = 595.0
	defaultPageHeight = 842.0
)

// Document is a source of pages. Implementations are not required to be
// safe for concurrent use.
type Document interface {
	Path() string
	NumPages() int
	// Page returns the 1-based page n.
	Page(n int) (*Page, error)
	Close() error
}

// Page is the parsed content of one page: positioned text, image placements
// and painted vector paths, all in top-left page space.
type Page struct {
	number        int
	width, height float64
	lines         []Line
	text          string
	images        []ImageInfo
	paths         []paintedPath
	forms         []Rect

	renderer *Renderer
	rasters  func() map[string]image.Image
}

func newPage(number int, width, height float64, glyphs []Glyph) *Page {
	lines := buildLines(glyphs)
	return &Page{
		number: number,
		width:  width,
		height: height,
		lines:  lines,
		text:   joinLines(lines),
	}
}

// Number is the 1-based page number.
func (p *Page) Number() int { return p.number }

// Size returns the page width and height in points.
func (p *Page) Size() (width, height float64) { return p.width, p.height }

// Text returns the page text, one line per row.
func (p *Page) Text() string { return p.text }

// Lines returns the text rows, top first.
func (p *Page) Lines() []Line { return p.lines }

// Images returns the raster images placed on the page.
func (p *Page) Images() []ImageInfo { return p.images }

// ImageBoxes returns the boxes of placed raster images.
func (p *Page) ImageBoxes() []Rect {
	boxes := make([]Rect, 0, len(p.images))
	for _, img := range p.images {
		boxes = append(boxes, img.Box)
	}
	return boxes
}

// DrawingBoxes returns the boxes of visible vector drawings and of form
// XObjects that drew nothing else we could see. White fills without a
// stroke are page backgrounds and are left out.
func (p *Page) DrawingBoxes() []Rect {
	boxes := make([]Rect, 0, len(p.paths)+len(p.forms))
	for _, path := range p.paths {
		if !path.stroke && isWhite(path.fillRGB) {
			continue
		}
		boxes = append(boxes, path.box)
	}
	return append(boxes, p.forms...)
}

// Search finds every literal occurrence of needle.
func (p *Page) Search(needle string) []Hit {
	return searchLines(p.lines, needle)
}

// TextInRect returns the text whose glyph centers fall inside r.
func (p *Page) TextInRect(r Rect) string {
	return textIn(p.lines, r)
}

// Render rasterizes the region r at the given zoom.
func (p *Page) Render(ctx context.Context, r Rect, zoom float64) (img image.Image, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = recovered(rec)
		}
	}()

	if p.renderer == nil {
		return nil, fmt.Errorf("page %d has no renderer", p.number)
	}
	var rasters map[string]image.Image
	if p.rasters != nil && len(p.images) > 0 {
		rasters = p.rasters()
	}
	return p.renderer.render(ctx, p, r, zoom, rasters)
}

func isWhite(c color.RGBA) bool {
	return c.R > 0xf0 && c.G > 0xf0 && c.B > 0xf0
}

// FileDocument reads pages from a PDF on disk. Text and glyph positions come
// from the content stream interpreter of ledongthuc/pdf; embedded images are
// decoded through pdfcpu only when a region is rendered.
type FileDocument struct {
	path     string
	file     *os.File
	reader   *pdf.Reader
	renderer *Renderer

	pages   *pageCache[int, *Page]
	rasters *pageCache[int, map[string]image.Image]

	mu     sync.Mutex
	closed bool

	// loadMu serializes parsing; a page abandoned after a timeout may still
	// be reading the file.
	loadMu sync.Mutex
}

// Open opens the PDF at path.
func Open(path string, opts Options) (doc *FileDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DocumentError{Path: path, Op: "open", Err: recovered(r)}
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, &DocumentError{Path: path, Op: "open", Err: err}
	}
	renderer, err := NewRenderer(opts.FontPath)
	if err != nil {
		f.Close()
		return nil, &DocumentError{Path: path, Op: "open", Err: err}
	}

	return &FileDocument{
		path:     path,
		file:     f,
		reader:   r,
		renderer: renderer,
		pages:    newPageCache[int, *Page](opts.CacheSize),
		rasters:  newPageCache[int, map[string]image.Image](2),
	}, nil
}

// Path of the underlying file.
func (d *FileDocument) Path() string { return d.path }

// NumPages returns the page count.
func (d *FileDocument) NumPages() int { return d.reader.NumPage() }

// CacheStats reports the parsed page cache.
func (d *FileDocument) CacheStats() CacheStats { return d.pages.stats() }

// Page parses page n, or returns it from the cache.
func (d *FileDocument) Page(n int) (*Page, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, &DocumentError{Path: d.path, Op: "page", Page: n, Err: ErrDocumentClosed}
	}
	if n < 1 || n > d.reader.NumPage() {
		return nil, &DocumentError{
			Path: d.path,
			Op:   "page",
			Page: n,
			Err:  fmt.Errorf("%w (document has %d pages)", ErrInvalidPage, d.reader.NumPage()),
		}
	}
	d.loadMu.Lock()
	defer d.loadMu.Unlock()
	if p, ok := d.pages.get(n); ok {
		return p, nil
	}

	p, err := d.loadPage(n)
	if err != nil {
		return nil, &DocumentError{Path: d.path, Op: "page", Page: n, Err: err}
	}
	d.pages.put(n, p)
	return p, nil
}

func (d *FileDocument) loadPage(n int) (page *Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()

	lp := d.reader.Page(n)
	if lp.V.IsNull() {
		return nil, fmt.Errorf("%w: page object missing", ErrInvalidPage)
	}

	x0, y0, x1, y1 := mediaBox(lp)
	width, height := x1-x0, y1-y0

	content := lp.Content()
	glyphs := make([]Glyph, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		size := math.Abs(t.FontSize)
		x := t.X - x0
		baseline := y1 - t.Y
		glyphs = append(glyphs, Glyph{
			Text:     t.S,
			Box:      glyphBox(t.S, x, baseline, size, t.W),
			Baseline: baseline,
			FontSize: size,
		})
	}

	page = newPage(n, width, height, glyphs)
	page.renderer = d.renderer
	page.rasters = func() map[string]image.Image { return d.pageRasters(n) }

	scanner := newContentScanner(x0, y1)
	// Graphics are best effort; a stream the scanner cannot finish still
	// yields its text.
	_ = scanner.scan(lp.V.Key("Contents"), lp.Resources(), 0)
	page.paths = scanner.paths
	page.images = scanner.images
	page.forms = scanner.forms

	return page, nil
}

func (d *FileDocument) pageRasters(n int) map[string]image.Image {
	if imgs, ok := d.rasters.get(n); ok {
		return imgs
	}
	imgs, err := loadPageImages(d.path, n)
	if err != nil {
		imgs = map[string]image.Image{}
	}
	d.rasters.put(n, imgs)
	return imgs
}

// maxTreeDepth bounds the walk up the page tree on malformed Parent chains.
const maxTreeDepth = 32

// inherited looks key up on the page and then on its ancestors in the page
// tree, as MediaBox and the other inheritable attributes are resolved.
func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; !v.IsNull() && depth < maxTreeDepth; depth++ {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

func mediaBox(p pdf.Page) (x0, y0, x1, y1 float64) {
	box := inherited(p.V, "MediaBox")
	if box.Kind() != pdf.Array || box.Len() != 4 {
		return 0, 0, defaultPageWidth, defaultPageHeight
	}
	x0, y0 = box.Index(0).Float64(), box.Index(1).Float64()
	x1, y1 = box.Index(2).Float64(), box.Index(3).Float64()
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	if x1-x0 <= 0 || y1-y0 <= 0 {
		return 0, 0, defaultPageWidth, defaultPageHeight
	}
	return x0, y0, x1, y1
}

// Close releases the file.
func (d *FileDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.file.Close()
}
