package imaging

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/a3tai/exam-pdf-importer/internal/keywords"
	"github.com/a3tai/exam-pdf-importer/internal/pdf"
	"github.com/a3tai/exam-pdf-importer/internal/quiz"
	"github.com/a3tai/exam-pdf-importer/internal/stability"
)

// Decision is the terminal state of an image-bearing question.
type Decision string

const (
	DecisionRendered Decision = "rendered"
	DecisionForced   Decision = "forced_by_keywords"
	DecisionSkipped  Decision = "skipped_no_graphic"
	DecisionFailed   Decision = "failed"
)

// Diagnostic reasons.
const (
	ReasonIndexMissing    = "index_missing"
	ReasonRenderFailed    = "render_failed"
	ReasonCalibrationFail = "calibration_fail"
)

// AssetAlt is the alt text of every rendered figure.
const AssetAlt = "題目附圖"

// Defaults for Config fields left zero.
const (
	DefaultZoom          = 2.0
	DefaultURLPrefix     = "/assets/q"
	DefaultRenderTimeout = 20 * time.Second
	DefaultIndexTimeout  = 60 * time.Second
)

// CropDecision records what happened to one flagged question.
type CropDecision struct {
	Dataset  string   `json:"dataset"`
	QNo      string   `json:"qno"`
	Page     int      `json:"page,omitempty"`
	Decision Decision `json:"decision"`
	Path     string   `json:"path,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Retried  bool     `json:"retried,omitempty"`
	Formats  []string `json:"image_formats,omitempty"`
}

// Mismatch is a rendered crop whose text did not match its stem. The image
// is kept.
type Mismatch struct {
	Dataset  string `json:"dataset"`
	QNo      string `json:"qno"`
	Reason   string `json:"reason"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
	Path     string `json:"path"`
}

// Config controls where crops go and how long each step may take.
type Config struct {
	AssetsDir     string
	URLPrefix     string
	Zoom          float64
	RenderTimeout time.Duration
	IndexTimeout  time.Duration
	MaxQuestion   int
}

func (c Config) withDefaults() Config {
	if c.URLPrefix == "" {
		c.URLPrefix = DefaultURLPrefix
	}
	if c.Zoom <= 0 {
		c.Zoom = DefaultZoom
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = DefaultRenderTimeout
	}
	if c.IndexTimeout <= 0 {
		c.IndexTimeout = DefaultIndexTimeout
	}
	if c.MaxQuestion <= 0 {
		c.MaxQuestion = DefaultMaxQuestion
	}
	return c
}

// Outcome is the image work done for one document.
type Outcome struct {
	Decisions      []CropDecision
	Mismatches     []Mismatch
	ImageQuestions int
	MissingImages  int
}

// Locator crops figures for the records of a document.
type Locator struct {
	cfg    Config
	tables *keywords.Tables
	guard  *stability.Guard
	logger logrus.FieldLogger
}

// NewLocator creates a locator.
func NewLocator(cfg Config, tables *keywords.Tables, guard *stability.Guard, logger logrus.FieldLogger) *Locator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if guard == nil {
		guard = stability.NewGuard(logger)
	}
	return &Locator{cfg: cfg.withDefaults(), tables: tables, guard: guard, logger: logger}
}

func questionText(r *quiz.Record) string {
	return r.QuestionText + "\n" + strings.Join(r.Options, "\n")
}

// Process handles every record whose text suggests a figure, attaching an
// asset to those that get one. The anchor index is built only when at least
// one record is flagged. Failures are reported in the outcome, never
// returned.
func (l *Locator) Process(ctx context.Context, doc pdf.Document, ds quiz.Dataset, records []quiz.Record) Outcome {
	var out Outcome

	var flagged []int
	for i := range records {
		if l.tables.SuggestsImage(questionText(&records[i])) {
			flagged = append(flagged, i)
		}
	}
	out.ImageQuestions = len(flagged)
	if len(flagged) == 0 {
		return out
	}

	log := l.logger.WithFields(logrus.Fields{"dataset": ds.Slug, "flagged": len(flagged)})
	ix, err := stability.Run(ctx, l.guard, "anchor_index", l.cfg.IndexTimeout,
		func(ctx context.Context) (*AnchorIndex, error) {
			return BuildAnchorIndex(ctx, doc, l.cfg.MaxQuestion)
		})
	if err != nil {
		log.WithError(err).Warn("anchor index unavailable")
		ix = nil
	} else {
		log.WithField("anchors", ix.Len()).Debug("anchor index built")
	}

	for _, i := range flagged {
		rec := &records[i]
		dec, mm := l.processOne(ctx, doc, ix, ds, rec)
		out.Decisions = append(out.Decisions, dec)
		if mm != nil {
			out.Mismatches = append(out.Mismatches, *mm)
		}
		if len(rec.Assets) == 0 {
			out.MissingImages++
		}
	}
	return out
}

type cropResult struct {
	rect     pdf.Rect
	decision Decision
	path     string
	formats  []string
}

func (l *Locator) processOne(ctx context.Context, doc pdf.Document, ix *AnchorIndex, ds quiz.Dataset, rec *quiz.Record) (CropDecision, *Mismatch) {
	dec := CropDecision{Dataset: ds.Slug, QNo: rec.QNo}
	log := l.logger.WithFields(logrus.Fields{"dataset": ds.Slug, "qno": rec.QNo})

	qno, err := strconv.Atoi(rec.QNo)
	var anchor Anchor
	found := false
	if ix != nil && err == nil {
		anchor, found = ix.Lookup(rec.Page, qno)
	}
	if !found {
		dec.Decision = DecisionFailed
		dec.Reason = ReasonIndexMissing
		log.Debug("question anchor not found")
		return dec, nil
	}
	dec.Page = anchor.Page

	page, err := doc.Page(anchor.Page)
	if err != nil {
		dec.Decision = DecisionFailed
		dec.Reason = ReasonRenderFailed
		log.WithError(err).Warn("anchor page unavailable")
		return dec, nil
	}

	force := l.tables.ForcesRender(rec.QuestionText)
	target := l.assetPath(ds.Slug, qno)

	res, err := l.crop(ctx, page, target, func() pdf.Rect { return cropBounds(page, anchor, force) }, force)
	if err != nil {
		log.WithError(err).Warn("crop failed, retrying with fixed crop")
		dec.Retried = true
		res, err = l.crop(ctx, page, target, func() pdf.Rect { return fixedCrop(page, anchor) }, force)
	}
	if err != nil {
		dec.Decision = DecisionFailed
		dec.Reason = ReasonRenderFailed
		log.WithError(err).Warn("crop failed")
		return dec, nil
	}

	dec.Decision = res.decision
	dec.Formats = res.formats
	if res.path == "" {
		return dec, nil
	}
	dec.Path = res.path
	rec.Assets = append(rec.Assets, quiz.Asset{
		Type: quiz.AssetTypeImage,
		Src:  l.assetURL(ds.Slug, qno),
		Alt:  AssetAlt,
	})
	log.WithField("decision", res.decision).Debug("figure rendered")

	snippet := stemSnippet(rec.QuestionText)
	if snippet == "" {
		return dec, nil
	}
	got := page.TextInRect(res.rect)
	if calibrated(snippet, got) {
		return dec, nil
	}
	return dec, &Mismatch{
		Dataset:  ds.Slug,
		QNo:      rec.QNo,
		Reason:   ReasonCalibrationFail,
		Expected: snippet,
		Got:      truncate(normalizeForMatch(got), maxGotRunes),
		Path:     res.path,
	}
}

// crop bounds, decides and renders under the guard so that a panic or a
// hung rasterizer surfaces as an error.
func (l *Locator) crop(ctx context.Context, page *pdf.Page, target string, bounds func() pdf.Rect, force bool) (cropResult, error) {
	return stability.Run(ctx, l.guard, "render", l.cfg.RenderTimeout, func(ctx context.Context) (cropResult, error) {
		r := bounds()
		if r.Empty() {
			return cropResult{}, pdf.ErrEmptyRegion
		}
		res := cropResult{rect: r, formats: overlappingFormats(page, r)}
		switch {
		case hasGraphic(page, r):
			res.decision = DecisionRendered
		case force:
			res.decision = DecisionForced
		default:
			res.decision = DecisionSkipped
			return res, nil
		}

		img, err := page.Render(ctx, r, l.cfg.Zoom)
		if err != nil {
			return cropResult{}, err
		}
		// A render abandoned on timeout must not race the retry's write.
		if err := ctx.Err(); err != nil {
			return cropResult{}, err
		}
		if err := writePNG(target, img); err != nil {
			return cropResult{}, err
		}
		res.path = target
		return res, nil
	})
}

func overlappingFormats(page *pdf.Page, r pdf.Rect) []string {
	var formats []string
	for _, img := range page.Images() {
		if img.Box.Intersects(r) {
			formats = append(formats, img.Format)
		}
	}
	return formats
}

func (l *Locator) assetPath(slug string, qno int) string {
	return filepath.Join(l.cfg.AssetsDir, slug, fmt.Sprintf("Q%03d.png", qno))
}

func (l *Locator) assetURL(slug string, qno int) string {
	return strings.TrimRight(l.cfg.URLPrefix, "/") + "/" + slug + "/" + fmt.Sprintf("Q%03d.png", qno)
}

// writePNG encodes img next to target and renames it into place, so a
// reader never sees a partly written file.
func writePNG(target string, img image.Image) (err error) {
	if img == nil {
		return errors.New("renderer returned no image")
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create asset directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write asset: %w", err)
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write asset: %w", err)
	}
	if err := os.Rename(f.Name(), target); err != nil {
		return fmt.Errorf("failed to place asset: %w", err)
	}
	return nil
}
