// Package importer runs the per-document pipeline: open, read page text,
// assemble records, crop figures and collect the report. Batch runs fan the
// documents out over a bounded worker group and write the datasets, the
// dataset index and the run report.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/a3tai/exam-pdf-importer/internal/imaging"
	"github.com/a3tai/exam-pdf-importer/internal/keywords"
	"github.com/a3tai/exam-pdf-importer/internal/pdf"
	"github.com/a3tai/exam-pdf-importer/internal/quiz"
	"github.com/a3tai/exam-pdf-importer/internal/report"
	"github.com/a3tai/exam-pdf-importer/internal/stability"
)

const defaultPageTimeout = 30 * time.Second

// ErrNoText is returned for documents whose pages carry no extractable text,
// typically scanned images.
var ErrNoText = errors.New("no text extracted")

// Opener opens a document by path.
type Opener func(path string) (pdf.Document, error)

// Options controls a run.
type Options struct {
	Subject     string
	Images      bool
	Imaging     imaging.Config
	FontPath    string
	Workers     int
	PageTimeout time.Duration

	OutputDir        string
	ReportPath       string
	ReviewPath       string
	PreserveDatasets []string
	MaxFileSize      int64
}

// Option customizes an Importer.
type Option func(*Importer)

// WithOpener replaces the function used to open documents.
func WithOpener(open Opener) Option {
	return func(i *Importer) { i.open = open }
}

// WithGuard shares a panic guard with other components.
func WithGuard(g *stability.Guard) Option {
	return func(i *Importer) { i.guard = g }
}

// Importer turns documents into datasets.
type Importer struct {
	opts    Options
	tables  *keywords.Tables
	parser  *quiz.Parser
	locator *imaging.Locator
	guard   *stability.Guard
	open    Opener
	logger  logrus.FieldLogger
}

// New creates an importer.
func New(opts Options, tables *keywords.Tables, logger logrus.FieldLogger, options ...Option) *Importer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = defaultPageTimeout
	}

	i := &Importer{
		opts:   opts,
		tables: tables,
		parser: quiz.NewParser(tables),
		logger: logger,
	}
	i.open = func(path string) (pdf.Document, error) {
		return pdf.Open(path, pdf.Options{FontPath: opts.FontPath})
	}
	for _, o := range options {
		o(i)
	}
	if i.guard == nil {
		i.guard = stability.NewGuard(logger)
	}
	i.locator = imaging.NewLocator(opts.Imaging, tables, i.guard, logger)
	return i
}

// Guard returns the panic guard the importer runs library calls under.
func (i *Importer) Guard() *stability.Guard { return i.guard }

// DocumentResult is the outcome of importing one document.
type DocumentResult struct {
	Path    string
	Dataset quiz.Dataset
	Records []quiz.Record
	Report  report.DocumentReport
}

// Failed reports whether the document could not be imported.
func (r DocumentResult) Failed() bool {
	return r.Report.Error != ""
}

// ImportFile imports the document at path. The returned error is also
// recorded in the result's report; records are only returned on success.
func (i *Importer) ImportFile(ctx context.Context, path string) (DocumentResult, error) {
	if err := ctx.Err(); err != nil {
		return i.failed(path, err), err
	}

	doc, err := i.open(path)
	if err != nil {
		return i.failed(path, err), err
	}
	defer doc.Close()

	return i.ImportDocument(ctx, doc)
}

// ImportDocument runs the pipeline over an already opened document. The
// caller keeps ownership of doc.
func (i *Importer) ImportDocument(ctx context.Context, doc pdf.Document) (DocumentResult, error) {
	ds := quiz.NewDataset(doc.Path(), i.tables, i.opts.Subject)
	agg := report.NewAggregator(ds.File, ds.Slug)
	res := DocumentResult{Path: doc.Path(), Dataset: ds}

	records, err := i.parse(ctx, doc, ds, agg)
	if err != nil {
		agg.Fail(err)
		res.Report = agg.Report()
		return res, err
	}
	if i.opts.Images {
		agg.AddImages(i.locator.Process(ctx, doc, ds, records))
	}
	if c, ok := doc.(pdf.CacheReporter); ok {
		st := c.CacheStats()
		agg.SetPageCache(st.Hits, st.Misses)
	}

	res.Records = records
	res.Report = agg.Report()
	return res, nil
}

// failed builds the result of a document that never got parsed.
func (i *Importer) failed(path string, err error) DocumentResult {
	ds := quiz.NewDataset(path, i.tables, i.opts.Subject)
	agg := report.NewAggregator(ds.File, ds.Slug)
	agg.Fail(err)
	return DocumentResult{Path: path, Dataset: ds, Report: agg.Report()}
}

func (i *Importer) parse(ctx context.Context, doc pdf.Document, ds quiz.Dataset, agg *report.Aggregator) ([]quiz.Record, error) {
	log := i.logger.WithFields(logrus.Fields{"file": ds.File, "dataset": ds.Slug})

	pages, err := i.readPages(ctx, doc, log)
	if err != nil {
		return nil, err
	}

	parsed := i.parser.ParseDocument(ds, pages)
	if !parsed.HasText {
		return nil, fmt.Errorf("%s: %w", ds.File, ErrNoText)
	}
	agg.AddParse(parsed)

	log.WithFields(logrus.Fields{
		"records":  len(parsed.Records),
		"failures": len(parsed.Failures),
		"fallback": parsed.UsedFallback,
	}).Info("document parsed")
	return parsed.Records, nil
}

// readPages extracts the text of every page. A page that fails is logged and
// read as empty; the document fails only when no page could be read.
func (i *Importer) readPages(ctx context.Context, doc pdf.Document, log logrus.FieldLogger) ([]quiz.Page, error) {
	n := doc.NumPages()
	pages := make([]quiz.Page, 0, n)
	var lastErr error
	read := 0

	for num := 1; num <= n; num++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := stability.Run(ctx, i.guard, "page_text", i.opts.PageTimeout,
			func(context.Context) (string, error) {
				page, err := doc.Page(num)
				if err != nil {
					return "", err
				}
				return page.Text(), nil
			})
		if err != nil {
			log.WithError(err).WithField("page", num).Warn("page text unavailable")
			lastErr = err
			pages = append(pages, quiz.Page{Number: num})
			continue
		}
		read++
		pages = append(pages, quiz.Page{Number: num, Text: text})
	}

	if read == 0 && lastErr != nil {
		return nil, lastErr
	}
	return pages, nil
}
