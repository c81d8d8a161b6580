package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/exam-pdf-importer/internal/pdf"
	"github.com/a3tai/exam-pdf-importer/internal/quiz"
	"github.com/a3tai/exam-pdf-importer/internal/report"
)

// Summary is what a directory import produced.
type Summary struct {
	Run     *report.RunReport
	Results []DocumentResult
	Written []string // dataset files, in input order
	Index   Index
}

// Run imports paths with at most Workers documents in flight. Results keep
// the order of paths; a failing document never stops the others.
func (i *Importer) Run(ctx context.Context, paths []string) []DocumentResult {
	results := make([]DocumentResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.Workers)

	for idx, path := range paths {
		g.Go(func() error {
			res, err := i.ImportFile(gctx, path)
			if err != nil {
				i.logger.WithError(err).WithField("file", filepath.Base(path)).Warn("document failed")
			}
			results[idx] = res
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ImportDir imports every PDF below dir and writes the datasets, the
// dataset index, meta.json, the run report and, when configured, the review
// workbook.
func (i *Importer) ImportDir(ctx context.Context, dir string) (*Summary, error) {
	files, err := pdf.NewFinder(i.opts.MaxFileSize).FindPDFs(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .pdf files found in %s", dir)
	}

	run := report.NewRun()
	i.logger.WithFields(logrus.Fields{"run_id": run.RunID, "documents": len(files)}).Info("import started")

	// Slugs are claimed in path order before anything is imported; a document
	// losing a collision is never opened.
	claimed := map[string]string{}
	var paths []string
	for idx, f := range files {
		if f.Problem != "" {
			continue
		}
		slug := quiz.NewDataset(f.Path, i.tables, i.opts.Subject).Slug
		if owner, ok := claimed[slug]; ok {
			files[idx].Problem = collision(slug, owner).Error()
			continue
		}
		claimed[slug] = filepath.Base(f.Path)
		paths = append(paths, f.Path)
	}
	imported := i.Run(ctx, paths)

	results := make([]DocumentResult, 0, len(files))
	next := 0
	for _, f := range files {
		if f.Problem != "" {
			results = append(results, i.rejected(f))
			continue
		}
		results = append(results, imported[next])
		next++
	}

	sum := &Summary{Run: run, Results: results}
	if err := i.writeOutputs(sum, i.opts.PreserveDatasets, true); err != nil {
		return sum, err
	}
	return sum, nil
}

// Publish writes results imported one by one, outside a directory run.
// Every dataset already listed in index.json is kept, so publishing a single
// document adds or replaces its own entry only. The run report and the
// review workbook of the last directory run are left untouched.
func (i *Importer) Publish(results ...DocumentResult) (*Summary, error) {
	preserve := append([]string(nil), i.opts.PreserveDatasets...)
	existing, err := ReadIndex(filepath.Join(i.opts.OutputDir, IndexFile))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		for _, e := range existing.Datasets {
			preserve = append(preserve, e.ID)
		}
	}

	sum := &Summary{Run: report.NewRun(), Results: results}
	if err := i.writeOutputs(sum, preserve, false); err != nil {
		return sum, err
	}
	return sum, nil
}

func (i *Importer) rejected(f pdf.FileInfo) DocumentResult {
	i.logger.WithFields(logrus.Fields{"file": f.Name, "problem": f.Problem}).Warn("document skipped")
	return i.failed(f.Path, errors.New(f.Problem))
}

func collision(slug, owner string) error {
	return fmt.Errorf("dataset %s already produced by %s", slug, owner)
}

func (i *Importer) writeOutputs(sum *Summary, preserve []string, reports bool) error {
	claimed := map[string]string{}
	var written []DocumentResult

	for idx := range sum.Results {
		res := &sum.Results[idx]
		if res.Failed() {
			continue
		}
		if owner, ok := claimed[res.Dataset.Slug]; ok {
			res.Report.Error = collision(res.Dataset.Slug, owner).Error()
			res.Report.Records = 0
			res.Records = nil
			continue
		}
		claimed[res.Dataset.Slug] = res.Dataset.File

		path, err := WriteDataset(i.opts.OutputDir, res.Dataset.Slug, res.Records)
		if err != nil {
			return err
		}
		sum.Written = append(sum.Written, path)
		written = append(written, *res)
	}

	for _, res := range sum.Results {
		sum.Run.Add(res.Report)
	}
	sum.Run.AddPanics(i.guard.Panics()...)
	sum.Run.Finish()

	indexPath := filepath.Join(i.opts.OutputDir, IndexFile)
	existing, err := ReadIndex(indexPath)
	if err != nil {
		i.logger.WithError(err).Warn("existing index ignored")
		existing = nil
	}
	sum.Index = BuildIndex(existing, preserve, i.opts.OutputDir, written)
	if err := report.WriteJSONFile(indexPath, sum.Index); err != nil {
		return err
	}
	meta := NewMeta(sum.Run.RunID, sum.Run.StartedAt)
	if err := report.WriteJSONFile(filepath.Join(i.opts.OutputDir, MetaFile), meta); err != nil {
		return err
	}

	if reports {
		if err := i.writeReports(sum.Run); err != nil {
			return err
		}
	}

	i.logger.WithFields(logrus.Fields{
		"run_id":    sum.Run.RunID,
		"documents": sum.Run.Totals.Documents,
		"failed":    sum.Run.Totals.FailedDocuments,
		"records":   sum.Run.Totals.Records,
		"images":    sum.Run.Totals.RenderedImages,
		"panics":    sum.Run.Totals.RecoveredPanics,
	}).Info("import finished")
	return nil
}

func (i *Importer) writeReports(run *report.RunReport) error {
	if i.opts.ReportPath != "" {
		if err := run.WriteJSON(i.opts.ReportPath); err != nil {
			return err
		}
	}
	if i.opts.ReviewPath != "" {
		if err := run.WriteWorkbook(i.opts.ReviewPath); err != nil {
			return err
		}
	}
	return nil
}
