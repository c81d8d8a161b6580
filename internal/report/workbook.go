package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/exam-pdf-importer/internal/imaging"
)

// Workbook sheet names.
const (
	SheetSummary       = "Summary"
	SheetParseFailures = "ParseFailures"
	SheetLeakage       = "Leakage"
	SheetImages        = "Images"
	SheetAnswerUnknown = "AnswerUnknown"
)

type sheet struct {
	name   string
	header []any
	rows   [][]any
}

// WriteWorkbook writes a review workbook with one sheet per diagnostic kind.
func (r *RunReport) WriteWorkbook(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, s := range r.sheets() {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", s.name, err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s, bold); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	if err := f.SetSheetRow(s.name, "A1", &s.header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", s.name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(s.header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", s.name, err)
	}
	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", s.name, i+2, err)
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(s.header))
	return f.SetColWidth(s.name, "A", lastCol, 18)
}

func (r *RunReport) sheets() []sheet {
	summary := sheet{
		name: SheetSummary,
		header: []any{"file", "dataset", "records", "used_fallback", "parse_failures",
			"leakage_suspects", "missing_explanation", "answer_unknown", "image_questions",
			"missing_images", "image_mismatches", "error"},
	}
	failures := sheet{name: SheetParseFailures, header: []any{"dataset", "qno", "page", "reason", "detail"}}
	leakage := sheet{name: SheetLeakage, header: []any{"dataset", "qno", "reason", "snippet"}}
	images := sheet{name: SheetImages, header: []any{"dataset", "qno", "page", "decision", "reason",
		"retried", "path", "image_formats", "calibration_expected", "calibration_got"}}
	unknown := sheet{name: SheetAnswerUnknown, header: []any{"dataset", "qno"}}

	for _, d := range r.Documents {
		summary.rows = append(summary.rows, []any{d.File, d.Dataset, d.Records, d.UsedFallback,
			len(d.ParseFailures), len(d.LeakageSuspects), d.MissingExplanation, len(d.AnswerUnknown),
			d.ImageQuestions, d.MissingImages, len(d.Mismatches), d.Error})

		for _, pf := range d.ParseFailures {
			failures.rows = append(failures.rows, []any{pf.Dataset, pf.QNo, pf.Page, pf.Reason, pf.Detail})
		}
		for _, l := range d.LeakageSuspects {
			leakage.rows = append(leakage.rows, []any{l.Dataset, l.QNo, l.Reason, l.Snippet})
		}

		mismatch := make(map[string][2]string, len(d.Mismatches))
		for _, m := range d.Mismatches {
			mismatch[m.QNo] = [2]string{m.Expected, m.Got}
		}
		for _, dec := range d.ImageDecisions {
			reason := dec.Reason
			mm, ok := mismatch[dec.QNo]
			if ok && reason == "" {
				reason = imaging.ReasonCalibrationFail
			}
			images.rows = append(images.rows, []any{dec.Dataset, dec.QNo, dec.Page, string(dec.Decision),
				reason, dec.Retried, dec.Path, strings.Join(dec.Formats, ","), mm[0], mm[1]})
		}
		for _, q := range d.AnswerUnknown {
			unknown.rows = append(unknown.rows, []any{d.Dataset, q})
		}
	}
	return []sheet{summary, failures, leakage, images, unknown}
}
