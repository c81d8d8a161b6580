// Package report collects per-document import diagnostics for human review.
// Nothing here affects which records are emitted.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/a3tai/exam-pdf-importer/internal/imaging"
	"github.com/a3tai/exam-pdf-importer/internal/quiz"
	"github.com/a3tai/exam-pdf-importer/internal/stability"
)

// DocumentReport holds the diagnostics of one source document.
type DocumentReport struct {
	File               string                 `json:"file"`
	Dataset            string                 `json:"dataset"`
	Records            int                    `json:"records"`
	UsedFallback       bool                   `json:"used_fallback"`
	ParseFailures      []quiz.ParseFailure    `json:"parse_failures"`
	LeakageSuspects    []quiz.LeakageSuspect  `json:"leakage_suspects"`
	MissingExplanation int                    `json:"missing_explanation"`
	AnswerUnknown      []string               `json:"answer_unknown"`
	ImageQuestions     int                    `json:"image_questions"`
	MissingImages      int                    `json:"missing_images"`
	ImageDecisions     []imaging.CropDecision `json:"image_decisions"`
	Mismatches         []imaging.Mismatch     `json:"image_mismatches"`
	PageCache          *PageCache             `json:"page_cache,omitempty"`
	Error              string                 `json:"error,omitempty"`
	DurationMS         int64                  `json:"duration_ms"`
}

// PageCache is how often parsed pages were served from the document cache.
type PageCache struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Aggregator accumulates one document's report. It is append-only and
// owned by a single goroutine.
type Aggregator struct {
	doc     DocumentReport
	started time.Time
}

// NewAggregator starts the report for a document.
func NewAggregator(file, dataset string) *Aggregator {
	return &Aggregator{
		doc: DocumentReport{
			File:            file,
			Dataset:         dataset,
			ParseFailures:   []quiz.ParseFailure{},
			LeakageSuspects: []quiz.LeakageSuspect{},
			AnswerUnknown:   []string{},
			ImageDecisions:  []imaging.CropDecision{},
			Mismatches:      []imaging.Mismatch{},
		},
		started: time.Now(),
	}
}

// AddParse appends the text parsing diagnostics.
func (a *Aggregator) AddParse(res quiz.Result) {
	a.doc.Records += len(res.Records)
	a.doc.UsedFallback = a.doc.UsedFallback || res.UsedFallback
	a.doc.ParseFailures = append(a.doc.ParseFailures, res.Failures...)
	a.doc.LeakageSuspects = append(a.doc.LeakageSuspects, res.Leaks...)
	a.doc.MissingExplanation += res.MissingExplanation
	a.doc.AnswerUnknown = append(a.doc.AnswerUnknown, res.AnswerUnknown...)
}

// AddImages appends the figure cropping diagnostics.
func (a *Aggregator) AddImages(out imaging.Outcome) {
	a.doc.ImageQuestions += out.ImageQuestions
	a.doc.MissingImages += out.MissingImages
	a.doc.ImageDecisions = append(a.doc.ImageDecisions, out.Decisions...)
	a.doc.Mismatches = append(a.doc.Mismatches, out.Mismatches...)
}

// SetPageCache records the page cache counters of the document.
func (a *Aggregator) SetPageCache(hits, misses int64) {
	a.doc.PageCache = &PageCache{Hits: hits, Misses: misses}
}

// Fail marks the document as failed. Records counted so far are kept.
func (a *Aggregator) Fail(err error) {
	if err != nil {
		a.doc.Error = err.Error()
	}
}

// Report returns the finished document report.
func (a *Aggregator) Report() DocumentReport {
	doc := a.doc
	doc.DurationMS = time.Since(a.started).Milliseconds()
	return doc
}

// Totals sums the document reports of a run.
type Totals struct {
	Documents          int `json:"documents"`
	FailedDocuments    int `json:"failed_documents"`
	Records            int `json:"records"`
	ParseFailures      int `json:"parse_failures"`
	LeakageSuspects    int `json:"leakage_suspects"`
	MissingExplanation int `json:"missing_explanation"`
	AnswerUnknown      int `json:"answer_unknown"`
	ImageQuestions     int `json:"image_questions"`
	MissingImages      int `json:"missing_images"`
	RenderedImages     int `json:"rendered_images"`
	Mismatches         int `json:"image_mismatches"`
	RecoveredPanics    int `json:"recovered_panics"`
}

// RunReport is the ordered list of document reports of one import run,
// with the library panics recovered while it was in flight.
type RunReport struct {
	RunID      string                  `json:"run_id"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Documents  []DocumentReport        `json:"documents"`
	Panics     []stability.PanicRecord `json:"panics"`
	Totals     Totals                  `json:"totals"`
}

// NewRun starts a run report.
func NewRun() *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Documents: []DocumentReport{},
		Panics:    []stability.PanicRecord{},
	}
}

// Add appends document reports in order.
func (r *RunReport) Add(docs ...DocumentReport) {
	r.Documents = append(r.Documents, docs...)
}

// AddPanics appends recovered panic records.
func (r *RunReport) AddPanics(records ...stability.PanicRecord) {
	r.Panics = append(r.Panics, records...)
}

// Finish stamps the finish time and computes totals.
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now().UTC()
	var t Totals
	for _, d := range r.Documents {
		t.Documents++
		if d.Error != "" {
			t.FailedDocuments++
		}
		t.Records += d.Records
		t.ParseFailures += len(d.ParseFailures)
		t.LeakageSuspects += len(d.LeakageSuspects)
		t.MissingExplanation += d.MissingExplanation
		t.AnswerUnknown += len(d.AnswerUnknown)
		t.ImageQuestions += d.ImageQuestions
		t.MissingImages += d.MissingImages
		t.Mismatches += len(d.Mismatches)
		for _, dec := range d.ImageDecisions {
			if dec.Path != "" {
				t.RenderedImages++
			}
		}
	}
	t.RecoveredPanics = len(r.Panics)
	r.Totals = t
}

// WriteJSON writes the report as indented JSON with HTML escaping off.
func (r *RunReport) WriteJSON(path string) error {
	return WriteJSONFile(path, r)
}

// EncodeJSON serializes v the way every artifact of a run is written:
// UTF-8, two-space indent, no HTML escaping, trailing newline.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSONFile writes EncodeJSON(v) to path, creating parent directories.
func WriteJSONFile(path string, v any) error {
	data, err := EncodeJSON(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
