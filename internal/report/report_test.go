package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/a3tai/exam-pdf-importer/internal/imaging"
	"github.com/a3tai/exam-pdf-importer/internal/quiz"
	"github.com/a3tai/exam-pdf-importer/internal/stability"
)

func sampleRun() *RunReport {
	run := NewRun()

	a := NewAggregator("105工程管理學科.pdf", "105_mgmt_written")
	a.AddParse(quiz.Result{
		Records:            make([]quiz.Record, 3),
		Failures:           []quiz.ParseFailure{{Dataset: "105_mgmt_written", QNo: "4", Page: 2, Reason: quiz.ReasonParseFailed}},
		Leaks:              []quiz.LeakageSuspect{{Dataset: "105_mgmt_written", QNo: "2", Reason: quiz.ReasonLeakOption, Snippet: " 3.(1)<下一題>"}},
		AnswerUnknown:      []string{"3"},
		MissingExplanation: 2,
	})
	a.AddImages(imaging.Outcome{
		ImageQuestions: 2,
		MissingImages:  1,
		Decisions: []imaging.CropDecision{
			{Dataset: "105_mgmt_written", QNo: "1", Page: 1, Decision: imaging.DecisionRendered, Path: "assets/105_mgmt_written/Q001.png", Formats: []string{"JPEG"}},
			{Dataset: "105_mgmt_written", QNo: "2", Decision: imaging.DecisionFailed, Reason: imaging.ReasonIndexMissing},
		},
		Mismatches: []imaging.Mismatch{{Dataset: "105_mgmt_written", QNo: "1", Reason: imaging.ReasonCalibrationFail, Expected: "如下圖所示", Got: "其他"}},
	})

	b := NewAggregator("broken.pdf", "broken")
	b.Fail(errors.New("no extractable text"))

	run.Add(a.Report(), b.Report())
	run.Finish()
	return run
}

func TestAggregatorAndTotals(t *testing.T) {
	run := sampleRun()

	require.Len(t, run.Documents, 2)
	assert.NotEmpty(t, run.RunID)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	first := run.Documents[0]
	assert.Equal(t, 3, first.Records)
	assert.Equal(t, []string{"3"}, first.AnswerUnknown)
	assert.Empty(t, first.Error)

	second := run.Documents[1]
	assert.Equal(t, "no extractable text", second.Error)
	assert.Zero(t, second.Records)
	assert.NotNil(t, second.ParseFailures, "empty lists serialize as []")

	assert.Equal(t, Totals{
		Documents:          2,
		FailedDocuments:    1,
		Records:            3,
		ParseFailures:      1,
		LeakageSuspects:    1,
		MissingExplanation: 2,
		AnswerUnknown:      1,
		ImageQuestions:     2,
		MissingImages:      1,
		RenderedImages:     1,
		Mismatches:         1,
	}, run.Totals)
}

func TestWriteJSON(t *testing.T) {
	run := sampleRun()
	path := filepath.Join(t.TempDir(), "out", "import_report.json")
	require.NoError(t, run.WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<下一題>", "HTML escaping is off")
	assert.Contains(t, string(data), "\n  \"run_id\"")
	assert.Contains(t, string(data), "\"image_decisions\": []")

	var back RunReport
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, run.RunID, back.RunID)
	assert.Equal(t, run.Totals, back.Totals)
}

func TestWriteWorkbook(t *testing.T) {
	run := sampleRun()
	path := filepath.Join(t.TempDir(), "review.xlsx")
	require.NoError(t, run.WriteWorkbook(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetParseFailures, SheetLeakage, SheetImages, SheetAnswerUnknown}, f.GetSheetList())

	rows, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "file", rows[0][0])
	assert.Equal(t, "105工程管理學科.pdf", rows[1][0])
	assert.Equal(t, "no extractable text", rows[2][11])

	rows, err = f.GetRows(SheetImages)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"105_mgmt_written", "1", "1", "rendered", "calibration_fail", "FALSE",
		"assets/105_mgmt_written/Q001.png", "JPEG", "如下圖所示", "其他"}, rows[1])
	assert.Equal(t, "index_missing", rows[2][4])

	rows, err = f.GetRows(SheetAnswerUnknown)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"dataset", "qno"}, {"105_mgmt_written", "3"}}, rows)
}

func TestPanicsAndPageCache(t *testing.T) {
	run := NewRun()
	agg := NewAggregator("alpha.pdf", "alpha")
	agg.SetPageCache(7, 3)
	run.Add(agg.Report())
	run.AddPanics(stability.PanicRecord{Operation: "page text", Message: "index out of range"})
	run.Finish()

	assert.Equal(t, &PageCache{Hits: 7, Misses: 3}, run.Documents[0].PageCache)
	assert.Equal(t, 1, run.Totals.RecoveredPanics)

	data, err := EncodeJSON(run)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"page_cache": {`)
	assert.Contains(t, string(data), `"recovered_panics": 1`)

	empty, err := EncodeJSON(NewAggregator("beta.pdf", "beta").Report())
	require.NoError(t, err)
	assert.NotContains(t, string(empty), "page_cache")
}
