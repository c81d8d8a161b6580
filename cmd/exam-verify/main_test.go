package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/exam-pdf-importer/internal/verify"
)

const validDataset = `[{"id":"alpha_1","subject":"","year":null,"chapter":"ALL","type":"single",
"question_text":"題幹","options":["甲","乙","丙","丁"],"answer_index":1,"explanation":"",
"source":"alpha.pdf#p1#Q1","source_display":"alpha 第1頁 第1題"}]`

func publish(t *testing.T, dataset string) string {
	t.Helper()
	data := filepath.Join(t.TempDir(), "public", "data")
	require.NoError(t, os.MkdirAll(data, 0o750))
	files := map[string]string{
		"meta.json":            `{"data_version":"20261017-101500"}`,
		"index.json":           `{"datasets":[{"id":"alpha","label":"alpha","file":"questions_alpha.json"}],"default_dataset":"ALL"}`,
		"questions_alpha.json": dataset,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(data, name), []byte(content), 0o600))
	}
	return data
}

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		dataset  string
		args     []string
		want     int
		contains string
	}{
		{name: "valid", dataset: validDataset, want: exitOK, contains: "Verification OK"},
		{name: "invalid", dataset: `[{"id":"x"}]`, want: exitInvalid, contains: "missing field question_text"},
		{name: "bad format", dataset: validDataset, args: []string{"--format=xml"}, want: exitUsage},
		{name: "help", dataset: validDataset, args: []string{"--help"}, want: exitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := publish(t, tt.dataset)
			var stdout, stderr bytes.Buffer

			code := run(append([]string{"--data-dir", data}, tt.args...), &stdout, &stderr)
			assert.Equal(t, tt.want, code, stderr.String())
			if tt.contains != "" {
				assert.Contains(t, stdout.String(), tt.contains)
				assert.FileExists(t, filepath.Join(data, verify.ResultFile))
			}
		})
	}
}

func TestRunJSONWithoutWrite(t *testing.T) {
	data := publish(t, validDataset)
	var stdout, stderr bytes.Buffer

	code := run([]string{"--format", "json", "--no-write", data}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	var res verify.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	assert.True(t, res.OK)
	assert.Equal(t, 1, res.TotalQuestions)
	assert.NoFileExists(t, filepath.Join(data, verify.ResultFile))
}

func TestRunMissingDataDir(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--data-dir", filepath.Join(t.TempDir(), "nope")}, &stdout, &stderr)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "cannot access data directory")
}
