package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/exam-pdf-importer/internal/config"
	"github.com/a3tai/exam-pdf-importer/internal/importer"
	"github.com/a3tai/exam-pdf-importer/internal/keywords"
	"github.com/a3tai/exam-pdf-importer/internal/pdf"
	"github.com/a3tai/exam-pdf-importer/internal/stability"
	"github.com/a3tai/exam-pdf-importer/internal/verify"
)

func questions(first, last int) string {
	var b strings.Builder
	for q := first; q <= last; q++ {
		fmt.Fprintf(&b, "%d.(%d)第%d題的題幹內容①甲②乙③丙④丁\n", q, q%4+1, q)
	}
	return b.String()
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

// newTestServer serves documents by base name from docs instead of parsing
// the files on disk.
func newTestServer(t *testing.T, docs map[string]string) (*Server, *config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeStdio
	cfg.InputDir = filepath.Join(root, "raw_pdfs")
	cfg.OutputDir = filepath.Join(root, "public", "data")
	cfg.AssetsDir = filepath.Join(root, "public", "assets", "q")
	cfg.ReportPath = filepath.Join(root, "scripts", "import_report.json")
	require.NoError(t, os.MkdirAll(cfg.InputDir, 0o750))
	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0o750))

	open := func(path string) (pdf.Document, error) {
		text, ok := docs[filepath.Base(path)]
		if !ok {
			return nil, &pdf.DocumentError{Path: path, Op: "open", Err: errors.New("not a PDF")}
		}
		return pdf.NewMemoryDocument(filepath.Base(path), []pdf.MemoryPage{{Text: text}})
	}

	logger, _ := test.NewNullLogger()
	s, err := NewServer(cfg, keywords.MustDefault(), logger, importer.WithOpener(open))
	require.NoError(t, err)
	return s, cfg
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	var b strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			b.WriteString(text.Text)
		}
	}
	return b.String()
}

func TestNewServer(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := config.DefaultConfig()

	_, err := NewServer(nil, keywords.MustDefault(), logger)
	assert.Error(t, err)

	_, err = NewServer(cfg, nil, logger)
	assert.Error(t, err)

	s, err := NewServer(cfg, keywords.MustDefault(), nil)
	require.NoError(t, err)
	assert.NotNil(t, s.mcpServer)
	assert.Len(t, s.sandbox.Roots(), 2)
}

func TestHandleListInputs(t *testing.T) {
	s, cfg := newTestServer(t, nil)
	writeFile(t, filepath.Join(cfg.InputDir, "alpha.pdf"), "%PDF-1.4")
	writeFile(t, filepath.Join(cfg.InputDir, "2024", "beta.pdf"), "%PDF-1.4")
	writeFile(t, filepath.Join(cfg.InputDir, "empty.pdf"), "")

	result, err := s.handleListInputs(context.Background(), callRequest(ToolListInputs, nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := extractText(t, result)
	assert.Contains(t, text, "Found 3 PDF file(s)")
	assert.Contains(t, text, "Importable: 2, total size: 16 bytes")
	assert.Contains(t, text, "alpha.pdf")
	assert.Contains(t, text, "Problem:")

	result, err = s.handleListInputs(context.Background(), callRequest(ToolListInputs, map[string]any{"directory": "2024"}))
	require.NoError(t, err)
	text = extractText(t, result)
	assert.Contains(t, text, "Found 1 PDF file(s)")
	assert.Contains(t, text, "beta.pdf")

	result, err = s.handleListInputs(context.Background(), callRequest(ToolListInputs, map[string]any{"directory": "/etc"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "outside configured directories")
}

func TestHandleValidatePDF(t *testing.T) {
	s, cfg := newTestServer(t, nil)
	writeFile(t, filepath.Join(cfg.InputDir, "garbage.pdf"), "not a pdf at all")

	tests := []struct {
		name    string
		args    map[string]any
		isError bool
		want    string
	}{
		{"missing path", nil, true, "path"},
		{"outside sandbox", map[string]any{"path": "../../escape.pdf"}, true, "outside configured directories"},
		{"unparseable", map[string]any{"path": "garbage.pdf"}, false, "PDF validation failed"},
		{"missing file", map[string]any{"path": "missing.pdf"}, false, "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleValidatePDF(context.Background(), callRequest(ToolValidatePDF, tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.isError, result.IsError)
			assert.Contains(t, extractText(t, result), tt.want)
		})
	}
}

func TestHandleImportFile(t *testing.T) {
	s, cfg := newTestServer(t, map[string]string{"alpha.pdf": questions(1, 3)})
	writeFile(t, filepath.Join(cfg.InputDir, "alpha.pdf"), "%PDF-1.4")

	result, err := s.handleImportFile(context.Background(), callRequest(ToolImportFile, map[string]any{"path": "alpha.pdf"}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))
	text := extractText(t, result)
	assert.Contains(t, text, "Imported alpha.pdf as dataset alpha")
	assert.Contains(t, text, "Records: 3")
	assert.Contains(t, text, `"parse_failures": []`)
	assert.NotContains(t, text, "Written:")
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "questions_alpha.json"))

	result, err = s.handleImportFile(context.Background(), callRequest(ToolImportFile, map[string]any{
		"path":   "alpha.pdf",
		"images": false,
		"write":  true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))
	assert.Contains(t, extractText(t, result), "Written: "+filepath.Join(cfg.OutputDir, "questions_alpha.json"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "questions_alpha.json"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, importer.IndexFile))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, importer.MetaFile))
}

func TestHandleImportFileErrors(t *testing.T) {
	s, cfg := newTestServer(t, map[string]string{"scan.pdf": ""})
	writeFile(t, filepath.Join(cfg.InputDir, "scan.pdf"), "%PDF-1.4")
	writeFile(t, filepath.Join(cfg.InputDir, "broken.pdf"), "%PDF-1.4")

	tests := []struct {
		name string
		path string
		want string
	}{
		{"no text", "scan.pdf", "no text extracted"},
		{"unreadable", "broken.pdf", "import of broken.pdf failed"},
		{"outside sandbox", "/tmp/../etc/passwd.pdf", "outside configured directories"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleImportFile(context.Background(), callRequest(ToolImportFile, map[string]any{"path": tt.path}))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, extractText(t, result), tt.want)
		})
	}
}

func TestHandleParseText(t *testing.T) {
	s, _ := newTestServer(t, nil)

	result, err := s.handleParseText(context.Background(), callRequest(ToolParseText, map[string]any{
		"text":      "1.(2)下列何者正確？①甲②乙③丙④丁\n2.(4)下列何者錯誤？①一②二③三④四",
		"file_name": "105學科",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))
	text := extractText(t, result)
	assert.Contains(t, text, "Parsed 2 question(s) from 105學科.pdf")
	assert.Contains(t, text, `"answer_index": 1`)
	assert.Contains(t, text, `"answer_index": 3`)
	assert.Contains(t, text, `"year": 105`)

	result, err = s.handleParseText(context.Background(), callRequest(ToolParseText, nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleParseText(context.Background(), callRequest(ToolParseText, map[string]any{"text": "   "}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "no text extracted")
}

func TestHandleVerifyOutput(t *testing.T) {
	s, cfg := newTestServer(t, map[string]string{"alpha.pdf": questions(1, 2)})
	writeFile(t, filepath.Join(cfg.InputDir, "alpha.pdf"), "%PDF-1.4")

	result, err := s.handleVerifyOutput(context.Background(), callRequest(ToolVerifyOutput, nil))
	require.NoError(t, err)
	text := extractText(t, result)
	assert.Contains(t, text, "Verification FAILED")
	assert.Contains(t, text, "meta.json")

	_, err = s.handleImportFile(context.Background(), callRequest(ToolImportFile, map[string]any{
		"path": "alpha.pdf", "images": false, "write": true,
	}))
	require.NoError(t, err)

	result, err = s.handleVerifyOutput(context.Background(), callRequest(ToolVerifyOutput, map[string]any{"data_dir": cfg.OutputDir}))
	require.NoError(t, err)
	text = extractText(t, result)
	assert.Contains(t, text, "Verification OK")
	assert.Contains(t, text, "Questions: 2")
	assert.FileExists(t, filepath.Join(cfg.OutputDir, verify.ResultFile))

	result, err = s.handleVerifyOutput(context.Background(), callRequest(ToolVerifyOutput, map[string]any{"data_dir": "/"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleServerInfo(t *testing.T) {
	s, cfg := newTestServer(t, nil)
	for i := 0; i < maxListedFiles+2; i++ {
		writeFile(t, filepath.Join(cfg.InputDir, fmt.Sprintf("exam%02d.pdf", i)), "%PDF-1.4")
	}

	result, err := s.handleServerInfo(context.Background(), callRequest(ToolServerInfo, nil))
	require.NoError(t, err)
	text := extractText(t, result)
	assert.Contains(t, text, "exam-pdf-importer v1.0.0")
	assert.Contains(t, text, "Input Contents (12 PDF files found)")
	assert.Contains(t, text, "... and 2 more files")
	assert.Contains(t, text, "Recovered Panics: 0")
	for _, name := range []string{ToolListInputs, ToolValidatePDF, ToolImportFile, ToolParseText, ToolVerifyOutput, ToolServerInfo} {
		assert.Contains(t, text, "- "+name+": ")
	}
}

func TestServerInfoReportsRecoveredPanics(t *testing.T) {
	s, _ := newTestServer(t, nil)
	require.Same(t, s.withImg.Guard(), s.textOnly.Guard())

	err := stability.Do(context.Background(), s.textOnly.Guard(), "page text", 0, func(context.Context) error {
		panic("broken xref")
	})
	require.ErrorIs(t, err, stability.ErrPanic)

	result, err := s.handleServerInfo(context.Background(), callRequest(ToolServerInfo, nil))
	require.NoError(t, err)
	assert.Contains(t, extractText(t, result), "Recovered Panics: 1")
}
