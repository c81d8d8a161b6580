package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/exam-pdf-importer/internal/config"
	"github.com/a3tai/exam-pdf-importer/internal/descriptions"
	"github.com/a3tai/exam-pdf-importer/internal/importer"
	"github.com/a3tai/exam-pdf-importer/internal/keywords"
	"github.com/a3tai/exam-pdf-importer/internal/pdf"
	"github.com/a3tai/exam-pdf-importer/internal/report"
	"github.com/a3tai/exam-pdf-importer/internal/stability"
	"github.com/a3tai/exam-pdf-importer/internal/verify"
)

// Tool names.
const (
	ToolListInputs   = "exam_list_inputs"
	ToolValidatePDF  = "exam_validate_pdf"
	ToolImportFile   = "exam_import_file"
	ToolParseText    = "exam_parse_text"
	ToolVerifyOutput = "exam_verify_output"
	ToolServerInfo   = "exam_server_info"
)

const (
	pastedFileName = "pasted.pdf"
	maxListedFiles = 10
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	withImg   *importer.Importer
	textOnly  *importer.Importer
	finder    *pdf.Finder
	validator *pdf.Validator
	sandbox   *Sandbox
	logger    *logrus.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance. Options are passed to both
// importers the server keeps, one rendering figures and one text only.
func NewServer(cfg *config.Config, tables *keywords.Tables, logger *logrus.Logger, options ...importer.Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if tables == nil {
		return nil, fmt.Errorf("keyword tables cannot be nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	sandbox, err := NewSandbox(cfg.InputDir, cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	opts := cfg.ImportOptions()
	opts.Images = true
	textOpts := opts
	textOpts.Images = false

	// Both importers share one guard so server info reports every panic.
	options = append([]importer.Option{importer.WithGuard(stability.NewGuard(logger))}, options...)

	s := &Server{
		config:    cfg,
		withImg:   importer.New(opts, tables, logger, options...),
		textOnly:  importer.New(textOpts, tables, logger, options...),
		finder:    pdf.NewFinder(cfg.MaxFileSize),
		validator: pdf.NewValidator(cfg.MaxFileSize),
		sandbox:   sandbox,
		logger:    logger,
		mcpServer: server.NewMCPServer(
			cfg.ServerName,
			cfg.Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(ToolListInputs,
		mcp.WithDescription(descriptions.GetToolDescription(ToolListInputs)),
		mcp.WithString("directory",
			mcp.Description("Directory to list, relative to the input directory (uses the input directory if empty)"),
		),
	), s.handleListInputs)

	s.mcpServer.AddTool(mcp.NewTool(ToolValidatePDF,
		mcp.WithDescription(descriptions.GetToolDescription(ToolValidatePDF)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file, absolute or relative to the input directory"),
		),
	), s.handleValidatePDF)

	s.mcpServer.AddTool(mcp.NewTool(ToolImportFile,
		mcp.WithDescription(descriptions.GetToolDescription(ToolImportFile)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file, absolute or relative to the input directory"),
		),
		mcp.WithBoolean("images",
			mcp.Description("Crop figures for questions that refer to one (defaults to the server setting)"),
		),
		mcp.WithBoolean("write",
			mcp.Description("Write the dataset, index.json and meta.json to the output directory"),
		),
	), s.handleImportFile)

	s.mcpServer.AddTool(mcp.NewTool(ToolParseText,
		mcp.WithDescription(descriptions.GetToolDescription(ToolParseText)),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Exam text, one question per numbered line"),
		),
		mcp.WithString("file_name",
			mcp.Description("File name used for the dataset id and record sources"),
		),
	), s.handleParseText)

	s.mcpServer.AddTool(mcp.NewTool(ToolVerifyOutput,
		mcp.WithDescription(descriptions.GetToolDescription(ToolVerifyOutput)),
		mcp.WithString("data_dir",
			mcp.Description("Data directory to verify (uses the output directory if empty)"),
		),
	), s.handleVerifyOutput)

	s.mcpServer.AddTool(mcp.NewTool(ToolServerInfo,
		mcp.WithDescription(descriptions.GetToolDescription(ToolServerInfo)),
	), s.handleServerInfo)
}

// Handler functions
func (s *Server) handleListInputs(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := s.config.InputDir
	if d := request.GetString("directory", ""); d != "" {
		dir = d
	}
	dir, err := s.sandbox.Resolve(dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	files, err := s.finder.FindPDFs(dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(files) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No PDF files found in directory: %s", dir)), nil
	}
	return mcp.NewToolResultText(s.formatInputs(dir, files)), nil
}

func (s *Server) handleValidatePDF(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.resolvePath(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := s.validator.ValidateFile(path)
	if !result.Valid {
		return mcp.NewToolResultText(fmt.Sprintf("PDF validation failed for %s: %s", result.Path, result.Message)), nil
	}

	var info pdf.DocumentInfo
	if doc, err := pdf.Open(path, pdf.Options{FontPath: s.config.FontPath}); err == nil {
		info = doc.Info()
		doc.Close()
	} else {
		s.logger.WithError(err).WithField("path", path).Debug("document info unavailable")
	}
	return mcp.NewToolResultText(s.formatValidation(result, info)), nil
}

func (s *Server) handleImportFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.resolvePath(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	imp := s.importerFor(request.GetBool("images", s.config.Images))
	res, err := imp.ImportFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultErrorf("import of %s failed: %v", filepath.Base(path), err), nil
	}

	var written string
	if request.GetBool("write", false) {
		sum, err := imp.Publish(res)
		if err != nil {
			return mcp.NewToolResultErrorf("failed to write dataset: %v", err), nil
		}
		res = sum.Results[0]
		if res.Failed() {
			return mcp.NewToolResultError(res.Report.Error), nil
		}
		if len(sum.Written) > 0 {
			written = sum.Written[0]
		}
	}

	text, err := s.formatImport(res, written)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleParseText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := request.GetString("file_name", pastedFileName)
	if filepath.Ext(name) == "" {
		name += ".pdf"
	}

	doc, err := pdf.NewMemoryDocument(name, []pdf.MemoryPage{{Text: text}})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer doc.Close()

	res, err := s.textOnly.ImportDocument(ctx, doc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := s.formatParse(res)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleVerifyOutput(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := s.config.OutputDir
	if d := request.GetString("data_dir", ""); d != "" {
		dir = d
	}
	dir, err := s.sandbox.Resolve(dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	v := verify.New(verify.Options{
		DataDir:   dir,
		AssetsDir: s.config.AssetsDir,
		URLPrefix: s.config.AssetsURLPrefix,
	}, s.logger)
	result, err := v.Verify()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := result.Write(dir); err != nil {
		s.logger.WithError(err).Warn("verify result not written")
	}

	return mcp.NewToolResultText(s.formatVerify(dir, result)), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var inputs []pdf.FileInfo
	if files, err := s.finder.FindPDFs(s.config.InputDir); err == nil {
		inputs = files
	} else {
		s.logger.WithError(err).Debug("input directory not listed")
	}
	return mcp.NewToolResultText(s.formatServerInfo(inputs)), nil
}

func (s *Server) resolvePath(request mcp.CallToolRequest) (string, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return "", err
	}
	return s.sandbox.Resolve(path)
}

func (s *Server) importerFor(images bool) *importer.Importer {
	if images {
		return s.withImg
	}
	return s.textOnly
}

// Formatting methods
func (s *Server) formatInputs(dir string, files []pdf.FileInfo) string {
	st := pdf.Summarize(files)
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d PDF file(s) in directory: %s\n", st.TotalFiles, dir)
	fmt.Fprintf(&b, "Importable: %d, total size: %d bytes\n", st.Importable, st.TotalSize)
	if st.Importable > 1 {
		fmt.Fprintf(&b, "Largest: %s (%d bytes), smallest: %s (%d bytes)\n",
			st.LargestFileName, st.LargestFileSize, st.SmallestFileName, st.SmallestFileSize)
	}
	b.WriteString("\nFiles:\n")
	for i, f := range files {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f.Name)
		fmt.Fprintf(&b, "   Path: %s\n", f.Path)
		fmt.Fprintf(&b, "   Size: %d bytes\n", f.Size)
		fmt.Fprintf(&b, "   Modified: %s\n", f.ModifiedTime)
		if f.Problem != "" {
			fmt.Fprintf(&b, "   Problem: %s\n", f.Problem)
		}
	}
	return b.String()
}

func (s *Server) formatValidation(result pdf.ValidationResult, info pdf.DocumentInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PDF file %s is valid and readable\n", result.Path)
	fmt.Fprintf(&b, "Pages: %d\n", result.PageCount)
	for _, field := range []struct{ label, value string }{
		{"Title", info.Title},
		{"Author", info.Author},
		{"Subject", info.Subject},
		{"Producer", info.Producer},
		{"Created", info.Created},
	} {
		if field.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", field.label, field.value)
		}
	}
	return b.String()
}

func (s *Server) formatImport(res importer.DocumentResult, written string) (string, error) {
	rep := res.Report
	var b strings.Builder
	fmt.Fprintf(&b, "Imported %s as dataset %s (%s)\n", rep.File, rep.Dataset, res.Dataset.Label())
	fmt.Fprintf(&b, "Records: %d\n", rep.Records)
	if rep.UsedFallback {
		b.WriteString("Segmentation: whole-document fallback\n")
	}
	fmt.Fprintf(&b, "Parse failures: %d\n", len(rep.ParseFailures))
	fmt.Fprintf(&b, "Leakage suspects: %d\n", len(rep.LeakageSuspects))
	fmt.Fprintf(&b, "Answer unknown: %d\n", len(rep.AnswerUnknown))
	if rep.ImageQuestions > 0 {
		fmt.Fprintf(&b, "Image questions: %d (missing images: %d)\n", rep.ImageQuestions, rep.MissingImages)
	}
	if written != "" {
		fmt.Fprintf(&b, "Written: %s\n", written)
	}

	data, err := report.EncodeJSON(rep)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	b.WriteString("\nReport:\n")
	b.Write(data)
	return b.String(), nil
}

func (s *Server) formatParse(res importer.DocumentResult) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Parsed %d question(s) from %s\n", len(res.Records), res.Report.File)
	for _, f := range res.Report.ParseFailures {
		fmt.Fprintf(&b, "Failed: page %d Q%s: %s\n", f.Page, f.QNo, f.Reason)
	}
	if len(res.Report.AnswerUnknown) > 0 {
		fmt.Fprintf(&b, "Answer unknown: %s\n", strings.Join(res.Report.AnswerUnknown, ", "))
	}

	data, err := report.EncodeJSON(res.Records)
	if err != nil {
		return "", fmt.Errorf("failed to encode records: %w", err)
	}
	b.WriteString("\nRecords:\n")
	b.Write(data)
	return b.String(), nil
}

func (s *Server) formatVerify(dir string, res *verify.Result) string {
	var b strings.Builder
	status := "OK"
	if !res.OK {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "Verification %s for %s\n", status, dir)
	fmt.Fprintf(&b, "Data version: %s\n", res.DataVersion)
	fmt.Fprintf(&b, "Datasets: %d\n", res.DatasetCount)
	fmt.Fprintf(&b, "Questions: %d\n", res.TotalQuestions)
	if len(res.Problems) > 0 {
		fmt.Fprintf(&b, "\nProblems (%d):\n", len(res.Problems))
		for _, p := range res.Problems {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		if res.Truncated {
			b.WriteString("- ... further problems not listed\n")
		}
	}
	return b.String()
}

func (s *Server) formatServerInfo(inputs []pdf.FileInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	fmt.Fprintf(&b, "Input Directory: %s\n", s.config.InputDir)
	fmt.Fprintf(&b, "Output Directory: %s\n", s.config.OutputDir)
	fmt.Fprintf(&b, "Assets Directory: %s (URL prefix %s)\n", s.config.AssetsDir, s.config.AssetsURLPrefix)
	fmt.Fprintf(&b, "Images: %t\n", s.config.Images)
	fmt.Fprintf(&b, "Max File Size: %d MB\n", s.config.MaxFileSize/(1024*1024))
	fmt.Fprintf(&b, "Recovered Panics: %d\n\n", s.withImg.Guard().PanicCount())

	if len(inputs) > 0 {
		fmt.Fprintf(&b, "Input Contents (%d PDF files found):\n", len(inputs))
		for i, f := range inputs {
			if i >= maxListedFiles {
				fmt.Fprintf(&b, "   ... and %d more files\n", len(inputs)-maxListedFiles)
				break
			}
			fmt.Fprintf(&b, "   %d. %s (%d bytes)\n", i+1, f.Name, f.Size)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Input Contents: No PDF files found in input directory\n\n")
	}

	b.WriteString("Available Tools:\n")
	for _, name := range descriptions.GetAllToolNames() {
		desc, _, _ := strings.Cut(descriptions.GetToolDescription(name), "\n")
		fmt.Fprintf(&b, "- %s: %s\n", name, desc)
	}
	return b.String()
}

// Run serves the tools on standard input and output until the input closes
// or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve speaks the protocol over in and out.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.WithFields(logrus.Fields{
		"input_dir":  s.config.InputDir,
		"output_dir": s.config.OutputDir,
	}).Info("starting tool server on stdio")

	errLog := s.logger.WriterLevel(logrus.ErrorLevel)
	defer errLog.Close()

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(log.New(errLog, "", 0))

	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
