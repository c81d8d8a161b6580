package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Validator checks that files are PDFs worth opening.
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a validator rejecting files above maxFileSize bytes.
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{maxFileSize: maxFileSize}
}

// ValidateFile checks the file on disk and then its structure with pdfcpu in
// relaxed mode. A failed check is reported in the result, not as an error.
func (v *Validator) ValidateFile(path string) ValidationResult {
	result := ValidationResult{Path: path}

	pages, err := v.validate(path)
	if err != nil {
		result.Message = err.Error()
		return result
	}
	result.Valid = true
	result.PageCount = pages
	return result
}

func (v *Validator) validate(path string) (pages int, err error) {
	if path == "" {
		return 0, fmt.Errorf("path cannot be empty")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return 0, fmt.Errorf("cannot access file: %w", err)
	}
	if err := v.ValidateFileInfo(path, info); err != nil {
		return 0, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid PDF file: %w", recovered(r))
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	ctx, err := api.ReadContext(f, newRelaxedConfig())
	if err != nil {
		return 0, fmt.Errorf("invalid PDF file: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("invalid page tree: %w", err)
	}
	if ctx.PageCount == 0 {
		return 0, fmt.Errorf("PDF has no pages: %s", path)
	}
	return ctx.PageCount, nil
}

// ValidateFileInfo performs the checks that need no file access.
func (v *Validator) ValidateFileInfo(path string, info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if !isPDFName(path) {
		return fmt.Errorf("file is not a PDF: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", path)
	}
	if v.maxFileSize > 0 && info.Size() > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), v.maxFileSize)
	}
	return nil
}

func isPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
