package pdf

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentClosed   = errors.New("document is closed")
	ErrInvalidPage      = errors.New("invalid page number")
	ErrMalformedContent = errors.New("malformed content stream")
	ErrEmptyRegion      = errors.New("empty render region")
)

// DocumentError reports a failed operation on a document, optionally tied to
// a page.
type DocumentError struct {
	Path string `json:"path"`
	Op   string `json:"operation"`
	Page int    `json:"page,omitempty"`
	Err  error  `json:"error"`
}

func (e *DocumentError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("pdf %s: %s page %d: %v", e.Path, e.Op, e.Page, e.Err)
	}
	return fmt.Sprintf("pdf %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// recovered turns a panic value from the PDF library into an error.
func recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrMalformedContent, err)
	}
	return fmt.Errorf("%w: %v", ErrMalformedContent, r)
}
