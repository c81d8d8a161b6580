package pdf

// FileInfo describes a PDF found on disk.
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
	// Problem is set when the file failed the quick size and name checks.
	Problem string `json:"problem,omitempty"`
}

// ValidationResult is the outcome of a structural check.
type ValidationResult struct {
	Path      string `json:"path"`
	Valid     bool   `json:"valid"`
	PageCount int    `json:"page_count,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Options tunes how documents are opened.
type Options struct {
	// FontPath is a TrueType font used to draw text when rendering regions.
	// The built-in Go font is used when empty; it has no CJK glyphs.
	FontPath string
	// CacheSize is the number of parsed pages kept in memory.
	CacheSize int
}
