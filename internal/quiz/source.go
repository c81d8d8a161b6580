package quiz

import (
	"fmt"
	"strconv"
	"strings"
)

// SourceRef is a parsed source locator.
type SourceRef struct {
	File string
	Page int // 0 for whole-document records
	QNo  string
}

// FormatSource builds "<file>#p<page>#Q<qno>", or "<file>#Q<qno>" when page
// is 0.
func FormatSource(file string, page int, qno string) string {
	if page > 0 {
		return fmt.Sprintf("%s#p%d#Q%s", file, page, qno)
	}
	return fmt.Sprintf("%s#Q%s", file, qno)
}

// FormatSourceDisplay is the reader-facing form of a locator.
func FormatSourceDisplay(file string, page int, qno string) string {
	if page > 0 {
		return fmt.Sprintf("%s 第%d頁 第%s題", fileStem(file), page, qno)
	}
	return fmt.Sprintf("%s 第%s題", fileStem(file), qno)
}

// ParseSource reverses FormatSource. File names may themselves contain '#'.
func ParseSource(src string) (SourceRef, error) {
	qIdx := strings.LastIndex(src, "#Q")
	if qIdx < 0 {
		return SourceRef{}, fmt.Errorf("source %q has no question part", src)
	}

	ref := SourceRef{QNo: src[qIdx+2:]}
	if _, err := strconv.Atoi(ref.QNo); err != nil {
		return SourceRef{}, fmt.Errorf("source %q has non-numeric question %q", src, ref.QNo)
	}

	head := src[:qIdx]
	if pIdx := strings.LastIndex(head, "#p"); pIdx >= 0 {
		if page, err := strconv.Atoi(head[pIdx+2:]); err == nil && page > 0 {
			ref.Page = page
			head = head[:pIdx]
		}
	}

	if head == "" {
		return SourceRef{}, fmt.Errorf("source %q has no file part", src)
	}
	ref.File = head
	return ref, nil
}
