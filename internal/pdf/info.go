package pdf

import (
	"strings"

	"github.com/ledongthuc/pdf"
)

// DocumentInfo is the document information dictionary.
type DocumentInfo struct {
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Producer string `json:"producer,omitempty"`
	Created  string `json:"created,omitempty"`
}

// Info reads the information dictionary. Missing or malformed entries are
// left empty.
func (d *FileDocument) Info() (info DocumentInfo) {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()
	defer func() {
		if recover() != nil {
			info = DocumentInfo{}
		}
	}()
	return readInfo(d.reader)
}

func readInfo(r *pdf.Reader) DocumentInfo {
	var info DocumentInfo
	trailer := r.Trailer()
	if trailer.IsNull() {
		return info
	}
	dict := trailer.Key("Info")
	if dict.IsNull() {
		return info
	}

	text := func(key string) string {
		return strings.TrimSpace(dict.Key(key).Text())
	}
	info.Title = text("Title")
	info.Author = text("Author")
	info.Subject = text("Subject")
	info.Producer = text("Producer")
	info.Created = text("CreationDate")
	return info
}

// DirectoryStats summarizes the files returned by FindPDFs.
type DirectoryStats struct {
	TotalFiles       int    `json:"total_files"`
	Importable       int    `json:"importable"`
	TotalSize        int64  `json:"total_size"`
	LargestFileName  string `json:"largest_file_name,omitempty"`
	LargestFileSize  int64  `json:"largest_file_size,omitempty"`
	SmallestFileName string `json:"smallest_file_name,omitempty"`
	SmallestFileSize int64  `json:"smallest_file_size,omitempty"`
}

// Summarize computes size statistics over files. Files with a problem are
// counted but excluded from the size figures.
func Summarize(files []FileInfo) DirectoryStats {
	st := DirectoryStats{TotalFiles: len(files)}
	for _, f := range files {
		if f.Problem != "" {
			continue
		}
		st.Importable++
		st.TotalSize += f.Size
		if st.LargestFileName == "" || f.Size > st.LargestFileSize {
			st.LargestFileName, st.LargestFileSize = f.Name, f.Size
		}
		if st.SmallestFileName == "" || f.Size < st.SmallestFileSize {
			st.SmallestFileName, st.SmallestFileSize = f.Name, f.Size
		}
	}
	return st
}
