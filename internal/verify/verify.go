// Package verify checks a published data directory before deployment: the
// dataset index, every dataset file, every record and every referenced
// image.
package verify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/exam-pdf-importer/internal/importer"
	"github.com/a3tai/exam-pdf-importer/internal/quiz"
	"github.com/a3tai/exam-pdf-importer/internal/report"
)

// ResultFile is written next to the data it describes.
const ResultFile = "verify_result.json"

const maxProblems = 500

var requiredFields = []string{"id", "question_text", "options", "answer_index", "type"}

// Options locates the data and the assets it references.
type Options struct {
	DataDir string
	// PublicDir resolves root-relative asset URLs. Defaults to the parent of
	// DataDir.
	PublicDir string
	// AssetsDir and URLPrefix map asset URLs written by the importer back to
	// files when the assets live outside PublicDir.
	AssetsDir string
	URLPrefix string
}

// Problem is one integrity violation.
type Problem struct {
	File     string `json:"file,omitempty"`
	Question int    `json:"question,omitempty"` // 1-based position in the file
	ID       string `json:"id,omitempty"`
	Message  string `json:"message"`
}

func (p Problem) String() string {
	var b strings.Builder
	if p.File != "" {
		b.WriteString(p.File)
		if p.Question > 0 {
			fmt.Fprintf(&b, " #%d", p.Question)
		}
		if p.ID != "" {
			fmt.Fprintf(&b, " (id=%s)", p.ID)
		}
		b.WriteString(": ")
	}
	b.WriteString(p.Message)
	return b.String()
}

// Result is the content of verify_result.json.
type Result struct {
	OK             bool      `json:"ok"`
	DataVersion    string    `json:"data_version"`
	DatasetCount   int       `json:"dataset_count"`
	TotalQuestions int       `json:"total_questions"`
	VerifiedAt     time.Time `json:"verified_at"`
	Problems       []Problem `json:"problems"`
	Truncated      bool      `json:"truncated,omitempty"`
}

// Write stores the result as dir/verify_result.json.
func (r *Result) Write(dir string) error {
	return report.WriteJSONFile(filepath.Join(dir, ResultFile), r)
}

// Verifier checks data directories.
type Verifier struct {
	opts     Options
	validate *validator.Validate
	logger   logrus.FieldLogger
}

// New creates a verifier.
func New(opts Options, logger logrus.FieldLogger) *Verifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.PublicDir == "" {
		opts.PublicDir = filepath.Dir(filepath.Clean(opts.DataDir))
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Verifier{opts: opts, validate: v, logger: logger}
}

// Verify checks everything and collects every problem found. The returned
// error is reserved for a missing data directory.
func (v *Verifier) Verify() (*Result, error) {
	info, err := os.Stat(v.opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("cannot access data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data path %s is not a directory", v.opts.DataDir)
	}

	res := &Result{VerifiedAt: time.Now().UTC(), Problems: []Problem{}}

	meta, err := importer.ReadMeta(v.opts.DataDir)
	switch {
	case err != nil:
		res.add(Problem{File: importer.MetaFile, Message: err.Error()})
	case meta.DataVersion == "":
		res.add(Problem{File: importer.MetaFile, Message: "data_version is missing"})
	default:
		res.DataVersion = meta.DataVersion
	}

	idx, err := importer.ReadIndex(filepath.Join(v.opts.DataDir, importer.IndexFile))
	switch {
	case err != nil:
		res.add(Problem{File: importer.IndexFile, Message: err.Error()})
	case idx == nil:
		res.add(Problem{File: importer.IndexFile, Message: "file is missing"})
	case idx.Datasets == nil:
		res.add(Problem{File: importer.IndexFile, Message: "datasets array is missing"})
	default:
		res.DatasetCount = len(idx.Datasets)
		for _, entry := range idx.Datasets {
			v.checkDataset(res, entry)
		}
	}

	res.OK = len(res.Problems) == 0
	v.logger.WithFields(logrus.Fields{
		"ok":        res.OK,
		"datasets":  res.DatasetCount,
		"questions": res.TotalQuestions,
		"problems":  len(res.Problems),
	}).Info("data verified")
	return res, nil
}

func (v *Verifier) checkDataset(res *Result, entry importer.IndexEntry) {
	if err := v.validate.Struct(entry); err != nil {
		res.add(Problem{File: importer.IndexFile, Message: fmt.Sprintf("dataset %q: %s", entry.ID, fieldErrors(err))})
		return
	}

	data, err := os.ReadFile(filepath.Join(v.opts.DataDir, entry.File))
	if err != nil {
		res.add(Problem{File: entry.File, Message: "dataset file is missing"})
		return
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		res.add(Problem{File: entry.File, Message: "root must be an array of questions: " + err.Error()})
		return
	}

	for i, item := range raw {
		res.TotalQuestions++
		for _, p := range v.checkRecord(item) {
			p.File = entry.File
			p.Question = i + 1
			res.add(p)
		}
	}
}

func (v *Verifier) checkRecord(item json.RawMessage) []Problem {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return []Problem{{Message: "question is not an object"}}
	}

	var rec quiz.Record
	_ = json.Unmarshal(item, &rec)

	var problems []Problem
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			problems = append(problems, Problem{ID: rec.ID, Message: "missing field " + f})
		}
	}
	if len(problems) > 0 {
		return problems
	}

	if err := json.Unmarshal(item, &rec); err != nil {
		return []Problem{{ID: rec.ID, Message: "malformed question: " + err.Error()}}
	}
	if err := v.validate.Struct(rec); err != nil {
		problems = append(problems, Problem{ID: rec.ID, Message: fieldErrors(err)})
	}
	for _, a := range rec.Assets {
		if a.Type != quiz.AssetTypeImage || a.Src == "" {
			continue
		}
		path, ok := v.assetPath(a.Src)
		if !ok {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			problems = append(problems, Problem{ID: rec.ID, Message: "image is missing: " + a.Src})
		}
	}
	return problems
}

// assetPath maps an asset URL to a file. Absolute URLs are not checked.
func (v *Verifier) assetPath(src string) (string, bool) {
	if strings.Contains(src, "://") {
		return "", false
	}
	if v.opts.AssetsDir != "" && v.opts.URLPrefix != "" {
		prefix := strings.TrimRight(v.opts.URLPrefix, "/") + "/"
		if rest, ok := strings.CutPrefix(src, prefix); ok {
			return filepath.Join(v.opts.AssetsDir, filepath.FromSlash(rest)), true
		}
	}
	return filepath.Join(v.opts.PublicDir, filepath.FromSlash(strings.TrimPrefix(src, "/"))), true
}

func (r *Result) add(p Problem) {
	if len(r.Problems) >= maxProblems {
		r.Truncated = true
		return
	}
	r.Problems = append(r.Problems, p)
}

func fieldErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s fails %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s fails %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
