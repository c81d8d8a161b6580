package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/a3tai/exam-pdf-importer/internal/quiz"
	"github.com/a3tai/exam-pdf-importer/internal/report"
)

// Output file names.
const (
	IndexFile      = "index.json"
	MetaFile       = "meta.json"
	DefaultDataset = "ALL"
)

// Meta identifies the data written by one run.
type Meta struct {
	DataVersion string    `json:"data_version"`
	GeneratedAt time.Time `json:"generated_at"`
	RunID       string    `json:"run_id"`
}

// NewMeta derives the data version from the run start time.
func NewMeta(runID string, started time.Time) Meta {
	return Meta{
		DataVersion: started.UTC().Format("20060102-150405"),
		GeneratedAt: started.UTC(),
		RunID:       runID,
	}
}

// ReadMeta loads meta.json from dir.
func ReadMeta(dir string) (Meta, error) {
	var m Meta
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return m, fmt.Errorf("failed to read %s: %w", MetaFile, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to decode %s: %w", MetaFile, err)
	}
	return m, nil
}

// IndexEntry lists one dataset in index.json.
type IndexEntry struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label"`
	File  string `json:"file" validate:"required"`
}

// Index is the dataset index read by the quiz front end.
type Index struct {
	Datasets       []IndexEntry `json:"datasets" validate:"dive"`
	DefaultDataset string       `json:"default_dataset"`
}

// DatasetFile is the file name records of dataset slug are written to.
func DatasetFile(slug string) string {
	return "questions_" + slug + ".json"
}

// WriteDataset writes records to dir as questions_<slug>.json.
func WriteDataset(dir, slug string, records []quiz.Record) (string, error) {
	if records == nil {
		records = []quiz.Record{}
	}
	path := filepath.Join(dir, DatasetFile(slug))
	if err := report.WriteJSONFile(path, records); err != nil {
		return "", err
	}
	return path, nil
}

// ReadIndex loads an existing index. A missing file yields nil and no error.
func ReadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to decode index %s: %w", path, err)
	}
	return &idx, nil
}

// BuildIndex lists the preserved datasets first, then the imported ones in
// order. A preserved id is taken from the existing index, or added with its
// id as label when its dataset file is present in dir. Imported datasets
// replace preserved entries with the same id.
func BuildIndex(existing *Index, preserve []string, dir string, imported []DocumentResult) Index {
	fresh := map[string]bool{}
	for _, res := range imported {
		fresh[res.Dataset.Slug] = true
	}

	idx := Index{Datasets: []IndexEntry{}, DefaultDataset: DefaultDataset}
	seen := map[string]bool{}
	for _, id := range preserve {
		if fresh[id] || seen[id] {
			continue
		}
		if e, ok := existing.find(id); ok {
			idx.Datasets = append(idx.Datasets, e)
			seen[id] = true
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, DatasetFile(id))); err == nil {
			idx.Datasets = append(idx.Datasets, IndexEntry{ID: id, Label: id, File: DatasetFile(id)})
			seen[id] = true
		}
	}

	for _, res := range imported {
		idx.Datasets = append(idx.Datasets, IndexEntry{
			ID:    res.Dataset.Slug,
			Label: res.Dataset.Label(),
			File:  DatasetFile(res.Dataset.Slug),
		})
	}
	return idx
}

func (x *Index) find(id string) (IndexEntry, bool) {
	if x == nil {
		return IndexEntry{}, false
	}
	for _, e := range x.Datasets {
		if e.ID == id {
			return e, true
		}
	}
	return IndexEntry{}, false
}
