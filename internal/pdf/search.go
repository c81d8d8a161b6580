package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Finder discovers input PDFs below a directory.
type Finder struct {
	validator *Validator
}

// NewFinder creates a finder that flags files above maxFileSize bytes.
func NewFinder(maxFileSize int64) *Finder {
	return &Finder{validator: NewValidator(maxFileSize)}
}

// FindPDFs walks directory and returns the PDFs in it sorted by path.
// Hidden directories and symlinks leading outside directory are skipped.
// Files failing the quick validation are returned with Problem set.
func (f *Finder) FindPDFs(directory string) ([]FileInfo, error) {
	if directory == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}
	if _, err := os.Stat(directory); os.IsNotExist(err) {
		return nil, fmt.Errorf("directory does not exist: %s", directory)
	}

	root, err := filepath.Abs(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory path: %w", err)
	}

	var files []FileInfo
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		within, err := isPathWithinDirectory(path, root)
		if err != nil || !within {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !isPDFName(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		fi := FileInfo{
			Path:         path,
			Name:         info.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		}
		if err := f.validator.ValidateFileInfo(path, info); err != nil {
			fi.Problem = err.Error()
		}
		files = append(files, fi)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// isPathWithinDirectory resolves symlinks and reports whether path stays
// inside directory.
func isPathWithinDirectory(path, directory string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	realPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return false, fmt.Errorf("failed to evaluate symlinks: %w", err)
		}
		realPath = absPath
	}
	realDir, err := filepath.EvalSymlinks(directory)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate directory symlinks: %w", err)
	}

	realPath = filepath.Clean(realPath)
	realDir = filepath.Clean(realDir)
	if realPath == realDir {
		return true, nil
	}
	return strings.HasPrefix(realPath, realDir+string(filepath.Separator)), nil
}
