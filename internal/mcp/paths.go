package mcp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sandbox confines tool paths to the directories the server was configured
// with. Relative paths resolve against the first root.
type Sandbox struct {
	roots []string
}

// NewSandbox creates a sandbox over roots. Empty roots are ignored.
func NewSandbox(roots ...string) (*Sandbox, error) {
	s := &Sandbox{}
	for _, r := range roots {
		if r == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve directory %s: %w", r, err)
		}
		s.roots = append(s.roots, filepath.Clean(abs))
	}
	if len(s.roots) == 0 {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	return s, nil
}

// Roots returns the absolute allowed directories.
func (s *Sandbox) Roots() []string {
	return append([]string(nil), s.roots...)
}

// Resolve returns the absolute form of path after checking it stays inside
// one of the roots, symlinks included.
func (s *Sandbox) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.roots[0], path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	for _, root := range s.roots {
		if within(abs, root) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("path is outside configured directories: %s", path)
}

// within reports whether path is root or below it. Both sides are compared
// lexically and after symlink evaluation; a path that does not exist yet is
// judged on its lexical form.
func within(path, root string) bool {
	realRoot := root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		realRoot = resolved
	}
	realPath := path
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		realPath = resolved
	} else if _, statErr := os.Lstat(path); statErr == nil {
		// Exists but cannot be resolved, e.g. a dangling link.
		return false
	}

	lexical := hasPrefix(path, root) || hasPrefix(path, realRoot)
	linked := hasPrefix(realPath, root) || hasPrefix(realPath, realRoot)
	return lexical && linked
}

func hasPrefix(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}
