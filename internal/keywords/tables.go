// Package keywords holds the versioned heuristic tables used by the importer:
// noise line patterns, cross-page header phrases, image keywords and the
// filename-to-slug mapping.
package keywords

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultTables []byte

// SlugEntry maps a filename fragment to an ASCII token.
type SlugEntry struct {
	Match string `yaml:"match"`
	Token string `yaml:"token"`
	Exact bool   `yaml:"exact,omitempty"`
}

// Tables is one loaded version of the keyword data.
type Tables struct {
	Version          string      `yaml:"version"`
	NoisePatterns    []string    `yaml:"noise_patterns"`
	CrossPageHeaders []string    `yaml:"cross_page_headers"`
	ImageSuspect     []string    `yaml:"image_suspect_keywords"`
	ForceRender      []string    `yaml:"force_render_keywords"`
	SlugMap          []SlugEntry `yaml:"slug_map"`

	noise []*regexp.Regexp
}

// Default returns the tables compiled into the binary.
func Default() (*Tables, error) {
	return Parse(defaultTables)
}

// MustDefault is Default for package-level initialization and tests.
func MustDefault() *Tables {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads tables from path. An empty path yields the embedded defaults.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword tables: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("keyword tables %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes YAML tables and compiles the noise patterns.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode keyword tables: %w", err)
	}
	if t.Version == "" {
		return nil, fmt.Errorf("keyword tables missing version")
	}

	t.noise = make([]*regexp.Regexp, 0, len(t.NoisePatterns))
	for _, p := range t.NoisePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid noise pattern %q: %w", p, err)
		}
		t.noise = append(t.noise, re)
	}

	for i, e := range t.SlugMap {
		if e.Match == "" || e.Token == "" {
			return nil, fmt.Errorf("slug_map entry %d needs both match and token", i)
		}
	}

	return &t, nil
}

// Noise returns the compiled noise line patterns.
func (t *Tables) Noise() []*regexp.Regexp {
	return t.noise
}

// SuggestsImage reports whether text mentions a figure or symbol.
func (t *Tables) SuggestsImage(text string) bool {
	return containsAny(text, t.ImageSuspect)
}

// ForcesRender reports whether text mentions something usually drawn as
// vector graphics that primitive detection tends to miss.
func (t *Tables) ForcesRender(text string) bool {
	return containsAny(text, t.ForceRender)
}

// containsAny matches after NFKC so full-width Latin (ＣＮＳ) hits too.
func containsAny(text string, words []string) bool {
	folded := norm.NFKC.String(text)
	for _, w := range words {
		if w == "" {
			continue
		}
		if strings.Contains(folded, norm.NFKC.String(w)) {
			return true
		}
	}
	return false
}
