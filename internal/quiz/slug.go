package quiz

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/a3tai/exam-pdf-importer/internal/keywords"
)

const maxSlugLen = 48

var (
	slugUnsafe  = regexp.MustCompile(`[^a-z0-9]+`)
	leadingYear = regexp.MustCompile(`^(\d{2,3})(?:\D|$)`)
)

// Dataset identifies the records produced from one source document.
type Dataset struct {
	Slug    string
	File    string // base file name, e.g. 105-126002工程管理學科.pdf
	Subject string
	Year    *int
}

// NewDataset derives the dataset identity from a document file name.
func NewDataset(file string, tables *keywords.Tables, subject string) Dataset {
	base := filepath.Base(file)
	if subject == "" {
		subject = DefaultSubject
	}
	return Dataset{
		Slug:    Slugify(base, tables),
		File:    base,
		Subject: subject,
		Year:    yearFromName(base),
	}
}

// Label is the human label written to the dataset index.
func (d Dataset) Label() string {
	return truncateRunes(fileStem(d.File), 30)
}

// yearFromName reads a leading ROC year such as 105 from the file name.
func yearFromName(name string) *int {
	m := leadingYear.FindStringSubmatch(fileStem(name))
	if m == nil {
		return nil
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &y
}

func fileStem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Slugify maps a file name to a [a-z0-9_] identifier. Exact table entries
// win; otherwise table fragments become their tokens and the rest is folded
// to ASCII. Anything that could not be represented adds a short hash so
// different names never collapse to the same slug.
func Slugify(file string, tables *keywords.Tables) string {
	stem := strings.TrimSpace(norm.NFKC.String(fileStem(filepath.Base(file))))

	var entries []keywords.SlugEntry
	if tables != nil {
		entries = tables.SlugMap
	}
	for _, e := range entries {
		if e.Exact && e.Match == stem {
			return clean(e.Token)
		}
	}

	// Longer fragments first so 室內裝修工程管理 is not split by 工程管理.
	fragments := make([]keywords.SlugEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Exact {
			fragments = append(fragments, e)
		}
	}
	sort.SliceStable(fragments, func(i, j int) bool {
		return len(fragments[i].Match) > len(fragments[j].Match)
	})

	mapped := stem
	for _, e := range fragments {
		mapped = strings.ReplaceAll(mapped, e.Match, " "+e.Token+" ")
	}

	folded, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), mapped)
	if err != nil {
		folded = mapped
	}

	lossy := false
	var b strings.Builder
	for _, r := range folded {
		if r > unicode.MaxASCII {
			lossy = true
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}

	slug := truncateSlug(clean(b.String()))
	switch {
	case slug == "":
		return fmt.Sprintf("ds_%08x", hash32(stem))
	case lossy:
		return fmt.Sprintf("%s_%06x", slug, hash32(stem)&0xffffff)
	}
	return slug
}

func clean(s string) string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

func truncateSlug(s string) string {
	if len(s) <= maxSlugLen {
		return s
	}
	return strings.TrimRight(s[:maxSlugLen], "_")
}

func hash32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
