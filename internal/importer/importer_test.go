package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/exam-pdf-importer/internal/imaging"
	"github.com/a3tai/exam-pdf-importer/internal/keywords"
	"github.com/a3tai/exam-pdf-importer/internal/pdf"
)

const figurePage = "1.(2)如下圖所示之符號代表何者？\n" +
	"①門②窗③牆④柱\n" +
	"2.(1)依CNS規定下列圖例何者正確？\n" +
	"①甲②乙③丙④丁\n" +
	"3.(3)如右圖之做法何者錯誤？\n" +
	"①一②二③三④四"

func questions(first, last int) string {
	var b strings.Builder
	for q := first; q <= last; q++ {
		fmt.Fprintf(&b, "%d.(%d)第%d題的題幹內容①甲②乙③丙④丁\n", q, q%4+1, q)
	}
	return b.String()
}

func memoryDoc(t *testing.T, name string, pages ...pdf.MemoryPage) *pdf.MemoryDocument {
	t.Helper()
	doc, err := pdf.NewMemoryDocument(name, pages)
	require.NoError(t, err)
	return doc
}

func newTestImporter(t *testing.T, opts Options, docs map[string][]pdf.MemoryPage) *Importer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	open := func(path string) (pdf.Document, error) {
		pages, ok := docs[filepath.Base(path)]
		if !ok {
			return nil, &pdf.DocumentError{Path: path, Op: "open", Err: errors.New("not a PDF")}
		}
		return pdf.NewMemoryDocument(filepath.Base(path), pages)
	}
	return New(opts, keywords.MustDefault(), logger, WithOpener(open))
}

func TestImportDocumentTextOnly(t *testing.T) {
	imp := newTestImporter(t, Options{}, nil)
	doc := memoryDoc(t, "alpha.pdf",
		pdf.MemoryPage{Text: questions(1, 3)},
		pdf.MemoryPage{Text: questions(4, 5)},
	)

	res, err := imp.ImportDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "alpha", res.Dataset.Slug)
	require.Len(t, res.Records, 5)
	assert.Equal(t, "alpha_1", res.Records[0].ID)
	assert.Equal(t, "alpha.pdf#p2#Q4", res.Records[3].Source)
	assert.Equal(t, []string{"甲", "乙", "丙", "丁"}, res.Records[0].Options)
	assert.Equal(t, 1, res.Records[0].AnswerIndex)

	assert.False(t, res.Failed())
	assert.Equal(t, 5, res.Report.Records)
	assert.False(t, res.Report.UsedFallback)
	assert.Zero(t, res.Report.ImageQuestions)
	assert.Empty(t, res.Report.ImageDecisions)
}

func TestImportDocumentWithImages(t *testing.T) {
	assets := t.TempDir()
	imp := newTestImporter(t, Options{
		Images:  true,
		Imaging: imaging.Config{AssetsDir: assets},
	}, nil)
	doc := memoryDoc(t, "figures.pdf", pdf.MemoryPage{
		Text:     figurePage,
		Drawings: []pdf.Rect{{X0: 300, Y0: 62, X1: 400, Y1: 76}},
	})

	res, err := imp.ImportDocument(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, res.Records, 3)

	assert.Equal(t, 3, res.Report.ImageQuestions)
	assert.Equal(t, 1, res.Report.MissingImages)
	require.Len(t, res.Records[0].Assets, 1)
	assert.Equal(t, "/assets/q/figures/Q001.png", res.Records[0].Assets[0].Src)
	assert.FileExists(t, filepath.Join(assets, "figures", "Q001.png"))
	assert.Empty(t, res.Records[2].Assets)
}

func TestImportDocumentNoText(t *testing.T) {
	imp := newTestImporter(t, Options{}, nil)
	doc := memoryDoc(t, "scan.pdf", pdf.MemoryPage{Images: []pdf.Rect{{X0: 0, Y0: 0, X1: 500, Y1: 700}}})

	res, err := imp.ImportDocument(context.Background(), doc)
	require.ErrorIs(t, err, ErrNoText)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Report.Error, "no text extracted")
	assert.Empty(t, res.Records)
}

func TestImportFileOpenFailure(t *testing.T) {
	imp := newTestImporter(t, Options{}, nil)

	res, err := imp.ImportFile(context.Background(), "/in/broken.pdf")
	var docErr *pdf.DocumentError
	require.ErrorAs(t, err, &docErr)
	assert.Equal(t, "open", docErr.Op)
	assert.Equal(t, "broken", res.Dataset.Slug)
	assert.Equal(t, "broken.pdf", res.Report.File)
	assert.NotEmpty(t, res.Report.Error)
}

func TestImportFileCancelled(t *testing.T) {
	imp := newTestImporter(t, Options{}, map[string][]pdf.MemoryPage{
		"alpha.pdf": {{Text: questions(1, 3)}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := imp.ImportFile(ctx, "alpha.pdf")
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, res.Failed())
}

func TestRunKeepsInputOrder(t *testing.T) {
	docs := map[string][]pdf.MemoryPage{
		"a.pdf": {{Text: questions(1, 3)}},
		"b.pdf": {{Text: questions(1, 4)}},
		"d.pdf": {{Text: questions(1, 5)}},
	}
	imp := newTestImporter(t, Options{Workers: 3}, docs)

	results := imp.Run(context.Background(), []string{"d.pdf", "c.pdf", "a.pdf", "b.pdf"})
	require.Len(t, results, 4)

	assert.Equal(t, "d", results[0].Dataset.Slug)
	assert.Len(t, results[0].Records, 5)
	assert.True(t, results[1].Failed(), "c.pdf cannot be opened")
	assert.Len(t, results[2].Records, 3)
	assert.Len(t, results[3].Records, 4)
}

// cachedDoc is a memory document that reports page cache counters like a
// file-backed one.
type cachedDoc struct {
	*pdf.MemoryDocument
}

func (cachedDoc) CacheStats() pdf.CacheStats {
	return pdf.CacheStats{Hits: 4, Misses: 2, Size: 2, Capacity: 8}
}

func TestImportDocumentPageCache(t *testing.T) {
	imp := newTestImporter(t, Options{}, nil)

	res, err := imp.ImportDocument(context.Background(), cachedDoc{memoryDoc(t, "alpha.pdf", pdf.MemoryPage{Text: questions(1, 3)})})
	require.NoError(t, err)
	require.NotNil(t, res.Report.PageCache)
	assert.Equal(t, int64(4), res.Report.PageCache.Hits)
	assert.Equal(t, int64(2), res.Report.PageCache.Misses)

	res, err = imp.ImportDocument(context.Background(), memoryDoc(t, "beta.pdf", pdf.MemoryPage{Text: questions(1, 3)}))
	require.NoError(t, err)
	assert.Nil(t, res.Report.PageCache)
}
