package quiz

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/a3tai/exam-pdf-importer/internal/keywords"
)

// SeenSet accumulates record ids already emitted for a dataset.
type SeenSet map[string]struct{}

// Add records id and reports whether it was new.
func (s SeenSet) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Result is everything parsed out of one document.
type Result struct {
	Records            []Record
	Failures           []ParseFailure
	Leaks              []LeakageSuspect
	AnswerUnknown      []string // question numbers that defaulted to answer 0
	MissingExplanation int
	UsedFallback       bool
	HasText            bool
}

// Parser assembles question records from page text.
type Parser struct {
	normalizer *Normalizer
	strategies []OptionStrategy
	trimmer    *Trimmer
	validate   *validator.Validate
}

// NewParser builds a parser from keyword tables.
func NewParser(tables *keywords.Tables) *Parser {
	return &Parser{
		normalizer: NewNormalizer(tables.Noise()),
		strategies: DefaultStrategies(),
		trimmer:    NewTrimmer(tables.CrossPageHeaders),
		validate:   validator.New(),
	}
}

// ParseDocument segments each page and assembles records. When the pages
// yield fewer than three records but the document has text, the per-page
// results are discarded and the whole document is parsed once as a single
// text.
func (p *Parser) ParseDocument(ds Dataset, pages []Page) Result {
	var res Result
	normalized := make([]string, 0, len(pages))
	seen := SeenSet{}

	for _, pg := range pages {
		text := p.normalizer.Normalize(pg.Text)
		normalized = append(normalized, text)
		if strings.TrimSpace(text) != "" {
			res.HasText = true
		}
		for b := range Segment(text, pg.Number) {
			seen = p.collect(&res, ds, b, seen)
		}
	}

	if len(res.Records) >= minRecordsPerDoc || !res.HasText {
		return res
	}

	fallback, _ := p.ParseWhole(ds, strings.Join(normalized, "\n"), SeenSet{})
	fallback.HasText = true
	return fallback
}

// ParseWhole parses text that spans the whole document. seen carries ids
// emitted so far and is returned with this pass's ids added; the first
// occurrence of an id wins.
func (p *Parser) ParseWhole(ds Dataset, text string, seen SeenSet) (Result, SeenSet) {
	res := Result{UsedFallback: true}
	for b := range Segment(text, 0) {
		seen = p.collect(&res, ds, b, seen)
	}
	return res, seen
}

func (p *Parser) collect(res *Result, ds Dataset, b Block, seen SeenSet) SeenSet {
	out := p.Assemble(ds, b)
	res.Leaks = append(res.Leaks, out.Leaks...)
	if out.Failure != nil {
		res.Failures = append(res.Failures, *out.Failure)
		return seen
	}

	if !seen.Add(out.Record.ID) {
		res.Failures = append(res.Failures, ParseFailure{
			Dataset: ds.Slug, QNo: b.QNo, Page: b.Page, Reason: ReasonDuplicateID,
		})
		return seen
	}

	if !out.AnswerKnown {
		res.AnswerUnknown = append(res.AnswerUnknown, b.QNo)
	}
	if out.Record.Explanation == "" {
		res.MissingExplanation++
	}
	res.Records = append(res.Records, out.Record)
	return seen
}

// Outcome is the result of assembling one block. Exactly one of Record and
// Failure is meaningful.
type Outcome struct {
	Record      Record
	Failure     *ParseFailure
	Leaks       []LeakageSuspect
	AnswerKnown bool
}

// Assemble turns one block into a record or a parse failure.
func (p *Parser) Assemble(ds Dataset, b Block) Outcome {
	var out Outcome
	fail := func(detail string) Outcome {
		out.Failure = &ParseFailure{
			Dataset: ds.Slug, QNo: b.QNo, Page: b.Page, Reason: ReasonParseFailed, Detail: detail,
		}
		return out
	}

	answer := ExtractAnswer(b.Text)
	question, explanation := ExtractExplanation(b.Text)

	split := SplitOptions(p.strategies, stripHeader(question))
	if !split.Matched() {
		return fail("no option notation matched")
	}

	stem, snippet, cut := p.trimmer.Trim(split.Stem)
	if cut {
		out.Leaks = append(out.Leaks, LeakageSuspect{
			Dataset: ds.Slug, QNo: b.QNo, Reason: ReasonLeakStem, Snippet: snippet,
		})
	}

	options := make([]string, 4)
	for i, opt := range split.Options {
		kept, snippet, cut := p.trimmer.Trim(opt)
		if cut {
			out.Leaks = append(out.Leaks, LeakageSuspect{
				Dataset: ds.Slug, QNo: b.QNo, Reason: ReasonLeakOption, Snippet: snippet,
			})
		}
		if kept == "" {
			return fail("empty_after_trim")
		}
		options[i] = kept
	}

	stem = trimSpace(stripHeader(stem))
	if stem == "" {
		stem = EmptyStemText
	}

	out.AnswerKnown = answer.Known
	out.Record = Record{
		ID:            ds.Slug + "_" + b.QNo,
		Subject:       ds.Subject,
		Year:          ds.Year,
		Chapter:       DefaultChapter,
		Type:          TypeSingle,
		QuestionText:  stem,
		Options:       options,
		AnswerIndex:   answer.Index,
		Explanation:   explanation,
		Source:        FormatSource(ds.File, b.Page, b.QNo),
		SourceDisplay: FormatSourceDisplay(ds.File, b.Page, b.QNo),
		QNo:           b.QNo,
		Page:          b.Page,
	}

	if err := p.validate.Struct(out.Record); err != nil {
		out.Record = Record{}
		return fail(err.Error())
	}
	return out
}
