// Package quiz turns normalized exam text into question records. It owns
// segmentation, answer and option parsing, leakage trimming, explanation
// extraction and record assembly, plus dataset slugs and source locators.
package quiz

// Record field defaults.
const (
	DefaultSubject   = "室內裝修工程管理"
	DefaultChapter   = "ALL"
	TypeSingle       = "single"
	EmptyStemText    = "（題幹解析略）"
	AssetTypeImage   = "image"
	MaxStemRunes     = 2000
	MaxOptionRunes   = 500
	MaxExplainRunes  = 3000
	MaxSnippetRunes  = 80
	minBlockRunes    = 8
	minRecordsPerDoc = 3
)

// Failure reasons reported for blocks that did not become records.
const (
	ReasonParseFailed = "parse_failed"
	ReasonDuplicateID = "duplicate_id"
)

// Leakage reasons.
const (
	ReasonLeakOption = "next_question_or_header_in_option"
	ReasonLeakStem   = "next_question_or_header_in_stem"
)

// Block is a span of text believed to hold exactly one question.
type Block struct {
	QNo  string
	Page int // 0 when the block was cut from whole-document text
	Text string
}

// Page is one page of extracted text, numbered from 1.
type Page struct {
	Number int
	Text   string
}

// Asset is a file referenced by a record.
type Asset struct {
	Type string `json:"type" validate:"eq=image"`
	Src  string `json:"src" validate:"required"`
	Alt  string `json:"alt"`
}

// Record is one emitted question.
type Record struct {
	ID            string   `json:"id" validate:"required"`
	Subject       string   `json:"subject"`
	Year          *int     `json:"year"`
	Chapter       string   `json:"chapter"`
	Type          string   `json:"type" validate:"eq=single"`
	QuestionText  string   `json:"question_text" validate:"required,max=2000"`
	Options       []string `json:"options" validate:"len=4,dive,required,max=500"`
	AnswerIndex   int      `json:"answer_index" validate:"min=0,max=3"`
	Explanation   string   `json:"explanation" validate:"max=3000"`
	Source        string   `json:"source" validate:"required"`
	SourceDisplay string   `json:"source_display"`
	Assets        []Asset  `json:"assets,omitempty" validate:"omitempty,dive"`

	QNo  string `json:"-"`
	Page int    `json:"-"`
}

// ParseFailure is a block that matched a boundary but produced no record.
type ParseFailure struct {
	Dataset string `json:"dataset"`
	QNo     string `json:"qno"`
	Page    int    `json:"page,omitempty"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

// LeakageSuspect records text trimmed off a stem or option.
type LeakageSuspect struct {
	Dataset string `json:"dataset"`
	QNo     string `json:"qno"`
	Reason  string `json:"reason"`
	Snippet string `json:"snippet"`
}
