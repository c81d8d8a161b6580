package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	// Discovery Tools
	ExamListInputsDescription = `List the exam PDFs waiting in the input directory.

**When to use:** Before importing, to see which documents are present and which fail the quick size and name checks.

**Examples:**
• "Which exam PDFs are ready to import?"
• "List the PDFs under 2024/ in the input directory"

**Best practices:** Files reported with a problem are skipped by a directory import; fix or remove them first.`

	ExamValidatePDFDescription = `Check that a file is a structurally readable PDF and report its page count.

**When to use:** When an import reports an unreadable document, or before importing a newly added file.

**Examples:**
• "Is 105-126002工程管理學科.pdf a valid PDF?"

**Best practices:** Validation is relaxed; a valid PDF may still carry no extractable text (scanned pages).`

	// Import Tools
	ExamImportFileDescription = `Convert one exam PDF into question records.

**When to use:** To import or re-import a single document and inspect what was parsed.

**What you get:** The dataset id, record count, parse failures, leakage suspects, questions whose answer could not be read, and the figure crop decisions. With write=true the dataset file is written to the output directory.

**Examples:**
• "Import 綜合A.pdf and show the parse failures"
• "Re-import 106學科.pdf without images and write the dataset"

**Common workflows:**
1. exam_list_inputs → exam_import_file → review failures → fix keyword tables → re-import
2. exam_import_file (write=true) → exam_verify_output

**Best practices:** Images are rendered only for questions whose text refers to a figure; check image_decisions for skipped or failed crops.`

	ExamParseTextDescription = `Parse pasted exam text into question records without a PDF.

**When to use:** To test how a fragment of exam text is segmented, which answer is read and how the options split.

**Examples:**
• "Parse this: 1.(2)下列何者正確？①甲②乙③丙④丁"

**Best practices:** Lines must start with the question number followed by a period, as in the printed exams.`

	ExamVerifyOutputDescription = `Verify a published data directory: meta.json, index.json, every dataset file, every record and every referenced image.

**When to use:** After an import and before deploying the data.

**What you get:** ok, data_version, dataset_count, total_questions and the list of problems. verify_result.json is written next to the data.

**Examples:**
• "Verify the output directory"
• "Check public/data before release"`

	// Server Information
	ExamServerInfoDescription = `Show the server configuration, the input and output directories, and the available tools.

**When to use:** First call in a session, to learn where documents are read from and where datasets are written.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"exam_list_inputs":   ExamListInputsDescription,
	"exam_validate_pdf":  ExamValidatePDFDescription,
	"exam_import_file":   ExamImportFileDescription,
	"exam_parse_text":    ExamParseTextDescription,
	"exam_verify_output": ExamVerifyOutputDescription,
	"exam_server_info":   ExamServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns all tool names in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
