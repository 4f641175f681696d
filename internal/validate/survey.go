package validate

import (
	"fmt"
	"strings"

	"github.com/bubblewire/bubblewire/internal/bubble"
)

// SurveyResult is the survey menu validator's verdict for one document.
type SurveyResult struct {
	Valid    bool
	Errs     []string
	Regen    bool
	Question *SurveyQuestionContext
}

func (r SurveyResult) Errors() []string        { return r.Errs }
func (r SurveyResult) NeedsRegeneration() bool { return r.Regen }

// Describe renders the expected shape plus the recorded violations as an
// instruction fragment for the regeneration call.
func (r SurveyResult) Describe() string {
	if r.Question == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The response must contain exactly one %q bubble with exactly %d options.\n",
		r.Question.ExpectedMenuType(), r.Question.ExpectedOptionCount())
	if len(r.Question.ExpectedOptions) > 0 {
		b.WriteString("The option texts must match, in order:\n")
		for _, opt := range r.Question.ExpectedOptions {
			fmt.Fprintf(&b, "  - id %q: %q\n", opt.ID, opt.Text)
		}
	}
	if r.Question.ChoiceKind == MultipleChoice {
		b.WriteString("The bubble metadata must set allowMultiple to true with numeric minSelections and maxSelections.\n")
	}
	if len(r.Errs) > 0 {
		b.WriteString("The previous response violated the contract:\n")
		for _, e := range r.Errs {
			b.WriteString("  - " + e + "\n")
		}
	}
	return b.String()
}

// ValidateSurvey checks the document against the active survey question.
// Checks run in order and stop at the first failing category, so the error
// list always describes the earliest structural problem.
func ValidateSurvey(doc *bubble.ResponseDocument, q *SurveyQuestionContext) SurveyResult {
	result := SurveyResult{Question: q}
	if q == nil || len(q.ExpectedOptions) == 0 {
		result.Valid = true
		return result
	}

	choice := firstChoiceBubble(doc)
	if choice == nil {
		result.Errs = append(result.Errs, "response is missing the required choice bubble")
		result.Regen = true
		return result
	}

	if choice.MessageType != q.ExpectedMenuType() {
		result.Errs = append(result.Errs, fmt.Sprintf(
			"choice bubble has type %q but the question requires %q", choice.MessageType, q.ExpectedMenuType()))
		result.Regen = true
		return result
	}

	meta, ok := choice.Meta.(bubble.MenuMeta)
	if !ok {
		result.Errs = append(result.Errs, "choice bubble metadata is missing or malformed")
		result.Regen = true
		return result
	}

	if len(meta.Options) != q.ExpectedOptionCount() {
		result.Errs = append(result.Errs, fmt.Sprintf(
			"choice bubble has %d options but the question requires %d", len(meta.Options), q.ExpectedOptionCount()))
		result.Regen = true
		return result
	}

	for i, opt := range meta.Options {
		if opt.ID == "" || opt.Text == "" || opt.Action == "" {
			result.Errs = append(result.Errs, fmt.Sprintf(
				"option %d is incomplete: id, text and action are all required", i))
		}
	}
	if len(result.Errs) > 0 {
		result.Regen = true
		return result
	}

	for _, expected := range q.ExpectedOptions {
		if !anyOptionMatches(meta.Options, expected.Text) {
			result.Errs = append(result.Errs, fmt.Sprintf(
				"no option matches the expected text %q", expected.Text))
		}
	}
	if len(result.Errs) > 0 {
		result.Regen = true
		return result
	}

	if q.ChoiceKind == MultipleChoice {
		if !meta.AllowMultiple {
			result.Errs = append(result.Errs, "multiselect menu must set allowMultiple to true")
		}
		if meta.MinSelections == nil || meta.MaxSelections == nil {
			result.Errs = append(result.Errs, "multiselect menu must carry numeric minSelections and maxSelections")
		}
		if len(result.Errs) > 0 {
			result.Regen = true
			return result
		}
	}

	result.Valid = true
	return result
}

func firstChoiceBubble(doc *bubble.ResponseDocument) *bubble.Bubble {
	for i := range doc.Bubbles {
		if doc.Bubbles[i].MessageType.IsChoice() {
			return &doc.Bubbles[i]
		}
	}
	return nil
}

// anyOptionMatches applies the fuzzy rule: case-insensitive substring match
// in either direction after trimming.
func anyOptionMatches(opts []bubble.MenuOption, expected string) bool {
	want := strings.ToLower(strings.TrimSpace(expected))
	for _, opt := range opts {
		got := strings.ToLower(strings.TrimSpace(opt.Text))
		if got == "" {
			continue
		}
		if strings.Contains(got, want) || strings.Contains(want, got) {
			return true
		}
	}
	return false
}
