package validate

import (
	"fmt"
	"strings"

	"github.com/bubblewire/bubblewire/internal/bubble"
)

// DynamicResult is the dynamic content validator's verdict. Warnings never
// set Regen on their own; only hard errors do.
type DynamicResult struct {
	Valid       bool
	Errs        []string
	Warnings    []string
	Regen       bool
	Expectation *Expectation
	Actual      int
	Truncated   bool
}

func (r DynamicResult) Errors() []string        { return r.Errs }
func (r DynamicResult) NeedsRegeneration() bool { return r.Regen }

func (r DynamicResult) Describe() string {
	var b strings.Builder
	if r.Expectation != nil {
		fmt.Fprintf(&b, "The response is expected to contain at least %d interactive elements (%s, inferred from %s) but contained %d.\n",
			r.Expectation.ExpectedCount, r.Expectation.Kind, r.Expectation.Source, r.Actual)
	}
	if r.Truncated {
		b.WriteString("The previous response appears to have been truncated; produce the complete document.\n")
	}
	if len(r.Errs) > 0 {
		b.WriteString("The previous response had these problems:\n")
		for _, e := range r.Errs {
			b.WriteString("  - " + e + "\n")
		}
	}
	return b.String()
}

// ValidateDynamic applies to every response regardless of survey state. It
// compares the inferred expectation against the actual interactive element
// count and flags truncation signals.
func ValidateDynamic(doc *bubble.ResponseDocument, policy PhrasePolicy) DynamicResult {
	result := DynamicResult{
		Expectation: InferExpectation(doc, policy),
		Actual:      CountInteractive(doc),
	}

	if len(doc.Bubbles) == 0 {
		result.Errs = append(result.Errs, "response contains no bubbles")
		result.Truncated = true
		result.Regen = true
		return result
	}

	if result.Expectation != nil {
		if result.Actual < result.Expectation.ExpectedCount {
			// A phrase-inferred expectation with nothing interactive at all
			// is the unfulfilled-promise case, reported below as a warning.
			// Declared metadata expectations and undersized interactive
			// bubbles are hard errors.
			if result.Expectation.Source == "metadata" || result.Actual > 0 {
				result.Errs = append(result.Errs, fmt.Sprintf(
					"expected at least %d interactive elements (%s) but found %d",
					result.Expectation.ExpectedCount, result.Expectation.Kind, result.Actual))
			}
		}
		margin := policy.PlausibilityMargin
		if margin <= 0 {
			margin = DefaultPhrasePolicy().PlausibilityMargin
		}
		if result.Actual > result.Expectation.ExpectedCount+margin {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"found %d interactive elements where about %d were expected",
				result.Actual, result.Expectation.ExpectedCount))
		}
	}

	// Truncated interactive bubbles are hard errors: an empty options or
	// replies array means the document was cut mid-structure.
	for i, b := range doc.Bubbles {
		switch b.MessageType {
		case bubble.TypeMenu, bubble.TypeMultiselectMenu:
			if m, ok := b.Meta.(bubble.MenuMeta); !ok || len(m.Options) == 0 {
				result.Errs = append(result.Errs, fmt.Sprintf("bubble %d is a %s with no options", i, b.MessageType))
				result.Truncated = true
			}
		case bubble.TypeQuickReplies:
			if m, ok := b.Meta.(bubble.QuickRepliesMeta); !ok || len(m.Replies) == 0 {
				result.Errs = append(result.Errs, fmt.Sprintf("bubble %d offers quick replies but lists none", i))
				result.Truncated = true
			}
		}
	}

	// Softer signals stay warnings: a dangling tail on the last text bubble,
	// or a text that promises choices with nothing interactive after it.
	last := doc.Bubbles[len(doc.Bubbles)-1]
	if last.MessageType == bubble.TypeText {
		tail := strings.TrimSpace(last.Content)
		if strings.HasSuffix(tail, "...") || strings.HasSuffix(tail, "…") || strings.HasSuffix(tail, ",") {
			result.Warnings = append(result.Warnings, "last bubble ends mid-sentence")
		}
	}
	if i := unfulfilledPromiseIndex(doc, policy); i >= 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"bubble %d promises choices but no interactive bubble follows it", i))
	}

	if len(result.Errs) > 0 {
		result.Regen = true
		return result
	}
	result.Valid = true
	return result
}

// unfulfilledPromiseIndex returns the index of a text bubble that matches an
// enumerated-choice phrase with no interactive bubble after it in document
// order, or -1.
func unfulfilledPromiseIndex(doc *bubble.ResponseDocument, policy PhrasePolicy) int {
	for i, b := range doc.Bubbles {
		if b.MessageType != bubble.TypeText {
			continue
		}
		if !containsAny(strings.ToLower(b.Content), policy.Enumerated) {
			continue
		}
		fulfilled := false
		for _, later := range doc.Bubbles[i+1:] {
			if isInteractive(later) {
				fulfilled = true
				break
			}
		}
		if !fulfilled {
			return i
		}
	}
	return -1
}

func isInteractive(b bubble.Bubble) bool {
	switch b.MessageType {
	case bubble.TypeMenu, bubble.TypeMultiselectMenu, bubble.TypeQuickReplies, bubble.TypeForm:
		return true
	case bubble.TypeCard:
		m, ok := b.Meta.(bubble.CardMeta)
		return ok && len(m.Buttons) > 0
	}
	return false
}
