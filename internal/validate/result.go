// Package validate holds the two end-of-stream contract checks run against a
// fully parsed response document: the survey menu validator and the dynamic
// content validator. Each check owns its result; the regeneration path
// consumes them through the Result interface.
package validate

import (
	"github.com/bubblewire/bubblewire/internal/bubble"
)

// Result is what the regeneration orchestrator needs from any validator:
// the verdict, the human-readable violations, and an instruction fragment
// describing the expected shape.
type Result interface {
	Errors() []string
	NeedsRegeneration() bool
	Describe() string
}

// ChoiceKind is the cardinality of an active survey question.
type ChoiceKind string

const (
	SingleChoice   ChoiceKind = "single_choice"
	MultipleChoice ChoiceKind = "multiple_choice"
)

// ExpectedOption is one answer the active survey question offers.
type ExpectedOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SurveyQuestionContext is the externally supplied contract the current turn
// must satisfy while a survey question with selectable options is active.
// Read-only to this package; derived fresh per request by the session store.
type SurveyQuestionContext struct {
	QuestionIndex   int              `json:"questionIndex"`
	Prompt          string           `json:"prompt"`
	ChoiceKind      ChoiceKind       `json:"choiceKind"`
	ExpectedOptions []ExpectedOption `json:"expectedOptions"`
	MinSelections   *int             `json:"minSelections,omitempty"`
	MaxSelections   *int             `json:"maxSelections,omitempty"`
}

// ExpectedMenuType maps the question's cardinality to the bubble type the
// response must contain.
func (c *SurveyQuestionContext) ExpectedMenuType() bubble.MessageType {
	if c.ChoiceKind == MultipleChoice {
		return bubble.TypeMultiselectMenu
	}
	return bubble.TypeMenu
}

// ExpectedOptionCount returns how many options the turn's menu must carry.
func (c *SurveyQuestionContext) ExpectedOptionCount() int {
	return len(c.ExpectedOptions)
}
