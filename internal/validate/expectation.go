package validate

import (
	"strings"

	"github.com/bubblewire/bubblewire/internal/bubble"
)

// Expectation describes how many interactive elements a turn is believed to
// need, and where that belief came from. Derived fresh per response.
type Expectation struct {
	Source        string // "metadata" | "text_pattern"
	Kind          string // "menu_options" | "quick_replies" | "interactive" | "yes_no" | "enumerated_choice" | "help_menu"
	ExpectedCount int
	Intent        string // contentIntent hint, when declared
}

// PhrasePolicy is the replaceable inference policy: which surface phrases
// suggest interactive content, and the conservative default count assigned
// to each category. The phrase lists are tunable config, not a contract.
type PhrasePolicy struct {
	Enumerated []string `yaml:"enumerated" json:"enumerated"`
	YesNo      []string `yaml:"yesNo" json:"yesNo"`
	HelpMenu   []string `yaml:"helpMenu" json:"helpMenu"`

	EnumeratedDefault int `yaml:"enumeratedDefault" json:"enumeratedDefault"`
	YesNoDefault      int `yaml:"yesNoDefault" json:"yesNoDefault"`
	HelpMenuDefault   int `yaml:"helpMenuDefault" json:"helpMenuDefault"`

	// PlausibilityMargin is how far actual may exceed expected before the
	// dynamic validator records a warning.
	PlausibilityMargin int `yaml:"plausibilityMargin" json:"plausibilityMargin"`
}

// DefaultPhrasePolicy returns the built-in policy.
func DefaultPhrasePolicy() PhrasePolicy {
	return PhrasePolicy{
		Enumerated: []string{
			"would you like to",
			"you can choose",
			"choose from",
			"select one of",
			"here are your options",
			"which of the following",
		},
		YesNo: []string{
			"yes or no",
			"shall i",
			"do you want me to",
		},
		HelpMenu: []string{
			"i can help you with",
			"here's what i can do",
			"how can i help",
		},
		EnumeratedDefault:  3,
		YesNoDefault:       2,
		HelpMenuDefault:    3,
		PlausibilityMargin: 6,
	}
}

// InferExpectation derives an expectation from explicit metadata hints on any
// bubble, or falls back to pattern-matching the text bubbles. Returns nil
// when nothing suggests interactive content.
func InferExpectation(doc *bubble.ResponseDocument, policy PhrasePolicy) *Expectation {
	for _, b := range doc.Bubbles {
		if b.Meta == nil {
			continue
		}
		h := b.Meta.ExpectationHints()
		switch {
		case h.ExpectedMenuOptions > 0:
			return &Expectation{Source: "metadata", Kind: "menu_options", ExpectedCount: h.ExpectedMenuOptions, Intent: h.ContentIntent}
		case h.ExpectedQuickReplies > 0:
			return &Expectation{Source: "metadata", Kind: "quick_replies", ExpectedCount: h.ExpectedQuickReplies, Intent: h.ContentIntent}
		case h.ExpectedInteractiveElements > 0:
			return &Expectation{Source: "metadata", Kind: "interactive", ExpectedCount: h.ExpectedInteractiveElements, Intent: h.ContentIntent}
		}
	}

	for _, b := range doc.Bubbles {
		if b.MessageType != bubble.TypeText {
			continue
		}
		text := strings.ToLower(b.Content)
		if containsAny(text, policy.Enumerated) {
			return &Expectation{Source: "text_pattern", Kind: "enumerated_choice", ExpectedCount: policy.EnumeratedDefault}
		}
		if containsAny(text, policy.YesNo) {
			return &Expectation{Source: "text_pattern", Kind: "yes_no", ExpectedCount: policy.YesNoDefault}
		}
		if containsAny(text, policy.HelpMenu) {
			return &Expectation{Source: "text_pattern", Kind: "help_menu", ExpectedCount: policy.HelpMenuDefault}
		}
	}
	return nil
}

// CountInteractive tallies the interactive elements across all bubbles:
// menu options, quick replies, card buttons and form fields.
func CountInteractive(doc *bubble.ResponseDocument) int {
	total := 0
	for _, b := range doc.Bubbles {
		switch m := b.Meta.(type) {
		case bubble.MenuMeta:
			total += len(m.Options)
		case bubble.QuickRepliesMeta:
			total += len(m.Replies)
		case bubble.CardMeta:
			total += len(m.Buttons)
		case bubble.FormMeta:
			total += len(m.FormFields)
		}
	}
	return total
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
