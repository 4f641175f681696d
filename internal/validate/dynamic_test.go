package validate

import (
	"strings"
	"testing"

	"github.com/bubblewire/bubblewire/internal/bubble"
)

func TestInferExpectation(t *testing.T) {
	policy := DefaultPhrasePolicy()

	tests := []struct {
		name      string
		doc       *bubble.ResponseDocument
		wantNil   bool
		wantKind  string
		wantCount int
	}{
		{
			name: "metadata hint wins over text",
			doc: &bubble.ResponseDocument{Bubbles: []bubble.Bubble{{
				MessageType: bubble.TypeText,
				Content:     "Would you like to continue?",
				Meta:        bubble.OtherMeta{Hints: bubble.Hints{ExpectedMenuOptions: 4}},
			}}},
			wantKind:  "menu_options",
			wantCount: 4,
		},
		{
			name: "enumerated choice phrase",
			doc: &bubble.ResponseDocument{Bubbles: []bubble.Bubble{
				bubble.Text("Here are your options for shipping."),
			}},
			wantKind:  "enumerated_choice",
			wantCount: policy.EnumeratedDefault,
		},
		{
			name: "yes no phrase",
			doc: &bubble.ResponseDocument{Bubbles: []bubble.Bubble{
				bubble.Text("Do you want me to book it? Answer yes or no."),
			}},
			wantKind:  "yes_no",
			wantCount: policy.YesNoDefault,
		},
		{
			name: "help menu phrase",
			doc: &bubble.ResponseDocument{Bubbles: []bubble.Bubble{
				bubble.Text("I can help you with orders, returns and billing."),
			}},
			wantKind:  "help_menu",
			wantCount: policy.HelpMenuDefault,
		},
		{
			name: "plain statement infers nothing",
			doc: &bubble.ResponseDocument{Bubbles: []bubble.Bubble{
				bubble.Text("Your order shipped yesterday."),
			}},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := InferExpectation(tt.doc, policy)
			if tt.wantNil {
				if exp != nil {
					t.Fatalf("expected nil expectation, got %+v", exp)
				}
				return
			}
			if exp == nil {
				t.Fatalf("expected an expectation")
			}
			if exp.Kind != tt.wantKind || exp.ExpectedCount != tt.wantCount {
				t.Fatalf("got kind=%s count=%d, want kind=%s count=%d",
					exp.Kind, exp.ExpectedCount, tt.wantKind, tt.wantCount)
			}
		})
	}
}

func TestInferExpectationCustomPolicy(t *testing.T) {
	policy := PhrasePolicy{
		Enumerated:        []string{"pick your poison"},
		EnumeratedDefault: 5,
	}
	doc := &bubble.ResponseDocument{Bubbles: []bubble.Bubble{
		bubble.Text("Pick your poison:"),
	}}
	exp := InferExpectation(doc, policy)
	if exp == nil || exp.ExpectedCount != 5 {
		t.Fatalf("custom policy not applied: %+v", exp)
	}
}

func TestValidateDynamicInsufficientOptions(t *testing.T) {
	doc := &bubble.ResponseDocument{Bubbles: []bubble.Bubble{
		bubble.Text("Would you like to choose from these plans?"),
		{MessageType: bubble.TypeMenu, Content: "Plans", Meta: bubble.MenuMeta{
			Options: []bubble.MenuOption{{ID: "a", Text: "Basic", Action: "select"}},
		}},
	}}
	res := ValidateDynamic(doc, DefaultPhrasePolicy())
	if res.Valid || !res.NeedsRegeneration() {
		t.Fatalf("one option against an enumerated expectation must fail: %+v", res)
	}
}

func TestValidateDynamicEmptyMenuIsTruncation(t *testing.T) {
	doc := &bubble.ResponseDocument{Bubbles: []bubble.Bubble{
		{MessageType: bubble.TypeMenu, Content: "Pick", Meta: bubble.MenuMeta{}},
	}}
	res := ValidateDynamic(doc, DefaultPhrasePolicy())
	if !res.Truncated || !res.NeedsRegeneration() {
		t.Fatalf("empty menu must be treated as truncation: %+v", res)
	}
}

func TestValidateDynamicZeroBubbles(t *testing.T) {
	res := ValidateDynamic(&bubble.ResponseDocument{}, DefaultPhrasePolicy())
	if !res.NeedsRegeneration() || !res.Truncated {
		t.Fatalf("zero bubbles must be a hard error: %+v", res)
	}
}

func TestValidateDynamicWarningsDoNotRegenerate(t *testing.T) {
	doc := &bubble.ResponseDocument{Bubbles: []bubble.Bubble{
		bubble.Text("Shipping normally takes 3 days,"),
	}}
	res := ValidateDynamic(doc, DefaultPhrasePolicy())
	if !res.Valid || res.NeedsRegeneration() {
		t.Fatalf("dangling comma alone must stay a warning: %+v", res)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a truncation warning")
	}
}

func TestValidateDynamicUnfulfilledPromiseIsWarning(t *testing.T) {
	doc := &bubble.ResponseDocument{Bubbles: []bubble.Bubble{
		bubble.Text("Would you like to see the catalog?"),
		bubble.Text("Let me know."),
	}}
	policy := DefaultPhrasePolicy()
	// Avoid the yes/no inference kicking in for this doc.
	policy.YesNo = nil
	res := ValidateDynamic(doc, policy)
	if res.NeedsRegeneration() {
		t.Fatalf("promise without menu should not regenerate on its own: %+v", res)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "promises choices") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected promise warning, got %v", res.Warnings)
	}
}

func TestValidateDynamicImplausiblyLargeCountWarns(t *testing.T) {
	opts := make([]bubble.MenuOption, 12)
	for i := range opts {
		opts[i] = bubble.MenuOption{ID: "o", Text: "x", Action: "select"}
	}
	doc := &bubble.ResponseDocument{Bubbles: []bubble.Bubble{
		{MessageType: bubble.TypeText, Content: "ok", Meta: bubble.OtherMeta{Hints: bubble.Hints{ExpectedMenuOptions: 2}}},
		{MessageType: bubble.TypeMenu, Content: "Pick", Meta: bubble.MenuMeta{Options: opts}},
	}}
	res := ValidateDynamic(doc, DefaultPhrasePolicy())
	if !res.Valid {
		t.Fatalf("surplus options are not an error: %+v", res)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected plausibility warning")
	}
}
