package bubble

import "testing"

func intPtr(v int) *int { return &v }

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name string
		b    Bubble
		want bool
	}{
		{
			name: "text with content",
			b:    Text("hello"),
			want: true,
		},
		{
			name: "text with only whitespace",
			b:    Text("  \n\t"),
			want: false,
		},
		{
			name: "missing message type",
			b:    Bubble{Content: "hello"},
			want: false,
		},
		{
			name: "menu with full options",
			b: Bubble{MessageType: TypeMenu, Content: "pick one", Meta: MenuMeta{
				Options: []MenuOption{{ID: "a", Text: "Yes", Action: "select"}},
			}},
			want: true,
		},
		{
			name: "menu with empty options",
			b:    Bubble{MessageType: TypeMenu, Content: "pick one", Meta: MenuMeta{}},
			want: false,
		},
		{
			name: "menu without metadata",
			b:    Bubble{MessageType: TypeMenu, Content: "pick one"},
			want: false,
		},
		{
			name: "menu option missing action",
			b: Bubble{MessageType: TypeMenu, Content: "pick one", Meta: MenuMeta{
				Options: []MenuOption{{ID: "a", Text: "Yes"}},
			}},
			want: false,
		},
		{
			name: "multiselect with bounds",
			b: Bubble{MessageType: TypeMultiselectMenu, Content: "pick some", Meta: MenuMeta{
				Options:       []MenuOption{{ID: "a", Text: "One", Action: "select"}},
				AllowMultiple: true,
				MinSelections: intPtr(1),
				MaxSelections: intPtr(2),
			}},
			want: true,
		},
		{
			name: "multiselect without allowMultiple",
			b: Bubble{MessageType: TypeMultiselectMenu, Content: "pick some", Meta: MenuMeta{
				Options:       []MenuOption{{ID: "a", Text: "One", Action: "select"}},
				MinSelections: intPtr(1),
				MaxSelections: intPtr(2),
			}},
			want: false,
		},
		{
			name: "multiselect missing selection bounds",
			b: Bubble{MessageType: TypeMultiselectMenu, Content: "pick some", Meta: MenuMeta{
				Options:       []MenuOption{{ID: "a", Text: "One", Action: "select"}},
				AllowMultiple: true,
			}},
			want: false,
		},
		{
			name: "form with fields",
			b: Bubble{MessageType: TypeForm, Content: "fill in", Meta: FormMeta{
				FormFields: []FormField{{ID: "email", Label: "Email", Type: "email"}},
			}},
			want: true,
		},
		{
			name: "form field missing type",
			b: Bubble{MessageType: TypeForm, Content: "fill in", Meta: FormMeta{
				FormFields: []FormField{{ID: "email", Label: "Email"}},
			}},
			want: false,
		},
		{
			name: "card without buttons",
			b:    Bubble{MessageType: TypeCard, Content: "a card"},
			want: true,
		},
		{
			name: "card with full buttons",
			b: Bubble{MessageType: TypeCard, Content: "a card", Meta: CardMeta{
				Buttons: []CardButton{{ID: "b1", Text: "Go", Action: "link"}},
			}},
			want: true,
		},
		{
			name: "card with half-built button",
			b: Bubble{MessageType: TypeCard, Content: "a card", Meta: CardMeta{
				Buttons: []CardButton{{ID: "b1", Text: "Go"}},
			}},
			want: false,
		},
		{
			name: "image with empty content",
			b:    Bubble{MessageType: TypeImage, Meta: ImageMeta{URL: "https://x/y.png"}},
			want: true,
		},
		{
			name: "quick replies with empty content",
			b:    Bubble{MessageType: TypeQuickReplies, Meta: QuickRepliesMeta{Replies: []string{"Yes"}}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsComplete(tt.b); got != tt.want {
				t.Errorf("IsComplete() = %v, want %v", got, tt.want)
			}
			// Classification is a pure predicate: a second call must agree.
			if again := IsComplete(tt.b); again != IsComplete(tt.b) {
				t.Errorf("IsComplete() not idempotent")
			}
		})
	}
}

func TestBubbleJSONRoundTrip(t *testing.T) {
	b := Bubble{MessageType: TypeMenu, Content: "pick", Meta: MenuMeta{
		Options: []MenuOption{{ID: "a", Text: "Yes", Action: "select"}},
	}}

	data, err := b.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Bubble
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	m, ok := back.Meta.(MenuMeta)
	if !ok {
		t.Fatalf("expected MenuMeta, got %T", back.Meta)
	}
	if len(m.Options) != 1 || m.Options[0].Text != "Yes" {
		t.Fatalf("options did not survive round trip: %+v", m.Options)
	}
}

func TestDecodeMetadataFallsBackOnBadShape(t *testing.T) {
	// minSelections as string cannot decode into MenuMeta; the classifier
	// must then treat the bubble as incomplete rather than failing parse.
	raw := []byte(`{"options":[{"id":"a","text":"Yes","action":"select"}],"minSelections":"two"}`)
	meta := DecodeMetadata(TypeMultiselectMenu, raw)
	if _, ok := meta.(MenuMeta); ok {
		t.Fatalf("expected fallback metadata, got MenuMeta")
	}
	b := Bubble{MessageType: TypeMultiselectMenu, Content: "pick", Meta: meta}
	if IsComplete(b) {
		t.Fatalf("malformed multiselect metadata must not classify complete")
	}
}

func TestUnknownTypeDecodesToOtherMeta(t *testing.T) {
	raw := []byte(`{"expectedInteractiveElements":4,"custom":"x"}`)
	meta := DecodeMetadata(MessageType("carousel"), raw)
	om, ok := meta.(OtherMeta)
	if !ok {
		t.Fatalf("expected OtherMeta, got %T", meta)
	}
	if om.ExpectationHints().ExpectedInteractiveElements != 4 {
		t.Fatalf("hints not extracted from unknown metadata")
	}
}
