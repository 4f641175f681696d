package stream

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/bubblewire/bubblewire/internal/bubble"
)

func TestRepair(t *testing.T) {
	tests := []struct {
		name         string
		in           string
		want         string
		wantBalanced bool
	}{
		{
			name:         "balanced input passes through",
			in:           `{"bubbles":[{"messageType":"text","content":"hi"}]}`,
			want:         `{"bubbles":[{"messageType":"text","content":"hi"}]}`,
			wantBalanced: true,
		},
		{
			name: "unterminated string value is closed",
			in:   `{"bubbles":[{"messageType":"text","content":"Hello, here are...`,
			want: `{"bubbles":[{"messageType":"text","content":"Hello, here are..."}]}`,
		},
		{
			name: "partial key is dropped",
			in:   `{"bubbles":[{"messageType":"text","cont`,
			want: `{"bubbles":[{"messageType":"text"}]}`,
		},
		{
			name: "key with no value is dropped",
			in:   `{"bubbles":[{"messageType":"text","content":`,
			want: `{"bubbles":[{"messageType":"text"}]}`,
		},
		{
			name: "trailing comma between bubbles",
			in:   `{"bubbles":[{"messageType":"text","content":"a"},`,
			want: `{"bubbles":[{"messageType":"text","content":"a"}]}`,
		},
		{
			name: "partial literal value is dropped",
			in:   `{"bubbles":[{"messageType":"menu","content":"x","metadata":{"allowMultiple":tru`,
			want: `{"bubbles":[{"messageType":"menu","content":"x","metadata":{}}]}`,
		},
		{
			name: "complete number at cut point survives",
			in:   `{"bubbles":[{"messageType":"menu","content":"x","metadata":{"minSelections":2`,
			want: `{"bubbles":[{"messageType":"menu","content":"x","metadata":{"minSelections":2}}]}`,
		},
		{
			name: "open array only",
			in:   `{"bubbles":[`,
			want: `{"bubbles":[]}`,
		},
		{
			name: "half-written unicode escape is trimmed",
			in:   `{"bubbles":[{"messageType":"text","content":"snow \u26`,
			want: `{"bubbles":[{"messageType":"text","content":"snow "}]}`,
		},
		{
			name: "dangling backslash is trimmed",
			in:   `{"bubbles":[{"messageType":"text","content":"line\`,
			want: `{"bubbles":[{"messageType":"text","content":"line"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, balanced := Repair(tt.in)
			if got != tt.want {
				t.Errorf("Repair() = %q, want %q", got, tt.want)
			}
			if balanced != tt.wantBalanced {
				t.Errorf("balanced = %v, want %v", balanced, tt.wantBalanced)
			}
			if got != "" && !json.Valid([]byte(got)) {
				t.Errorf("Repair() produced invalid JSON: %q", got)
			}
		})
	}
}

func TestRepairOutputAlwaysValidJSON(t *testing.T) {
	// Every prefix of a realistic document must repair to valid JSON or
	// to the empty string.
	full := `{"bubbles":[{"messageType":"text","content":"Pick a color, e.g. \"red\""},` +
		`{"messageType":"menu","content":"Colors","metadata":{"options":[` +
		`{"id":"r","text":"Red","action":"select"},{"id":"b","text":"Blue","action":"select"}],` +
		`"allowMultiple":false}}]}`
	for i := 1; i <= len(full); i++ {
		got, _ := Repair(full[:i])
		if got == "" {
			continue
		}
		if !json.Valid([]byte(got)) {
			t.Fatalf("prefix %d repaired to invalid JSON:\nprefix: %q\nrepaired: %q", i, full[:i], got)
		}
	}
}

func TestParseBestEffort(t *testing.T) {
	buf := `{"bubbles":[{"messageType":"text","content":"done"},{"messageType":"text","content":"still typ`
	bubbles, settled := ParseBestEffort(buf)
	if settled {
		t.Fatalf("truncated buffer reported settled")
	}
	if len(bubbles) != 2 {
		t.Fatalf("expected 2 best-effort bubbles, got %d", len(bubbles))
	}
	if bubbles[0].Content != "done" {
		t.Fatalf("first bubble content = %q", bubbles[0].Content)
	}
}

func TestParseBestEffortGarbage(t *testing.T) {
	if bubbles, _ := ParseBestEffort("the model ignored instructions"); bubbles != nil {
		t.Fatalf("garbage must yield nil, got %v", bubbles)
	}
}

func TestParseAuthoritative(t *testing.T) {
	doc, err := ParseAuthoritative(`{"bubbles":[{"messageType":"text","content":"hi"}]}`)
	if err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
	if len(doc.Bubbles) != 1 || doc.Bubbles[0].MessageType != bubble.TypeText {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestParseAuthoritativeRejectsTruncation(t *testing.T) {
	_, err := ParseAuthoritative(`{"bubbles":[{"messageType":"text","content":"hi`)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestParseAuthoritativeRejectsEmptyDocument(t *testing.T) {
	if _, err := ParseAuthoritative(`{"bubbles":[]}`); err == nil {
		t.Fatalf("empty bubble array must not parse authoritatively")
	}
}

func TestParseAuthoritativeStripsCodeFence(t *testing.T) {
	fenced := "```json\n{\"bubbles\":[{\"messageType\":\"text\",\"content\":\"hi\"}]}\n```"
	doc, err := ParseAuthoritative(fenced)
	if err != nil {
		t.Fatalf("fenced document rejected: %v", err)
	}
	if doc.Bubbles[0].Content != "hi" {
		t.Fatalf("unexpected content: %q", doc.Bubbles[0].Content)
	}
}
