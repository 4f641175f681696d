package stream

import (
	"testing"

	"github.com/bubblewire/bubblewire/internal/bubble"
)

func TestSalvageTruncatedDocument(t *testing.T) {
	doc := Salvage(`{"bubbles":[{"messageType":"text","content":"Hello, here are...`)
	if len(doc.Bubbles) != 1 {
		t.Fatalf("expected 1 salvaged bubble, got %d", len(doc.Bubbles))
	}
	b := doc.Bubbles[0]
	if b.MessageType != bubble.TypeText || b.Content != "Hello, here are..." {
		t.Fatalf("unexpected salvage: %+v", b)
	}
}

func TestSalvageSingleBubbleObject(t *testing.T) {
	doc := Salvage(`{"messageType":"text","content":"just one"}`)
	if len(doc.Bubbles) != 1 || doc.Bubbles[0].Content != "just one" {
		t.Fatalf("single bubble not salvaged: %+v", doc.Bubbles)
	}
}

func TestSalvageBareString(t *testing.T) {
	doc := Salvage(`"plain answer"`)
	if doc.Bubbles[0].MessageType != bubble.TypeText || doc.Bubbles[0].Content != "plain answer" {
		t.Fatalf("bare string not wrapped: %+v", doc.Bubbles[0])
	}
}

func TestSalvageObjectWithContentField(t *testing.T) {
	doc := Salvage(`{"role":"assistant","content":"misshaped but usable"}`)
	if doc.Bubbles[0].Content != "misshaped but usable" {
		t.Fatalf("content field not salvaged: %+v", doc.Bubbles[0])
	}
}

func TestSalvageFallsBackToApology(t *testing.T) {
	for _, buf := range []string{"", "   ", "not json at all", `{"irrelevant":true}`} {
		doc := Salvage(buf)
		if len(doc.Bubbles) != 1 {
			t.Fatalf("salvage of %q returned %d bubbles", buf, len(doc.Bubbles))
		}
		if doc.Bubbles[0].Content != apologyText {
			t.Fatalf("salvage of %q did not produce the apology: %q", buf, doc.Bubbles[0].Content)
		}
	}
}

func TestSalvageNeverReturnsEmpty(t *testing.T) {
	inputs := []string{
		`{"bubbles":[]}`,
		`{"bubbles":[{"noType":true}]}`,
		`[1,2,3]`,
		`{"bubbles":`,
	}
	for _, in := range inputs {
		if doc := Salvage(in); len(doc.Bubbles) == 0 {
			t.Fatalf("Salvage(%q) returned an empty document", in)
		}
	}
}
