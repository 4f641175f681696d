package stream

import (
	"encoding/json"
	"strings"

	"github.com/bubblewire/bubblewire/internal/bubble"
)

// Salvage is the last-resort interpretation of a buffer the authoritative
// parse rejected. Ordered attempts: a repaired document, a single bubble
// object, a bare string, any object exposing a content field, and finally
// the fixed apology. It never fails and never returns an empty document.
func Salvage(buf string) *bubble.ResponseDocument {
	cleaned := stripFences(strings.TrimSpace(buf))
	if cleaned == "" {
		return FallbackDocument()
	}
	repaired, _ := Repair(cleaned)

	if doc := salvageDocument(repaired); doc != nil {
		return doc
	}
	if b := salvageSingleBubble(repaired); b != nil {
		return &bubble.ResponseDocument{Bubbles: []bubble.Bubble{*b}}
	}
	var text string
	if err := json.Unmarshal([]byte(repaired), &text); err == nil && strings.TrimSpace(text) != "" {
		return &bubble.ResponseDocument{Bubbles: []bubble.Bubble{bubble.Text(text)}}
	}
	if content := salvageContentField(repaired); content != "" {
		return &bubble.ResponseDocument{Bubbles: []bubble.Bubble{bubble.Text(content)}}
	}
	return FallbackDocument()
}

// FallbackDocument is the fixed apology bubble.
func FallbackDocument() *bubble.ResponseDocument {
	return &bubble.ResponseDocument{Bubbles: []bubble.Bubble{bubble.Text(apologyText)}}
}

func salvageDocument(repaired string) *bubble.ResponseDocument {
	var doc bubble.ResponseDocument
	if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
		return nil
	}
	kept := doc.Bubbles[:0]
	for _, b := range doc.Bubbles {
		if b.MessageType != "" {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &bubble.ResponseDocument{Bubbles: kept}
}

func salvageSingleBubble(repaired string) *bubble.Bubble {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(repaired), &probe); err != nil {
		return nil
	}
	if _, ok := probe["messageType"]; !ok {
		return nil
	}
	if _, ok := probe["content"]; !ok {
		return nil
	}
	var b bubble.Bubble
	if err := b.UnmarshalJSON([]byte(repaired)); err != nil || b.MessageType == "" {
		return nil
	}
	return &b
}

func salvageContentField(repaired string) string {
	var probe struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(repaired), &probe); err != nil {
		return ""
	}
	return strings.TrimSpace(probe.Content)
}
