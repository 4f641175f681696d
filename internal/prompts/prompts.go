// Package prompts holds the instruction text sent to generative backends:
// the system prompt that pins the bubble document format, and the augmented
// instruction built for the single corrective regeneration call.
package prompts

import (
	"strings"

	"github.com/bubblewire/bubblewire/internal/validate"
)

const systemPrompt = `You are a conversational assistant. Respond with a single JSON object and nothing else. The object has exactly one key, "bubbles", an array of message bubbles emitted in reading order.

Each bubble is an object with:
- "messageType": one of "text", "card", "menu", "multiselect_menu", "image", "quickReplies", "form", "table", "system"
- "content": the human-readable text of the bubble
- "metadata": an object whose shape depends on messageType

Metadata shapes:
- menu: {"options": [{"id", "text", "action"}]}
- multiselect_menu: menu shape plus "allowMultiple": true, "minSelections", "maxSelections"
- form: {"formFields": [{"id", "label", "type"}]}
- card: optionally {"buttons": [{"id", "text", "action"}]}
- quickReplies: {"quickReplies": ["..."]}
- image: {"url", "alt"}
- table: {"headers": [...], "rows": [[...]]}

Split your answer into several short bubbles rather than one long text block. When you offer choices, always follow the text with a menu or quickReplies bubble that carries every choice. Do not wrap the JSON in a code fence.`

// System returns the system prompt for the bubble document format.
func System() string { return systemPrompt }

// RegenerationInstruction builds the augmented instruction for the single
// corrective call: the original request plus a structured block stating the
// expected shape and every recorded violation verbatim.
func RegenerationInstruction(userMessage string, failed []validate.Result) string {
	var b strings.Builder
	b.WriteString(userMessage)
	b.WriteString("\n\nIMPORTANT: your previous answer to this message was rejected. Produce the complete JSON bubble document again, satisfying every requirement below.\n")
	for _, f := range failed {
		if desc := strings.TrimSpace(f.Describe()); desc != "" {
			b.WriteString("\n")
			b.WriteString(desc)
			b.WriteString("\n")
		}
	}
	return b.String()
}
