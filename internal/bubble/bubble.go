package bubble

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies how a bubble should be rendered by the client.
type MessageType string

const (
	TypeText            MessageType = "text"
	TypeCard            MessageType = "card"
	TypeMenu            MessageType = "menu"
	TypeMultiselectMenu MessageType = "multiselect_menu"
	TypeImage           MessageType = "image"
	TypeQuickReplies    MessageType = "quickReplies"
	TypeForm            MessageType = "form"
	TypeTable           MessageType = "table"
	TypeSystem          MessageType = "system"
)

// IsChoice reports whether the type carries selectable menu options.
func (t MessageType) IsChoice() bool {
	return t == TypeMenu || t == TypeMultiselectMenu
}

// Bubble is one independently renderable unit of a conversational turn.
// Bubbles are immutable once built; callers wrap rather than mutate.
type Bubble struct {
	MessageType MessageType
	Content     string
	Meta        Metadata
}

// ResponseDocument is the authoritative parse target for one turn.
type ResponseDocument struct {
	Bubbles []Bubble `json:"bubbles"`
}

// Hints carries the optional expectation fields a backend may attach to any
// bubble's metadata regardless of type.
type Hints struct {
	ExpectedMenuOptions         int    `json:"expectedMenuOptions,omitempty"`
	ExpectedQuickReplies        int    `json:"expectedQuickReplies,omitempty"`
	ExpectedInteractiveElements int    `json:"expectedInteractiveElements,omitempty"`
	ContentIntent               string `json:"contentIntent,omitempty"`
}

// Metadata is the closed union of per-type side payloads. Validators and the
// completeness classifier switch on the concrete variant instead of probing
// an open map.
type Metadata interface {
	ExpectationHints() Hints
}

// MenuOption is one selectable entry of a menu or multiselect menu.
type MenuOption struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Action string `json:"action"`
}

// MenuMeta backs both menu and multiselect_menu bubbles. MinSelections and
// MaxSelections are pointers so "absent" and "zero" stay distinguishable.
type MenuMeta struct {
	Hints
	Options       []MenuOption `json:"options"`
	AllowMultiple bool         `json:"allowMultiple,omitempty"`
	MinSelections *int         `json:"minSelections,omitempty"`
	MaxSelections *int         `json:"maxSelections,omitempty"`
}

// CardButton is an action button on a card bubble.
type CardButton struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Action string `json:"action"`
}

type CardMeta struct {
	Hints
	Title    string       `json:"title,omitempty"`
	ImageURL string       `json:"imageUrl,omitempty"`
	Buttons  []CardButton `json:"buttons,omitempty"`
}

// FormField describes one input of a form bubble.
type FormField struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

type FormMeta struct {
	Hints
	FormFields []FormField `json:"formFields"`
	SubmitText string      `json:"submitText,omitempty"`
}

type QuickRepliesMeta struct {
	Hints
	Replies []string `json:"quickReplies"`
}

type ImageMeta struct {
	Hints
	URL string `json:"url,omitempty"`
	Alt string `json:"alt,omitempty"`
}

type TableMeta struct {
	Hints
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
}

// OtherMeta is the escape hatch for unknown types and for metadata that does
// not decode into its typed variant.
type OtherMeta struct {
	Hints
	Fields map[string]json.RawMessage
}

func (h Hints) ExpectationHints() Hints { return h }

// rawBubble is the wire shape of a bubble before metadata is narrowed.
type rawBubble struct {
	MessageType MessageType     `json:"messageType"`
	Content     string          `json:"content"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// UnmarshalJSON decodes the wire shape and narrows metadata by messageType.
func (b *Bubble) UnmarshalJSON(data []byte) error {
	var raw rawBubble
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.MessageType = raw.MessageType
	b.Content = raw.Content
	b.Meta = DecodeMetadata(raw.MessageType, raw.Metadata)
	return nil
}

// MarshalJSON writes the outbound wire shape: messageType, content, and the
// typed metadata re-flattened into an object.
func (b Bubble) MarshalJSON() ([]byte, error) {
	var meta json.RawMessage
	if b.Meta != nil {
		data, err := encodeMetadata(b.Meta)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		meta = data
	}
	return json.Marshal(rawBubble{
		MessageType: b.MessageType,
		Content:     b.Content,
		Metadata:    meta,
	})
}

// DecodeMetadata narrows raw metadata into the typed variant for t. Metadata
// that fails to decode falls back to OtherMeta so a malformed payload never
// aborts parsing mid-stream; the completeness classifier and validators treat
// the fallback as incomplete for types that require structure.
func DecodeMetadata(t MessageType, raw json.RawMessage) Metadata {
	if len(raw) == 0 {
		return nil
	}
	switch t {
	case TypeMenu, TypeMultiselectMenu:
		var m MenuMeta
		if err := json.Unmarshal(raw, &m); err == nil {
			return m
		}
	case TypeCard:
		var m CardMeta
		if err := json.Unmarshal(raw, &m); err == nil {
			return m
		}
	case TypeForm:
		var m FormMeta
		if err := json.Unmarshal(raw, &m); err == nil {
			return m
		}
	case TypeQuickReplies:
		var m QuickRepliesMeta
		if err := json.Unmarshal(raw, &m); err == nil {
			return m
		}
	case TypeImage:
		var m ImageMeta
		if err := json.Unmarshal(raw, &m); err == nil {
			return m
		}
	case TypeTable:
		var m TableMeta
		if err := json.Unmarshal(raw, &m); err == nil {
			return m
		}
	}
	return decodeOther(raw)
}

func decodeOther(raw json.RawMessage) Metadata {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	var hints Hints
	_ = json.Unmarshal(raw, &hints)
	return OtherMeta{Hints: hints, Fields: fields}
}

func encodeMetadata(m Metadata) (json.RawMessage, error) {
	if om, ok := m.(OtherMeta); ok {
		fields := om.Fields
		if fields == nil {
			fields = map[string]json.RawMessage{}
		}
		return json.Marshal(fields)
	}
	return json.Marshal(m)
}

// Text builds a plain text bubble.
func Text(content string) Bubble {
	return Bubble{MessageType: TypeText, Content: content}
}

// System builds a system bubble.
func System(content string) Bubble {
	return Bubble{MessageType: TypeSystem, Content: content}
}
