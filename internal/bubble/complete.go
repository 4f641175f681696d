package bubble

import "strings"

// IsComplete reports whether b carries every field required for safe
// emission. Pure predicate: it never mutates b, so repeated calls agree.
//
// Choice bubbles (menu, multiselect_menu) passing this check are still held
// back from streaming-time emission by the pipeline, because a partially
// streamed options array can look complete; see stream.Pipeline.
func IsComplete(b Bubble) bool {
	if b.MessageType == "" {
		return false
	}
	switch b.MessageType {
	case TypeText:
		return strings.TrimSpace(b.Content) != ""

	case TypeMenu:
		m, ok := b.Meta.(MenuMeta)
		return ok && menuOptionsComplete(m.Options)

	case TypeMultiselectMenu:
		m, ok := b.Meta.(MenuMeta)
		if !ok || !menuOptionsComplete(m.Options) {
			return false
		}
		return m.AllowMultiple && m.MinSelections != nil && m.MaxSelections != nil

	case TypeForm:
		m, ok := b.Meta.(FormMeta)
		if !ok || len(m.FormFields) == 0 {
			return false
		}
		for _, f := range m.FormFields {
			if f.ID == "" || f.Label == "" || f.Type == "" {
				return false
			}
		}
		return true

	case TypeCard:
		// A card without buttons is complete as soon as it exists; with
		// buttons, every button must be fully formed.
		m, ok := b.Meta.(CardMeta)
		if !ok {
			return true
		}
		for _, btn := range m.Buttons {
			if btn.ID == "" || btn.Text == "" || btn.Action == "" {
				return false
			}
		}
		return true

	default:
		// image, quickReplies, table, system: the type itself is enough,
		// content may legitimately be empty.
		return true
	}
}

func menuOptionsComplete(opts []MenuOption) bool {
	if len(opts) == 0 {
		return false
	}
	for _, o := range opts {
		if o.ID == "" || o.Text == "" || o.Action == "" {
			return false
		}
	}
	return true
}
