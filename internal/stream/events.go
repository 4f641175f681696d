// Package stream turns the incremental token stream of a generative backend
// into a paced sequence of validated message bubbles. One Pipeline run serves
// one conversational turn; the only thing crossing its outbound boundary is
// the StreamEvent union.
package stream

import "github.com/bubblewire/bubblewire/internal/bubble"

// StreamEvent is the tagged union emitted to the caller.
type StreamEvent struct {
	Type    string         `json:"type"` // "bubble" | "complete" | "error"
	Bubble  *bubble.Bubble `json:"bubble,omitempty"`
	Content string         `json:"content,omitempty"`
	Message string         `json:"message,omitempty"`
}

const (
	EventBubble   = "bubble"
	EventComplete = "complete"
	EventError    = "error"

	completeContent = "streaming_complete"
)

// apologyText is the last-resort bubble content when nothing can be salvaged.
const apologyText = "I apologize, but I'm having trouble generating a response right now. Please try again."

func BubbleEvent(b bubble.Bubble) StreamEvent {
	return StreamEvent{Type: EventBubble, Bubble: &b}
}

func CompleteEvent() StreamEvent {
	return StreamEvent{Type: EventComplete, Content: completeContent}
}

func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Message: message}
}
