package llm

import (
	"context"
	"fmt"
)

// Role constants for conversation history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user-role history entry.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role history entry.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// GenerationConfig pins the sampling parameters for one request. The
// regeneration call reuses the exact same config as the original call.
type GenerationConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Request is the single call contract to a generative backend: system prompt
// plus history plus the current user-facing instruction.
type Request struct {
	System      string
	History     []Message
	UserMessage string
	Config      GenerationConfig
}

// Delta is one increment of a streaming backend response.
type Delta struct {
	Type string // "text" | "done" | "error"
	Text string
	Err  error
}

// Client is the unified interface to generative backends.
//
// CreateStream returns a channel of deltas the caller must drain until it is
// closed. Complete is the non-streaming variant with identical parameter
// shape, used once per request by the regeneration path.
type Client interface {
	CreateStream(ctx context.Context, req Request) (<-chan Delta, error)
	Complete(ctx context.Context, req Request) (string, error)
}

// APIError is an HTTP-level failure from a backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend API error (status %d): %s", e.StatusCode, e.Body)
}

// IsRateLimit reports whether this is a rate limit rejection.
func (e *APIError) IsRateLimit() bool { return e.StatusCode == 429 }

// IsAuth reports whether this is an authentication failure.
func (e *APIError) IsAuth() bool { return e.StatusCode == 401 || e.StatusCode == 403 }

// messages flattens a request into role/content pairs, system first.
func messages(req Request) []Message {
	msgs := make([]Message, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: req.System})
	}
	msgs = append(msgs, req.History...)
	if req.UserMessage != "" {
		msgs = append(msgs, Message{Role: RoleUser, Content: req.UserMessage})
	}
	return msgs
}
