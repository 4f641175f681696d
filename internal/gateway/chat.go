package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bubblewire/bubblewire/internal/llm"
	"github.com/bubblewire/bubblewire/internal/stream"
)

// startTurn prepares one conversational turn: resolves the session, records
// the user message, and starts the generation run. The returned channel is
// the pipeline's event stream; it is closed after the terminal complete event.
func (s *Server) startTurn(ctx context.Context, sessionID, text string) (string, <-chan stream.StreamEvent, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	s.Store.GetOrCreate(sessionID)

	// History is loaded before the new message is appended; the pipeline
	// carries the current message separately.
	history, err := s.Store.History(sessionID)
	if err != nil {
		return "", nil, fmt.Errorf("load history: %w", err)
	}
	if err := s.Store.AppendUserMessage(sessionID, text); err != nil {
		return "", nil, fmt.Errorf("record user message: %w", err)
	}
	s.Store.Touch(sessionID)
	if err := s.Store.Save(); err != nil {
		slog.Warn("session metadata save failed", "sessionId", sessionID, "error", err)
	}

	cfg := s.cfg()
	events := s.Pipeline.Generate(ctx, stream.GenerateRequest{
		UserMessage: text,
		SessionID:   sessionID,
		History:     history,
		Config: llm.GenerationConfig{
			Model:       cfg.Backend.Model,
			Temperature: cfg.Backend.Temperature,
			MaxTokens:   cfg.Backend.MaxTokens,
		},
	})
	return sessionID, events, nil
}
