package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bubblewire/bubblewire/internal/bubble"
	"github.com/bubblewire/bubblewire/internal/llm"
	"github.com/bubblewire/bubblewire/internal/validate"
)

// SurveyQuestion is one scripted question in a session's survey flow.
type SurveyQuestion struct {
	Prompt        string                    `json:"prompt"`
	ChoiceKind    validate.ChoiceKind       `json:"choiceKind"`
	Options       []validate.ExpectedOption `json:"options"`
	MinSelections *int                      `json:"minSelections,omitempty"`
	MaxSelections *int                      `json:"maxSelections,omitempty"`
}

// SurveyState tracks where a session stands in its survey, if any.
type SurveyState struct {
	Active        bool             `json:"active"`
	QuestionIndex int              `json:"questionIndex"`
	Questions     []SurveyQuestion `json:"questions"`
}

// Entry holds metadata for a single session.
type Entry struct {
	SessionID string       `json:"sessionId"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Turns     int          `json:"turns"`
	Survey    *SurveyState `json:"survey,omitempty"`
}

// Store manages session metadata and transcripts under a base directory.
// It doubles as the pipeline's survey source and bubble sink.
type Store struct {
	mu       sync.RWMutex
	baseDir  string
	sessions map[string]*Entry // sessionID → entry
}

func NewStore(baseDir string) *Store {
	return &Store{
		baseDir:  baseDir,
		sessions: make(map[string]*Entry),
	}
}

// Load reads session metadata from disk.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.metaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read session store: %w", err)
	}

	var entries map[string]*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse session store: %w", err)
	}
	// A file holding JSON null decodes to a nil map.
	if entries == nil {
		entries = make(map[string]*Entry)
	}
	s.sessions = entries
	return nil
}

// Save persists session metadata to disk (atomic write).
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metaPath := s.metaPath()
	if err := os.MkdirAll(filepath.Dir(metaPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session store: %w", err)
	}

	tmpPath := metaPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write session store: %w", err)
	}
	return os.Rename(tmpPath, metaPath)
}

// Get returns an existing session entry, or nil if not found.
func (s *Store) Get(sessionID string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

// GetOrCreate returns an existing session or creates a new one.
func (s *Store) GetOrCreate(sessionID string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.sessions[sessionID]; ok {
		return entry
	}

	entry := &Entry{
		SessionID: sessionID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.sessions[sessionID] = entry
	return entry
}

// List returns all session entries.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*Entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	return entries
}

// Delete removes a session entry and its transcript.
func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if err := os.Remove(s.TranscriptPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return s.Save()
}

// Touch bumps a session's activity clock and turn counter.
func (s *Store) Touch(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sessions[sessionID]; ok {
		entry.Turns++
		entry.UpdatedAt = time.Now()
	}
}

// SetSurvey replaces a session's survey state.
func (s *Store) SetSurvey(sessionID string, state *SurveyState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		entry = &Entry{SessionID: sessionID, CreatedAt: time.Now()}
		s.sessions[sessionID] = entry
	}
	entry.Survey = state
	entry.UpdatedAt = time.Now()
}

// AdvanceSurvey moves a session's survey to the next question, deactivating
// it past the last one.
func (s *Store) AdvanceSurvey(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok || entry.Survey == nil || !entry.Survey.Active {
		return
	}
	entry.Survey.QuestionIndex++
	if entry.Survey.QuestionIndex >= len(entry.Survey.Questions) {
		entry.Survey.Active = false
	}
	entry.UpdatedAt = time.Now()
}

// ActiveSurveyContext returns the contract for the session's current survey
// question, or nil when no survey is in progress.
func (s *Store) ActiveSurveyContext(ctx context.Context, sessionID string) (*validate.SurveyQuestionContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[sessionID]
	if !ok || entry.Survey == nil || !entry.Survey.Active {
		return nil, nil
	}
	state := entry.Survey
	if state.QuestionIndex < 0 || state.QuestionIndex >= len(state.Questions) {
		return nil, fmt.Errorf("survey question index %d out of range for session %s", state.QuestionIndex, sessionID)
	}
	q := state.Questions[state.QuestionIndex]
	return &validate.SurveyQuestionContext{
		QuestionIndex:   state.QuestionIndex,
		Prompt:          q.Prompt,
		ChoiceKind:      q.ChoiceKind,
		ExpectedOptions: q.Options,
		MinSelections:   q.MinSelections,
		MaxSelections:   q.MaxSelections,
	}, nil
}

// SaveBubble appends an emitted bubble to the session transcript. Invoked
// fire-and-forget by the pipeline, so failures are only logged here.
func (s *Store) SaveBubble(sessionID string, b bubble.Bubble) {
	t := NewTranscript(s.TranscriptPath(sessionID))
	if err := t.AppendBubble(b); err != nil {
		slog.Error("persist bubble", "sessionId", sessionID, "error", err)
	}
}

// AppendUserMessage records an inbound user turn.
func (s *Store) AppendUserMessage(sessionID, text string) error {
	t := NewTranscript(s.TranscriptPath(sessionID))
	return t.Append(llm.UserMessage(text))
}

// History reconstructs the conversation for the backend from the transcript.
func (s *Store) History(sessionID string) ([]llm.Message, error) {
	t := NewTranscript(s.TranscriptPath(sessionID))
	return t.Load()
}

// TranscriptPath returns the file path for a session's transcript.
func (s *Store) TranscriptPath(sessionID string) string {
	return filepath.Join(s.baseDir, safeFileName(sessionID)+".jsonl")
}

func (s *Store) metaPath() string {
	return filepath.Join(s.baseDir, "meta.json")
}

// safeFileName converts a session ID to a safe filename.
func safeFileName(key string) string {
	safe := make([]byte, 0, len(key))
	for _, c := range []byte(key) {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == '.' {
			safe = append(safe, c)
		} else {
			safe = append(safe, '_')
		}
	}
	return string(safe)
}
