package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bubblewire/bubblewire/internal/bubble"
	"github.com/bubblewire/bubblewire/internal/llm"
)

// TranscriptEntry is a single line in the JSONL transcript file.
type TranscriptEntry struct {
	Type      string         `json:"type"` // "message" | "bubble"
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Message   *llm.Message   `json:"message,omitempty"`
	Bubble    *bubble.Bubble `json:"bubble,omitempty"`
}

// Transcript manages append-only JSONL transcript files.
type Transcript struct {
	path string
}

func NewTranscript(path string) *Transcript {
	return &Transcript{path: path}
}

func (t *Transcript) Path() string { return t.path }

// Append writes a message entry to the transcript file.
func (t *Transcript) Append(msg llm.Message) error {
	entry := TranscriptEntry{
		Type:      "message",
		ID:        fmt.Sprintf("m%d", time.Now().UnixNano()),
		Timestamp: time.Now(),
		Message:   &msg,
	}
	return t.appendEntry(entry)
}

// AppendBubble writes an emitted bubble entry.
func (t *Transcript) AppendBubble(b bubble.Bubble) error {
	entry := TranscriptEntry{
		Type:      "bubble",
		ID:        fmt.Sprintf("b%d", time.Now().UnixNano()),
		Timestamp: time.Now(),
		Bubble:    &b,
	}
	return t.appendEntry(entry)
}

func (t *Transcript) appendEntry(entry TranscriptEntry) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	data = append(data, '\n')

	_, err = f.Write(data)
	return err
}

// Load reads all entries and reconstructs the conversation history. Runs of
// consecutive bubble entries collapse into a single assistant message so the
// backend sees one turn per response.
func (t *Transcript) Load() ([]llm.Message, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var messages []llm.Message
	var run []string
	flush := func() {
		if len(run) > 0 {
			messages = append(messages, llm.AssistantMessage(strings.Join(run, "\n")))
			run = nil
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry TranscriptEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue // skip malformed lines
		}

		switch entry.Type {
		case "message":
			if entry.Message != nil {
				flush()
				messages = append(messages, *entry.Message)
			}
		case "bubble":
			if entry.Bubble != nil && entry.Bubble.Content != "" {
				run = append(run, entry.Bubble.Content)
			}
		}
	}
	flush()

	return messages, scanner.Err()
}

// Entries reads every raw transcript entry, for history endpoints.
func (t *Transcript) Entries() ([]TranscriptEntry, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var entries []TranscriptEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry TranscriptEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}
