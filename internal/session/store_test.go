package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bubblewire/bubblewire/internal/bubble"
	"github.com/bubblewire/bubblewire/internal/validate"
)

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := NewStore(dir)
	entry := s.GetOrCreate("alpha")
	entry.Turns = 3
	s.SetSurvey("alpha", &SurveyState{
		Active: true,
		Questions: []SurveyQuestion{
			{
				Prompt:     "Did this help?",
				ChoiceKind: validate.SingleChoice,
				Options: []validate.ExpectedOption{
					{ID: "y", Text: "Yes"},
					{ID: "n", Text: "No"},
				},
			},
		},
	})
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewStore(dir)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := reloaded.Get("alpha")
	if got == nil {
		t.Fatal("entry missing after reload")
	}
	if got.Turns != 3 {
		t.Fatalf("Turns = %d, want 3", got.Turns)
	}
	if got.Survey == nil || !got.Survey.Active || len(got.Survey.Questions) != 1 {
		t.Fatalf("survey state lost: %+v", got.Survey)
	}
}

func TestActiveSurveyContext(t *testing.T) {
	s := NewStore(t.TempDir())
	s.GetOrCreate("alpha")

	// No survey: nil contract, no error.
	q, err := s.ActiveSurveyContext(context.Background(), "alpha")
	if err != nil || q != nil {
		t.Fatalf("expected nil contract for plain session, got %v, %v", q, err)
	}

	min, max := 1, 3
	s.SetSurvey("alpha", &SurveyState{
		Active:        true,
		QuestionIndex: 1,
		Questions: []SurveyQuestion{
			{Prompt: "first", ChoiceKind: validate.SingleChoice},
			{
				Prompt:        "second",
				ChoiceKind:    validate.MultipleChoice,
				Options:       []validate.ExpectedOption{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}},
				MinSelections: &min,
				MaxSelections: &max,
			},
		},
	})

	q, err = s.ActiveSurveyContext(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("ActiveSurveyContext: %v", err)
	}
	if q.QuestionIndex != 1 || q.Prompt != "second" {
		t.Fatalf("wrong question selected: %+v", q)
	}
	if q.ChoiceKind != validate.MultipleChoice || len(q.ExpectedOptions) != 2 {
		t.Fatalf("contract fields lost: %+v", q)
	}
	if q.MinSelections == nil || *q.MinSelections != 1 || q.MaxSelections == nil || *q.MaxSelections != 3 {
		t.Fatalf("selection bounds lost: %+v", q)
	}
}

func TestAdvanceSurveyDeactivatesPastLastQuestion(t *testing.T) {
	s := NewStore(t.TempDir())
	s.GetOrCreate("alpha")
	s.SetSurvey("alpha", &SurveyState{
		Active:    true,
		Questions: []SurveyQuestion{{Prompt: "only one", ChoiceKind: validate.SingleChoice}},
	})

	s.AdvanceSurvey("alpha")

	entry := s.Get("alpha")
	if entry.Survey.Active {
		t.Fatal("survey still active past its last question")
	}
	q, err := s.ActiveSurveyContext(context.Background(), "alpha")
	if err != nil || q != nil {
		t.Fatalf("finished survey must yield nil contract, got %v, %v", q, err)
	}
}

func TestTranscriptHistoryCollapsesBubbleRuns(t *testing.T) {
	s := NewStore(t.TempDir())
	s.GetOrCreate("alpha")

	if err := s.AppendUserMessage("alpha", "hello there"); err != nil {
		t.Fatalf("AppendUserMessage: %v", err)
	}
	s.SaveBubble("alpha", bubble.Text("Hi!"))
	s.SaveBubble("alpha", bubble.Text("How can I help?"))
	if err := s.AppendUserMessage("alpha", "tell me more"); err != nil {
		t.Fatalf("AppendUserMessage: %v", err)
	}

	history, err := s.History("alpha")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected user, assistant, user; got %+v", history)
	}
	if history[0].Role != "user" || history[0].Content != "hello there" {
		t.Fatalf("first turn wrong: %+v", history[0])
	}
	if history[1].Role != "assistant" || history[1].Content != "Hi!\nHow can I help?" {
		t.Fatalf("bubble run not collapsed: %+v", history[1])
	}
	if history[2].Role != "user" {
		t.Fatalf("third turn wrong: %+v", history[2])
	}
}

func TestDeleteRemovesTranscript(t *testing.T) {
	s := NewStore(t.TempDir())
	s.GetOrCreate("to-remove")
	s.SaveBubble("to-remove", bubble.Text("bye"))

	if err := s.Delete("to-remove"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Get("to-remove") != nil {
		t.Fatal("entry survived delete")
	}
	entries, err := NewTranscript(s.TranscriptPath("to-remove")).Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if entries != nil {
		t.Fatalf("transcript survived delete: %+v", entries)
	}
}

func TestJanitorSweepsIdleSessions(t *testing.T) {
	s := NewStore(t.TempDir())
	stale := s.GetOrCreate("stale")
	stale.UpdatedAt = time.Now().Add(-48 * time.Hour)
	s.GetOrCreate("fresh")

	j, err := NewJanitor(s, 24*time.Hour, "@hourly")
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}
	j.Sweep()

	if s.Get("stale") != nil {
		t.Fatal("idle session survived the sweep")
	}
	if s.Get("fresh") == nil {
		t.Fatal("active session was swept")
	}
}

func TestSafeFileName(t *testing.T) {
	got := safeFileName("user@example.com/chat 1")
	if got != "user_example.com_chat_1" {
		t.Fatalf("safeFileName = %q", got)
	}
}

func TestLoadNullMetadataFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), []byte("null"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewStore(dir)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Writes must work against the loaded store.
	if entry := s.GetOrCreate("alpha"); entry == nil {
		t.Fatal("GetOrCreate returned nil")
	}
	s.SetSurvey("alpha", &SurveyState{Active: true})
	if got := s.Get("alpha"); got == nil || got.Survey == nil {
		t.Fatal("survey state was not stored")
	}
}
