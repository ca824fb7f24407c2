package analysis_test

import (
	"errors"
	"testing"
	"time"

	"github.com/group-digest-bot/internal/analysis"
	"github.com/group-digest-bot/internal/database"
)

func msg(userID int64, name, content string, ts time.Time) database.Message {
	return database.Message{
		ChatID:    -100,
		UserID:    userID,
		Username:  name,
		Content:   content,
		Timestamp: ts,
	}
}

func TestBuildWindowFiltersAndOrders(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	messages := []database.Message{
		msg(1, "ana", "third", now.Add(-1*time.Hour)),
		msg(2, "bob", "first", now.Add(-20*time.Hour)),
		msg(1, "ana", "too old", now.Add(-48*time.Hour)),
		msg(3, "cat", "second", now.Add(-10*time.Hour)),
	}

	w, err := analysis.BuildWindow(messages, 1, 100, now)
	if err != nil {
		t.Fatalf("BuildWindow() error = %v", err)
	}
	if len(w.Messages) != 3 {
		t.Fatalf("len(Messages) = %d, want 3", len(w.Messages))
	}
	want := []string{"first", "second", "third"}
	for i, m := range w.Messages {
		if m.Content != want[i] {
			t.Errorf("Messages[%d].Content = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestBuildWindowKeepsMostRecentWhenOverCap(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	var messages []database.Message
	for i := 0; i < 10; i++ {
		messages = append(messages, msg(1, "ana", string(rune('a'+i)), now.Add(-time.Duration(10-i)*time.Hour)))
	}

	w, err := analysis.BuildWindow(messages, 1, 4, now)
	if err != nil {
		t.Fatalf("BuildWindow() error = %v", err)
	}
	if len(w.Messages) != 4 {
		t.Fatalf("len(Messages) = %d, want 4", len(w.Messages))
	}
	// The chronological tail survives, still oldest-first.
	want := []string{"g", "h", "i", "j"}
	for i, m := range w.Messages {
		if m.Content != want[i] {
			t.Errorf("Messages[%d].Content = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestBuildWindowEmpty(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		messages []database.Message
	}{
		{name: "no messages at all", messages: nil},
		{name: "all outside window", messages: []database.Message{
			msg(1, "ana", "old", now.Add(-72*time.Hour)),
			msg(2, "bob", "future", now.Add(time.Hour)),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := analysis.BuildWindow(tt.messages, 1, 100, now)
			if !errors.Is(err, analysis.ErrEmptyWindow) {
				t.Errorf("BuildWindow() error = %v, want ErrEmptyWindow", err)
			}
		})
	}
}

func TestBuildWindowRejectsInvalidBounds(t *testing.T) {
	t.Parallel()

	now := time.Now()
	messages := []database.Message{msg(1, "ana", "hi", now)}

	if _, err := analysis.BuildWindow(messages, 0, 100, now); err == nil {
		t.Error("BuildWindow() with days=0 returned nil error")
	}
	if _, err := analysis.BuildWindow(messages, 1, 0, now); err == nil {
		t.Error("BuildWindow() with maxMessages=0 returned nil error")
	}
}
