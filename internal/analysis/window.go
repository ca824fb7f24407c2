package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/group-digest-bot/internal/database"
)

// Window is the bounded, time- and count-limited slice of messages analyzed
// in one run. Created fresh per run and owned exclusively by that run.
type Window struct {
	Messages []database.Message
	Meta     WindowMeta
}

// BuildWindow selects messages with timestamp >= now - days and, when more
// than maxMessages qualify, keeps the most recent maxMessages in chronological
// order. Returns ErrEmptyWindow when nothing qualifies.
func BuildWindow(messages []database.Message, days, maxMessages int, now time.Time) (*Window, error) {
	if days < 1 {
		return nil, fmt.Errorf("days must be >= 1, got %d", days)
	}
	if maxMessages < 1 {
		return nil, fmt.Errorf("maxMessages must be >= 1, got %d", maxMessages)
	}

	from := now.AddDate(0, 0, -days)

	selected := make([]database.Message, 0, len(messages))
	for _, m := range messages {
		if m.Timestamp.Before(from) || m.Timestamp.After(now) {
			continue
		}
		selected = append(selected, m)
	}

	if len(selected) == 0 {
		return nil, ErrEmptyWindow
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Timestamp.Before(selected[j].Timestamp)
	})

	// Chronological tail: the most recent maxMessages.
	if len(selected) > maxMessages {
		selected = selected[len(selected)-maxMessages:]
	}

	return &Window{
		Messages: selected,
		Meta: WindowMeta{
			Days:        days,
			MaxMessages: maxMessages,
			From:        from,
			To:          now,
		},
	}, nil
}

// Senders returns the set of user IDs present in the window.
func (w *Window) Senders() map[int64]struct{} {
	senders := make(map[int64]struct{}, len(w.Messages))
	for _, m := range w.Messages {
		senders[m.UserID] = struct{}{}
	}
	return senders
}

// SenderNames returns the set of display names present in the window.
func (w *Window) SenderNames() map[string]struct{} {
	names := make(map[string]struct{}, len(w.Messages))
	for _, m := range w.Messages {
		if m.Username != "" {
			names[m.Username] = struct{}{}
		}
	}
	return names
}
