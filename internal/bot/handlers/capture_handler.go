package handlers

import (
	"context"
	"database/sql"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/group-digest-bot/internal/database"
)

// NewCaptureHandler returns the default handler that records group messages
// for later analysis. Private chats, commands, and empty messages are ignored.
func NewCaptureHandler(deps HandlerDeps) tgbot.HandlerFunc {
	return captureHandler{deps}.Handle
}

type captureHandler struct {
	deps HandlerDeps
}

func (h captureHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if msg.Chat.Type != models.ChatTypeGroup && msg.Chat.Type != models.ChatTypeSupergroup {
		return
	}
	text := msg.Text
	if text == "" || strings.HasPrefix(text, "/") {
		return
	}

	record := &database.Message{
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		Username:  displayName(msg.From),
		Content:   text,
		Timestamp: time.Unix(int64(msg.Date), 0),
		HasEmoji:  containsEmoji(text),
		IsReply:   msg.ReplyToMessage != nil,
	}
	if msg.ReplyToMessage != nil {
		record.ReplyToID = sql.NullInt64{Int64: int64(msg.ReplyToMessage.ID), Valid: true}
	}

	if err := h.deps.Store.SaveMessage(ctx, record); err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to save captured message",
			"chat_id", msg.Chat.ID, "user_id", msg.From.ID, "error", err)
	}
}

// displayName prefers the username, falling back to first/last name.
func displayName(u *models.User) string {
	if u.Username != "" {
		return u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}

// containsEmoji reports whether the text contains at least one emoji rune.
func containsEmoji(text string) bool {
	for _, r := range text {
		switch {
		case r >= 0x1F300 && r <= 0x1FAFF, // pictographs, emoticons, symbols
			r >= 0x2600 && r <= 0x27BF, // misc symbols, dingbats
			r >= 0x1F1E6 && r <= 0x1F1FF, // regional indicators
			r == 0x2764:
			return true
		}
	}
	return false
}
