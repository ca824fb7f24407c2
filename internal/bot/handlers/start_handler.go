package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns the handler for the /start command.
func NewStartHandler(deps HandlerDeps) tgbot.HandlerFunc {
	return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
		if update.Message == nil {
			return
		}
		chatID := update.Message.Chat.ID
		text := "Hi! I read this group's chatter and turn it into a daily digest: " +
			"hot topics, member titles, and golden quotes. Use /help to see the commands."

		if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
			deps.Logger.ErrorContext(ctx, "Failed to send start reply", "chat_id", chatID, "error", err)
		}
	}
}
