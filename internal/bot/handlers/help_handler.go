package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHelpHandler returns the handler for the /help command.
func NewHelpHandler(deps HandlerDeps) tgbot.HandlerFunc {
	return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
		if update.Message == nil {
			return
		}
		chatID := update.Message.Chat.ID
		text := "Commands:\n" +
			"/digest [days] - generate a digest of recent group activity (admin only)\n" +
			"/digest_status - show whether digests are enabled and when the last one ran\n" +
			"/digest_on - enable digests for this group (admin only)\n" +
			"/digest_off - disable digests for this group (admin only)\n" +
			"/help - show this message"

		if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
			deps.Logger.ErrorContext(ctx, "Failed to send help reply", "chat_id", chatID, "error", err)
		}
	}
}
