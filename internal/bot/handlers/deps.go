package handlers

import (
	"log/slog"

	"github.com/group-digest-bot/internal/config"
	"github.com/group-digest-bot/internal/database"
	"github.com/group-digest-bot/internal/scheduler"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Store     database.Store
	Scheduler *scheduler.GroupScheduler
}
