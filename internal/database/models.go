package database

import (
	"database/sql"
	"time"
)

// Message represents a message captured from a Telegram group chat.
// Immutable once ingested; analysis never mutates stored rows.
type Message struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	ChatID    int64         `db:"chat_id"`
	UserID    int64         `db:"user_id"`
	Username  string        `db:"username"`
	Content   string        `db:"content"`
	Timestamp time.Time     `db:"timestamp"`
	HasEmoji  bool          `db:"has_emoji"`
	IsReply   bool          `db:"is_reply"`
	ReplyToID sql.NullInt64 `db:"reply_to_id"`
}

// GroupConfig holds per-group analysis settings. Missing rows fall back to
// the file-level analysis defaults.
type GroupConfig struct {
	ChatID        int64          `db:"chat_id"`
	Enabled       bool           `db:"enabled"`
	AnalysisDays  int            `db:"analysis_days"`
	MaxMessages   int            `db:"max_messages"`
	ModelOverride sql.NullString `db:"model_override"`
	LastRunAt     sql.NullTime   `db:"last_run_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}
