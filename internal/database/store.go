package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage inserts a new message record.
	SaveMessage(ctx context.Context, message *Message) error

	// GetMessagesSince retrieves up to 'limit' of the most recent messages for
	// a chat with timestamp >= since, in chronological order.
	GetMessagesSince(ctx context.Context, chatID int64, since time.Time, limit int) ([]Message, error)

	// GetGroupConfig retrieves per-group settings. Returns nil, nil if the
	// group has no stored configuration.
	GetGroupConfig(ctx context.Context, chatID int64) (*GroupConfig, error)

	// UpsertGroupConfig inserts or updates a group's settings.
	UpsertGroupConfig(ctx context.Context, cfg *GroupConfig) error

	// ListEnabledGroups returns the chat IDs of all groups with analysis enabled.
	ListEnabledGroups(ctx context.Context) ([]int64, error)

	// UpdateGroupLastRun records the completion time of a group's last analysis run.
	UpdateGroupLastRun(ctx context.Context, chatID int64, runAt time.Time) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.ChatID == 0 {
		return fmt.Errorf("message must have a non-zero chat_id")
	}
	if message.UserID == 0 {
		return fmt.Errorf("message must have a non-zero user_id")
	}
	if message.Timestamp.IsZero() {
		return fmt.Errorf("message must have a non-zero timestamp")
	}

	message.CreatedAt = time.Now().UTC()

	query := `INSERT INTO messages
		(created_at, chat_id, user_id, username, content, timestamp, has_emoji, is_reply, reply_to_id)
		VALUES (:created_at, :chat_id, :user_id, :username, :content, :timestamp, :has_emoji, :is_reply, :reply_to_id)`

	if _, err := s.db.NamedExecContext(ctx, query, message); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save message",
			"chat_id", message.ChatID, "user_id", message.UserID, "error", err)
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (s *sqlxStore) GetMessagesSince(ctx context.Context, chatID int64, since time.Time, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	// Select the most recent rows first, then reverse into chronological order.
	query := `SELECT id, created_at, chat_id, user_id, username, content, timestamp, has_emoji, is_reply, reply_to_id
		FROM messages
		WHERE chat_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?`

	var rows []Message
	if err := s.db.SelectContext(ctx, &rows, query, chatID, since, limit); err != nil {
		s.logger.ErrorContext(ctx, "Failed to get messages", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get messages for chat %d: %w", chatID, err)
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (s *sqlxStore) GetGroupConfig(ctx context.Context, chatID int64) (*GroupConfig, error) {
	query := `SELECT chat_id, enabled, analysis_days, max_messages, model_override, last_run_at, updated_at
		FROM group_configs WHERE chat_id = ?`

	var cfg GroupConfig
	if err := s.db.GetContext(ctx, &cfg, query, chatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.ErrorContext(ctx, "Failed to get group config", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get group config for chat %d: %w", chatID, err)
	}
	return &cfg, nil
}

func (s *sqlxStore) UpsertGroupConfig(ctx context.Context, cfg *GroupConfig) error {
	if cfg == nil {
		return fmt.Errorf("cannot save nil group config")
	}
	cfg.UpdatedAt = time.Now().UTC()

	query := `INSERT INTO group_configs (chat_id, enabled, analysis_days, max_messages, model_override, last_run_at, updated_at)
		VALUES (:chat_id, :enabled, :analysis_days, :max_messages, :model_override, :last_run_at, :updated_at)
		ON CONFLICT(chat_id) DO UPDATE SET
			enabled = excluded.enabled,
			analysis_days = excluded.analysis_days,
			max_messages = excluded.max_messages,
			model_override = excluded.model_override,
			updated_at = excluded.updated_at`

	if _, err := s.db.NamedExecContext(ctx, query, cfg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to upsert group config", "chat_id", cfg.ChatID, "error", err)
		return fmt.Errorf("failed to upsert group config for chat %d: %w", cfg.ChatID, err)
	}
	return nil
}

func (s *sqlxStore) ListEnabledGroups(ctx context.Context) ([]int64, error) {
	var chatIDs []int64
	query := `SELECT chat_id FROM group_configs WHERE enabled = 1 ORDER BY chat_id`

	if err := s.db.SelectContext(ctx, &chatIDs, query); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list enabled groups", "error", err)
		return nil, fmt.Errorf("failed to list enabled groups: %w", err)
	}
	return chatIDs, nil
}

func (s *sqlxStore) UpdateGroupLastRun(ctx context.Context, chatID int64, runAt time.Time) error {
	query := `UPDATE group_configs SET last_run_at = ?, updated_at = ? WHERE chat_id = ?`

	res, err := s.db.ExecContext(ctx, query, runAt.UTC(), time.Now().UTC(), chatID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to update group last run", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to update last run for chat %d: %w", chatID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		s.logger.DebugContext(ctx, "No group config row to update last run", "chat_id", chatID)
	}
	return nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("failed to analyze database: %w", err)
	}
	s.logger.InfoContext(ctx, "SQL maintenance completed", "duration", time.Since(start))
	return nil
}
