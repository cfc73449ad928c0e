package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/develove/develove/internal/domain"
	_ "modernc.org/sqlite"
)

// activeChatKey is the app_state key holding the active chat pointer.
const activeChatKey = "active_chat_id"

// SQLiteStore implements Repository using SQLite. Chat mutations are applied
// as whole read-snapshot/write-back transactions so partial effects on a chat
// are never observable.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Chat mutations are read-modify-write; a single connection keeps them
	// serialized without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		current_code TEXT NOT NULL DEFAULT '',
		current_language TEXT NOT NULL DEFAULT 'html',
		messages TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_chats_created ON chats(created_at);

	CREATE TABLE IF NOT EXISTS app_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateChat creates an empty chat and makes it the active chat.
func (s *SQLiteStore) CreateChat(ctx context.Context, title string) (*domain.Chat, error) {
	chat := domain.NewChat(title)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (id, title, created_at, updated_at, current_code, current_language, messages)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chat.ID, chat.Title, chat.CreatedAt.UnixMicro(), chat.UpdatedAt.UnixMicro(),
		chat.CurrentCode, chat.CurrentLanguage, "[]",
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}

	if err := setAppState(ctx, tx, activeChatKey, chat.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit chat creation: %w", err)
	}
	return chat, nil
}

// GetChat retrieves a chat by id. Returns (nil, nil) when it does not exist.
func (s *SQLiteStore) GetChat(ctx context.Context, id string) (*domain.Chat, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at, current_code, current_language, messages
		FROM chats WHERE id = ?`, id)

	chat, err := scanChat(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat row: %w", err)
	}
	return chat, nil
}

// ListChats returns all chats, most recently created first.
func (s *SQLiteStore) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at, current_code, current_language, messages
		FROM chats ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close chat rows", "error", closeErr)
		}
	}()

	var chats []*domain.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat rows: %w", err)
	}
	return chats, nil
}

// DeleteChat removes a chat and clears the active pointer if it pointed at it.
func (s *SQLiteStore) DeleteChat(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	result, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if deleted == 0 {
		slog.Warn("DeleteChat targeted unknown chat", "chat_id", id)
	}

	// Never leave the active pointer dangling.
	_, err = tx.ExecContext(ctx, `DELETE FROM app_state WHERE key = ? AND value = ?`, activeChatKey, id)
	if err != nil {
		return fmt.Errorf("clear active pointer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chat deletion: %w", err)
	}
	return nil
}

// RenameChat sets the chat title as given. No-op for unknown ids.
func (s *SQLiteStore) RenameChat(ctx context.Context, id, title string) error {
	return s.mutateChat(ctx, id, "RenameChat", func(chat *domain.Chat) {
		chat.Title = title
		chat.Touch()
	})
}

// SetActiveChat sets the active pointer unconditionally.
func (s *SQLiteStore) SetActiveChat(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	if err := setAppState(ctx, tx, activeChatKey, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit active pointer: %w", err)
	}
	return nil
}

// ActiveChatID returns the active chat pointer, or "" when unset.
func (s *SQLiteStore) ActiveChatID(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key = ?`, activeChatKey).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query active pointer: %w", err)
	}
	return value, nil
}

// AddMessage appends a message to the chat. Returns (nil, nil) when the chat
// does not exist.
func (s *SQLiteStore) AddMessage(ctx context.Context, chatID string, role domain.Role, content, code, language string) (*domain.Message, error) {
	var msg *domain.Message
	err := s.mutateChat(ctx, chatID, "AddMessage", func(chat *domain.Chat) {
		msg = chat.AppendMessage(role, content, code, language)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// UpdateMessage merges the non-nil fields of update into an existing message.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, chatID, messageID string, update MessageUpdate) error {
	return s.mutateChat(ctx, chatID, "UpdateMessage", func(chat *domain.Chat) {
		msg := chat.FindMessage(messageID)
		if msg == nil {
			slog.Warn("UpdateMessage targeted unknown message", "chat_id", chatID, "message_id", messageID)
			return
		}
		if update.Content != nil {
			msg.Content = *update.Content
		}
		if update.Code != nil {
			msg.Code = *update.Code
		}
		if update.Language != nil {
			msg.Language = *update.Language
		}
		chat.Touch()
	})
}

// UpdateArtifact sets the chat's current code and language.
func (s *SQLiteStore) UpdateArtifact(ctx context.Context, chatID, code, language string) error {
	return s.mutateChat(ctx, chatID, "UpdateArtifact", func(chat *domain.Chat) {
		chat.SetArtifact(code, language)
	})
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// mutateChat loads the chat inside a transaction, applies fn and writes the
// whole aggregate back. Unknown chat ids are logged and silently dropped.
// Retries on SQLite concurrency errors with exponential backoff.
func (s *SQLiteStore) mutateChat(ctx context.Context, chatID, op string, fn func(*domain.Chat)) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.mutateChatOnce(ctx, chatID, op, fn)
		if err == nil {
			return nil
		}
		if isSQLiteConflict(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("chat mutation hit locked database, retrying",
				"op", op, "chat_id", chatID, "attempt", i+1, "delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *SQLiteStore) mutateChatOnce(ctx context.Context, chatID, op string, fn func(*domain.Chat)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	row := tx.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at, current_code, current_language, messages
		FROM chats WHERE id = ?`, chatID)

	chat, err := scanChat(row)
	if err == sql.ErrNoRows {
		slog.Warn("chat mutation targeted unknown chat", "op", op, "chat_id", chatID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan chat row: %w", err)
	}

	fn(chat)

	messages, err := json.Marshal(chat.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE chats
		SET title = ?, updated_at = ?, current_code = ?, current_language = ?, messages = ?
		WHERE id = ?`,
		chat.Title, chat.UpdatedAt.UnixMicro(), chat.CurrentCode, chat.CurrentLanguage,
		string(messages), chat.ID,
	)
	if err != nil {
		return fmt.Errorf("write chat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chat mutation: %w", err)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanChat.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanChat(row scanner) (*domain.Chat, error) {
	var chat domain.Chat
	var createdAt, updatedAt int64
	var messagesJSON string

	err := row.Scan(
		&chat.ID, &chat.Title, &createdAt, &updatedAt,
		&chat.CurrentCode, &chat.CurrentLanguage, &messagesJSON,
	)
	if err != nil {
		return nil, err
	}

	chat.CreatedAt = time.UnixMicro(createdAt)
	chat.UpdatedAt = time.UnixMicro(updatedAt)

	if err := json.Unmarshal([]byte(messagesJSON), &chat.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	if chat.Messages == nil {
		chat.Messages = []*domain.Message{}
	}
	return &chat, nil
}

func setAppState(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO app_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set app state %s: %w", key, err)
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		slog.Warn("transaction rollback failed", "error", err)
	}
}

// isSQLiteConflict reports whether err is a SQLITE_BUSY or "database is
// locked" error, both of which warrant a retry.
func isSQLiteConflict(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY") ||
		strings.Contains(err.Error(), "database is locked")
}
