// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/develove/develove/internal/domain"
)

// MessageUpdate carries the fields of a message to merge in place.
// Nil fields are left untouched.
type MessageUpdate struct {
	Content  *string
	Code     *string
	Language *string
}

// Repository is the single source of truth for chats, their messages and
// their current code artifact. Mutations addressing a chat or message id that
// does not exist are silent no-ops; lookups return nil for missing chats.
// Every mutation is written through to durable storage before returning.
type Repository interface {
	// CreateChat creates an empty chat, makes it the active chat and returns it.
	// An empty title defaults to domain.DefaultTitle.
	CreateChat(ctx context.Context, title string) (*domain.Chat, error)

	// GetChat retrieves a chat by id. Returns (nil, nil) when it does not exist.
	GetChat(ctx context.Context, id string) (*domain.Chat, error)

	// ListChats returns all chats, most recently created first.
	ListChats(ctx context.Context) ([]*domain.Chat, error)

	// DeleteChat removes a chat. Deleting the active chat clears the active
	// pointer. Deleting an unknown id is not an error.
	DeleteChat(ctx context.Context, id string) error

	// RenameChat sets the chat title as given and bumps UpdatedAt.
	// The store does not validate the title; that is the caller's job.
	RenameChat(ctx context.Context, id, title string) error

	// SetActiveChat sets the active chat pointer unconditionally, even to an
	// id that does not exist. Existence is resolved by the caller at read time.
	SetActiveChat(ctx context.Context, id string) error

	// ActiveChatID returns the active chat pointer, or "" when unset.
	ActiveChatID(ctx context.Context) (string, error)

	// AddMessage appends a message with a fresh id and timestamp and bumps the
	// chat's UpdatedAt. Returns (nil, nil) when the chat does not exist.
	AddMessage(ctx context.Context, chatID string, role domain.Role, content, code, language string) (*domain.Message, error)

	// UpdateMessage merges the non-nil fields of update into an existing
	// message in place and bumps the chat's UpdatedAt.
	UpdateMessage(ctx context.Context, chatID, messageID string, update MessageUpdate) error

	// UpdateArtifact sets the chat's current code and language and bumps
	// UpdatedAt. An empty language defaults to domain.DefaultLanguage.
	UpdateArtifact(ctx context.Context, chatID, code, language string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
