// Package domain defines the core chat entities.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultLanguage is the artifact language a chat starts with.
const DefaultLanguage = "html"

// DefaultTitle is used when a chat is created without a title.
const DefaultTitle = "New Project"

// Message is a single turn in a conversation. Code and Language are only set
// on assistant messages that produced an artifact.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Code      string    `json:"code,omitempty"`
	Language  string    `json:"language,omitempty"`
}

// Chat is the aggregate root for a conversation and its current code artifact.
type Chat struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Messages        []*Message `json:"messages"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CurrentCode     string     `json:"current_code"`
	CurrentLanguage string     `json:"current_language"`
}

// NewChat creates an empty chat with no messages and no artifact.
func NewChat(title string) *Chat {
	if title == "" {
		title = DefaultTitle
	}
	now := time.Now()
	return &Chat{
		ID:              uuid.NewString(),
		Title:           title,
		Messages:        []*Message{},
		CreatedAt:       now,
		UpdatedAt:       now,
		CurrentCode:     "",
		CurrentLanguage: DefaultLanguage,
	}
}

// AppendMessage creates a message with a fresh id and timestamp, appends it
// and bumps UpdatedAt. Message order is insertion order and is never re-sorted.
func (c *Chat) AppendMessage(role Role, content, code, language string) *Message {
	msg := &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Code:      code,
		Language:  language,
	}
	c.Messages = append(c.Messages, msg)
	c.Touch()
	return msg
}

// FindMessage returns the message with the given id, or nil.
func (c *Chat) FindMessage(messageID string) *Message {
	for _, m := range c.Messages {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

// SetArtifact records the latest accepted code artifact. An empty language
// defaults to html.
func (c *Chat) SetArtifact(code, language string) {
	if language == "" {
		language = DefaultLanguage
	}
	c.CurrentCode = code
	c.CurrentLanguage = language
	c.Touch()
}

// Touch bumps UpdatedAt, keeping it monotonic with respect to CreatedAt.
func (c *Chat) Touch() {
	now := time.Now()
	if now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
}
