package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role tags who authored a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid returns true if this is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Label returns the capitalised role name used in prompt transcripts
func (r Role) Label() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// Message is one entry in a conversation
type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	Role           Role              `json:"role"`
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Sequence       int               `json:"sequence"` // Insertion order within the conversation
	CreatedAt      time.Time         `json:"created_at"`
}

// Conversation is an append-only message history scoped to a user and sector
type Conversation struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	SectorID  string     `json:"sector_id"`
	Messages  []*Message `json:"messages"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewConversation starts an empty conversation. The ID is assigned on first persistence.
func NewConversation(userID, sectorID string, now time.Time) (*Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(sectorID) == "" {
		return nil, fmt.Errorf("%w: sector id is required", ErrInvalidInput)
	}
	return &Conversation{
		UserID:    userID,
		SectorID:  sectorID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Append adds a message at the end of the history
func (c *Conversation) Append(role Role, content string, metadata map[string]string, now time.Time) *Message {
	msg := &Message{
		ConversationID: c.ID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		Sequence:       len(c.Messages),
		CreatedAt:      now,
	}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = now
	return msg
}

// Recent returns up to n of the latest messages, oldest first
func (c *Conversation) Recent(n int) []*Message {
	if n <= 0 || len(c.Messages) == 0 {
		return nil
	}
	if n > len(c.Messages) {
		n = len(c.Messages)
	}
	return c.Messages[len(c.Messages)-n:]
}

// AssignID sets the conversation ID and propagates it to every message
func (c *Conversation) AssignID(id string) {
	c.ID = id
	for _, m := range c.Messages {
		m.ConversationID = id
	}
}

// Validate checks that every message belongs to this conversation and is in order
func (c *Conversation) Validate() error {
	for i, m := range c.Messages {
		if m.ConversationID != c.ID {
			return fmt.Errorf("%w: message %d belongs to conversation %q", ErrInvalidInput, i, m.ConversationID)
		}
		if !m.Role.IsValid() {
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidInput, i, m.Role)
		}
		if m.Sequence != i {
			return fmt.Errorf("%w: message %d has sequence %d", ErrInvalidInput, i, m.Sequence)
		}
	}
	return nil
}
