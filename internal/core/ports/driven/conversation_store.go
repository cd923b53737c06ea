package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ConversationStore handles conversation persistence (PostgreSQL or Redis)
type ConversationStore interface {
	// Save creates or updates a conversation with its messages.
	// Empty conversation and message IDs are assigned.
	Save(ctx context.Context, conv *domain.Conversation) error

	// Get retrieves a conversation with all messages by ID
	Get(ctx context.Context, id string) (*domain.Conversation, error)

	// GetLatest retrieves the most recently updated conversation of a user in a sector
	GetLatest(ctx context.Context, userID, sectorID string) (*domain.Conversation, error)

	// ListByUser retrieves a user's conversations in a sector, most recent first
	ListByUser(ctx context.Context, userID, sectorID string) ([]*domain.Conversation, error)
}
