package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ConversationService provides read access to conversations
type ConversationService interface {
	// Get retrieves a conversation by ID
	Get(ctx context.Context, id string) (*domain.Conversation, error)

	// ListByUser retrieves a user's conversations in a sector
	ListByUser(ctx context.Context, userID, sectorID string) ([]*domain.Conversation, error)

	// History returns up to limit of the latest messages of a conversation
	History(ctx context.Context, id string, limit int) ([]*domain.Message, error)
}
