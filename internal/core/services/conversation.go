package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure conversationService implements ConversationService
var _ driving.ConversationService = (*conversationService)(nil)

// conversationService implements the ConversationService interface
type conversationService struct {
	conversations driven.ConversationStore
}

// NewConversationService creates a new ConversationService
func NewConversationService(conversations driven.ConversationStore) driving.ConversationService {
	return &conversationService{conversations: conversations}
}

// Get retrieves a conversation by ID
func (s *conversationService) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidInput
	}
	conv, err := s.conversations.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrConversationNotFound
	}
	return conv, err
}

// ListByUser retrieves a user's conversations in a sector, most recent first
func (s *conversationService) ListByUser(ctx context.Context, userID, sectorID string) ([]*domain.Conversation, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sectorID) == "" {
		return nil, fmt.Errorf("%w: user id and sector id are required", domain.ErrInvalidInput)
	}
	return s.conversations.ListByUser(ctx, userID, sectorID)
}

// History returns up to limit of the latest messages, oldest first.
// A non-positive limit returns the whole history.
func (s *conversationService) History(ctx context.Context, id string, limit int) ([]*domain.Message, error) {
	conv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return conv.Messages, nil
	}
	return conv.Recent(limit), nil
}
