package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConversationStore = (*ConversationStore)(nil)

const (
	// Key prefixes for Redis
	conversationPrefix     = "conversation:"
	conversationUserPrefix = "conversation:user:"
)

// ConversationStore implements driven.ConversationStore using Redis.
// Each conversation is one JSON document; a sorted set per user and sector
// indexes them by update time.
type ConversationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewConversationStore creates a new Redis-backed ConversationStore.
// A positive ttl expires idle conversations.
func NewConversationStore(client *redis.Client, ttl time.Duration) *ConversationStore {
	return &ConversationStore{client: client, ttl: ttl}
}

// userIndexKey escapes both parts so IDs containing the separator cannot collide
func userIndexKey(userID, sectorID string) string {
	return conversationUserPrefix + url.QueryEscape(userID) + ":" + url.QueryEscape(sectorID)
}

// Save stores the conversation and refreshes its position in the user index
func (s *ConversationStore) Save(ctx context.Context, conv *domain.Conversation) error {
	if conv.ID == "" {
		conv.AssignID(uuid.NewString())
	}
	for _, m := range conv.Messages {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
	}
	if err := conv.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	index := userIndexKey(conv.UserID, conv.SectorID)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, conversationPrefix+conv.ID, data, s.ttl)
	pipe.ZAdd(ctx, index, redis.Z{Score: float64(conv.UpdatedAt.UnixNano()), Member: conv.ID})
	if s.ttl > 0 {
		pipe.Expire(ctx, index, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// Get retrieves a conversation by ID
func (s *ConversationStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	data, err := s.client.Get(ctx, conversationPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	var conv domain.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

// GetLatest retrieves the most recently updated conversation of a user in a sector
func (s *ConversationStore) GetLatest(ctx context.Context, userID, sectorID string) (*domain.Conversation, error) {
	convs, err := s.list(ctx, userID, sectorID, 1)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, domain.ErrNotFound
	}
	return convs[0], nil
}

// ListByUser retrieves a user's conversations in a sector, most recent first
func (s *ConversationStore) ListByUser(ctx context.Context, userID, sectorID string) ([]*domain.Conversation, error) {
	return s.list(ctx, userID, sectorID, 0)
}

// list walks the index newest first, pruning IDs whose document expired.
// A positive limit stops after that many live conversations.
func (s *ConversationStore) list(ctx context.Context, userID, sectorID string, limit int) ([]*domain.Conversation, error) {
	index := userIndexKey(userID, sectorID)

	ids, err := s.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user conversations: %w", err)
	}

	var convs []*domain.Conversation
	var expiredIDs []any

	for _, id := range ids {
		conv, err := s.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			expiredIDs = append(expiredIDs, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if conv.UserID != userID || conv.SectorID != sectorID {
			continue
		}
		convs = append(convs, conv)
		if limit > 0 && len(convs) == limit {
			break
		}
	}

	if len(expiredIDs) > 0 {
		if err := s.client.ZRem(ctx, index, expiredIDs...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired conversations: %w", err)
		}
	}

	return convs, nil
}
