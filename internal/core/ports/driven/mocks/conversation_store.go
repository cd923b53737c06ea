package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var _ driven.ConversationStore = (*MockConversationStore)(nil)

// MockConversationStore is a mock implementation of ConversationStore for testing
type MockConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	nextID        int
	nextMsgID     int
	saves         int
	SaveErr       error
}

// NewMockConversationStore creates a new MockConversationStore
func NewMockConversationStore() *MockConversationStore {
	return &MockConversationStore{
		conversations: make(map[string]*domain.Conversation),
	}
}

func (m *MockConversationStore) Save(ctx context.Context, conv *domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if conv.ID == "" {
		m.nextID++
		conv.AssignID(fmt.Sprintf("conversation-%d", m.nextID))
	}
	for _, msg := range conv.Messages {
		if msg.ID == "" {
			m.nextMsgID++
			msg.ID = fmt.Sprintf("message-%d", m.nextMsgID)
		}
		msg.ConversationID = conv.ID
	}
	m.conversations[conv.ID] = copyConversation(conv)
	m.saves++
	return nil
}

func (m *MockConversationStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyConversation(conv), nil
}

func (m *MockConversationStore) GetLatest(ctx context.Context, userID, sectorID string) (*domain.Conversation, error) {
	convs, _ := m.ListByUser(ctx, userID, sectorID)
	if len(convs) == 0 {
		return nil, domain.ErrNotFound
	}
	return convs[0], nil
}

func (m *MockConversationStore) ListByUser(ctx context.Context, userID, sectorID string) ([]*domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Conversation
	for _, conv := range m.conversations {
		if conv.UserID == userID && conv.SectorID == sectorID {
			result = append(result, copyConversation(conv))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	return result, nil
}

// Helper methods for testing

// SaveCount returns the number of successful saves
func (m *MockConversationStore) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func copyConversation(c *domain.Conversation) *domain.Conversation {
	out := *c
	out.Messages = make([]*domain.Message, len(c.Messages))
	for i, msg := range c.Messages {
		mc := *msg
		if msg.Metadata != nil {
			mc.Metadata = make(map[string]string, len(msg.Metadata))
			for k, v := range msg.Metadata {
				mc.Metadata[k] = v
			}
		}
		out.Messages[i] = &mc
	}
	return &out
}
