package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var _ driven.FragmentIndexer = (*MockFragmentIndexer)(nil)

// MockFragmentIndexer records indexing calls for testing
type MockFragmentIndexer struct {
	mu       sync.Mutex
	indexed  map[string][]string // sourceID -> fragment IDs
	IndexErr error
}

// NewMockFragmentIndexer creates a new MockFragmentIndexer
func NewMockFragmentIndexer() *MockFragmentIndexer {
	return &MockFragmentIndexer{indexed: make(map[string][]string)}
}

func (m *MockFragmentIndexer) Index(ctx context.Context, fragments []*domain.Fragment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IndexErr != nil {
		return m.IndexErr
	}
	for _, f := range fragments {
		m.indexed[f.SourceID] = append(m.indexed[f.SourceID], f.ID)
	}
	return nil
}

func (m *MockFragmentIndexer) RemoveBySource(ctx context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.indexed, sourceID)
	return nil
}

// Indexed returns the fragment IDs indexed for a source
func (m *MockFragmentIndexer) Indexed(sourceID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.indexed[sourceID]...)
}
