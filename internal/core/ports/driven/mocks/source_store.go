package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var _ driven.SourceStore = (*MockSourceStore)(nil)

// MockSourceStore is a mock implementation of SourceStore for testing.
// It stores copies so callers observe only what was saved.
type MockSourceStore struct {
	mu      sync.RWMutex
	sources map[string]*domain.Source
	nextID  int
	saves   []domain.SourceStatus
	SaveErr error
	// SaveErrOn fails Save only for sources in the given status
	SaveErrOn map[domain.SourceStatus]error
}

// NewMockSourceStore creates a new MockSourceStore
func NewMockSourceStore() *MockSourceStore {
	return &MockSourceStore{
		sources: make(map[string]*domain.Source),
	}
}

func (m *MockSourceStore) Save(ctx context.Context, source *domain.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if err := m.SaveErrOn[source.Status]; err != nil {
		return err
	}
	if source.ID == "" {
		m.nextID++
		source.ID = fmt.Sprintf("source-%d", m.nextID)
	}
	m.sources[source.ID] = copySource(source)
	m.saves = append(m.saves, source.Status)
	return nil
}

func (m *MockSourceStore) Get(ctx context.Context, id string) (*domain.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	source, ok := m.sources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copySource(source), nil
}

func (m *MockSourceStore) ListBySector(ctx context.Context, sectorID string, limit, offset int) ([]*domain.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Source
	for _, source := range m.sources {
		if source.SectorID == sectorID && !source.IsDeleted() {
			result = append(result, copySource(source))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if offset >= len(result) {
		return []*domain.Source{}, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockSourceStore) CountBySector(ctx context.Context, sectorID string) (int, error) {
	sources, _ := m.ListBySector(ctx, sectorID, 0, 0)
	return len(sources), nil
}

// Helper methods for testing

// Len returns the number of stored sources
func (m *MockSourceStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sources)
}

// SavedStatuses returns the status of every successful Save in order
func (m *MockSourceStore) SavedStatuses() []domain.SourceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SourceStatus, len(m.saves))
	copy(out, m.saves)
	return out
}

func copySource(s *domain.Source) *domain.Source {
	c := *s
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	if s.DeletedAt != nil {
		t := *s.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}
