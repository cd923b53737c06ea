package mocks

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var (
	_ driven.FragmentStore  = (*MockFragmentStore)(nil)
	_ driven.VectorSearcher = (*MockFragmentStore)(nil)
)

// MockFragmentStore is an in-memory FragmentStore and VectorSearcher for testing.
// Search computes exact cosine similarity.
type MockFragmentStore struct {
	mu        sync.RWMutex
	fragments map[string]*domain.Fragment
	order     []string
	nextID    int
	SaveErr   error
	SearchErr error
	searches  int
}

// NewMockFragmentStore creates a new MockFragmentStore
func NewMockFragmentStore() *MockFragmentStore {
	return &MockFragmentStore{
		fragments: make(map[string]*domain.Fragment),
	}
}

func (m *MockFragmentStore) SaveBatch(ctx context.Context, fragments []*domain.Fragment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.saveLocked(fragments)
	return nil
}

func (m *MockFragmentStore) ReplaceBySource(ctx context.Context, sourceID string, fragments []*domain.Fragment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.deleteLocked(sourceID)
	m.saveLocked(fragments)
	return nil
}

func (m *MockFragmentStore) saveLocked(fragments []*domain.Fragment) {
	for _, f := range fragments {
		if f.ID == "" {
			m.nextID++
			f.ID = fmt.Sprintf("fragment-%d", m.nextID)
		}
		if _, exists := m.fragments[f.ID]; !exists {
			m.order = append(m.order, f.ID)
		}
		m.fragments[f.ID] = copyFragment(f)
	}
}

func (m *MockFragmentStore) Get(ctx context.Context, id string) (*domain.Fragment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fragments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyFragment(f), nil
}

func (m *MockFragmentStore) GetBySource(ctx context.Context, sourceID string) ([]*domain.Fragment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Fragment
	for _, id := range m.order {
		if f := m.fragments[id]; f.SourceID == sourceID {
			result = append(result, copyFragment(f))
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

func (m *MockFragmentStore) CountBySource(ctx context.Context, sourceID string) (int, error) {
	fragments, _ := m.GetBySource(ctx, sourceID)
	return len(fragments), nil
}

func (m *MockFragmentStore) MergeMetadata(ctx context.Context, id string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fragments[id]
	if !ok {
		return domain.ErrNotFound
	}
	f.MergeMetadata(metadata)
	return nil
}

func (m *MockFragmentStore) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fragments[id]
	if !ok {
		return domain.ErrNotFound
	}
	return f.ReplaceEmbedding(embedding)
}

func (m *MockFragmentStore) DeleteBySource(ctx context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(sourceID)
	return nil
}

func (m *MockFragmentStore) deleteLocked(sourceID string) {
	kept := m.order[:0]
	for _, id := range m.order {
		if m.fragments[id].SourceID == sourceID {
			delete(m.fragments, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

func (m *MockFragmentStore) Search(ctx context.Context, q domain.VectorQuery) ([]*domain.ScoredFragment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches++
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	var hits []*domain.ScoredFragment
	for _, id := range m.order {
		f := m.fragments[id]
		if f.SectorID != q.SectorID || !f.HasEmbedding() {
			continue
		}
		sim := CosineSimilarity(q.Vector, f.Embedding)
		if sim < q.MinSimilarity {
			continue
		}
		hits = append(hits, &domain.ScoredFragment{Fragment: copyFragment(f), Similarity: sim})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// Helper methods for testing

// Len returns the number of stored fragments
func (m *MockFragmentStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.fragments)
}

// SearchCount returns how many searches were issued
func (m *MockFragmentStore) SearchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searches
}

// CosineSimilarity returns 1 - cosine distance, or 0 if either vector is zero
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func copyFragment(f *domain.Fragment) *domain.Fragment {
	c := *f
	if f.Embedding != nil {
		c.Embedding = append([]float32(nil), f.Embedding...)
	}
	if f.Metadata != nil {
		c.Metadata = make(map[string]string, len(f.Metadata))
		for k, v := range f.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
