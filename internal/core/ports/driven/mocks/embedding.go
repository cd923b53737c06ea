package mocks

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var _ driven.EmbeddingProvider = (*MockEmbeddingProvider)(nil)

// ErrMockProvider is returned by MockEmbeddingProvider when told to fail
var ErrMockProvider = errors.New("mock provider failure")

// MockEmbeddingProvider is a mock implementation of EmbeddingProvider for testing.
// Vectors are hashed bags of lowercase words, so texts sharing words are similar.
type MockEmbeddingProvider struct {
	mu         sync.Mutex
	dimensions int
	model      string
	failNext   bool
	failOn     string
	results    []driven.EmbeddingResult
	override   bool
	vectors    map[string][]float32
	requests   []driven.EmbedRequest
	inFlight   int
	maxFlight  int
}

// NewMockEmbeddingProvider creates a new MockEmbeddingProvider
func NewMockEmbeddingProvider() *MockEmbeddingProvider {
	return &MockEmbeddingProvider{
		dimensions: 768,
		model:      "mock-embedding-model",
		vectors:    make(map[string][]float32),
	}
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, req driven.EmbedRequest) ([]driven.EmbeddingResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.inFlight++
	if m.inFlight > m.maxFlight {
		m.maxFlight = m.inFlight
	}
	fail := m.failNext || (m.failOn != "" && strings.Contains(req.Content, m.failOn))
	m.failNext = false
	override, results := m.override, m.results
	vec, fixed := m.vectors[req.Content]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fail {
		return nil, ErrMockProvider
	}
	if override {
		return results, nil
	}
	if !fixed {
		vec = m.generateEmbedding(req.Content)
	}
	return []driven.EmbeddingResult{{Embedding: vec}}, nil
}

func (m *MockEmbeddingProvider) Model() string {
	return m.model
}

func (m *MockEmbeddingProvider) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingProvider) Close() error {
	return nil
}

// generateEmbedding hashes each word into a bucket and normalises the result
func (m *MockEmbeddingProvider) generateEmbedding(text string) []float32 {
	embedding := make([]float32, m.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		embedding[h.Sum32()%uint32(m.dimensions)]++
	}
	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		embedding[0] = 1
		return embedding
	}
	norm = math.Sqrt(norm)
	for i := range embedding {
		embedding[i] = float32(float64(embedding[i]) / norm)
	}
	return embedding
}

// Helper methods for testing

func (m *MockEmbeddingProvider) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

// SetFailOn makes every call whose content contains substr fail
func (m *MockEmbeddingProvider) SetFailOn(substr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = substr
}

// SetResults forces every call to return results verbatim
func (m *MockEmbeddingProvider) SetResults(results []driven.EmbeddingResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = true
	m.results = results
}

// SetVector pins the vector returned for an exact content string
func (m *MockEmbeddingProvider) SetVector(content string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[content] = vec
}

func (m *MockEmbeddingProvider) SetDimensions(dim int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dim
}

// Requests returns a copy of every request received
func (m *MockEmbeddingProvider) Requests() []driven.EmbedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]driven.EmbedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns how many Embed calls were made
func (m *MockEmbeddingProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// MaxConcurrent returns the highest number of overlapping calls seen
func (m *MockEmbeddingProvider) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxFlight
}

// HintsSeen returns the task hint of every request in arrival order
func (m *MockEmbeddingProvider) HintsSeen() []domain.TaskHint {
	m.mu.Lock()
	defer m.mu.Unlock()
	hints := make([]domain.TaskHint, len(m.requests))
	for i, r := range m.requests {
		hints[i] = r.TaskHint
	}
	return hints
}
