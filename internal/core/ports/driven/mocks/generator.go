package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var _ driven.Generator = (*MockGenerator)(nil)

// MockGenerator is a mock implementation of Generator for testing
type MockGenerator struct {
	mu       sync.Mutex
	model    string
	response string
	err      error
	requests []driven.GenerateRequest
}

// NewMockGenerator creates a new MockGenerator that answers with a fixed text
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		model:    "mock-llm",
		response: "mock answer",
	}
}

func (m *MockGenerator) Generate(ctx context.Context, req driven.GenerateRequest) (*driven.GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &driven.GenerateResponse{Text: m.response}, nil
}

func (m *MockGenerator) Model() string {
	return m.model
}

func (m *MockGenerator) Ping(ctx context.Context) error {
	return nil
}

func (m *MockGenerator) Close() error {
	return nil
}

// Helper methods for testing

func (m *MockGenerator) SetResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = text
}

func (m *MockGenerator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns every request received
func (m *MockGenerator) Requests() []driven.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]driven.GenerateRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns how many Generate calls were made
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
