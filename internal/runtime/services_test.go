package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// mockEmbeddingProvider is a mock implementation for testing
type mockEmbeddingProvider struct {
	healthCheckErr error
	closed         bool
}

func (m *mockEmbeddingProvider) Embed(ctx context.Context, req driven.EmbedRequest) ([]driven.EmbeddingResult, error) {
	return nil, nil
}

func (m *mockEmbeddingProvider) Model() string {
	return "test-model"
}

func (m *mockEmbeddingProvider) HealthCheck(ctx context.Context) error {
	return m.healthCheckErr
}

func (m *mockEmbeddingProvider) Close() error {
	m.closed = true
	return nil
}

// mockGenerator is a mock implementation for testing
type mockGenerator struct {
	pingErr error
	closed  bool
}

func (m *mockGenerator) Generate(ctx context.Context, req driven.GenerateRequest) (*driven.GenerateResponse, error) {
	return &driven.GenerateResponse{}, nil
}

func (m *mockGenerator) Model() string {
	return "test-llm"
}

func (m *mockGenerator) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockGenerator) Close() error {
	m.closed = true
	return nil
}

func TestNewServices(t *testing.T) {
	services := NewServices()

	if services == nil {
		t.Fatal("expected non-nil services")
	}
	if services.EmbeddingProvider() != nil {
		t.Error("expected nil embedding provider initially")
	}
	if services.Generator() != nil {
		t.Error("expected nil generator initially")
	}
}

func TestServices_SetEmbeddingProvider_ClosesOld(t *testing.T) {
	services := NewServices()

	old := &mockEmbeddingProvider{}
	services.SetEmbeddingProvider(old)

	replacement := &mockEmbeddingProvider{}
	services.SetEmbeddingProvider(replacement)

	if !old.closed {
		t.Error("expected old provider to be closed")
	}
	if replacement.closed {
		t.Error("expected new provider to stay open")
	}
	if services.EmbeddingProvider() != replacement {
		t.Error("expected new provider to be installed")
	}
}

func TestServices_SetGenerator_ClosesOld(t *testing.T) {
	services := NewServices()

	old := &mockGenerator{}
	services.SetGenerator(old)
	services.SetGenerator(nil)

	if !old.closed {
		t.Error("expected old generator to be closed")
	}
	if services.Generator() != nil {
		t.Error("expected generator to be cleared")
	}
}

func TestServices_ValidateAndSetEmbedding(t *testing.T) {
	services := NewServices()

	failing := &mockEmbeddingProvider{healthCheckErr: errors.New("unreachable")}
	if err := services.ValidateAndSetEmbedding(context.Background(), failing); err == nil {
		t.Fatal("expected health check error")
	}
	if !failing.closed {
		t.Error("expected rejected provider to be closed")
	}
	if services.EmbeddingProvider() != nil {
		t.Error("expected rejected provider not to be installed")
	}

	healthy := &mockEmbeddingProvider{}
	if err := services.ValidateAndSetEmbedding(context.Background(), healthy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if services.EmbeddingProvider() != healthy {
		t.Error("expected healthy provider to be installed")
	}

	if err := services.ValidateAndSetEmbedding(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !healthy.closed {
		t.Error("expected provider to be closed when cleared")
	}
}

func TestServices_ValidateAndSetGenerator(t *testing.T) {
	services := NewServices()

	failing := &mockGenerator{pingErr: errors.New("connection refused")}
	if err := services.ValidateAndSetGenerator(context.Background(), failing); err == nil {
		t.Fatal("expected ping error")
	}
	if !failing.closed {
		t.Error("expected rejected generator to be closed")
	}

	healthy := &mockGenerator{}
	if err := services.ValidateAndSetGenerator(context.Background(), healthy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if services.Generator() != healthy {
		t.Error("expected healthy generator to be installed")
	}
}

func TestServices_HealthCheck(t *testing.T) {
	services := NewServices()
	dbErr := errors.New("connection reset")

	services.Register("postgres", func(ctx context.Context) error { return dbErr }, nil)
	services.Register("redis", func(ctx context.Context) error { return nil }, nil)
	services.SetGenerator(&mockGenerator{})

	results := services.HealthCheck(context.Background())

	want := []string{"embedding", "llm", "postgres", "redis"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, name := range want {
		if results[i].Name != name {
			t.Errorf("result %d: expected %s, got %s", i, name, results[i].Name)
		}
	}

	if !errors.Is(results[0].Err, domain.ErrServiceUnavailable) {
		t.Errorf("expected missing embedding provider to be unavailable, got %v", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("expected llm to be healthy, got %v", results[1].Err)
	}
	if !errors.Is(results[2].Err, dbErr) {
		t.Errorf("expected postgres error, got %v", results[2].Err)
	}
	if results[3].Err != nil {
		t.Errorf("expected redis to be healthy, got %v", results[3].Err)
	}
}

func TestServices_Close(t *testing.T) {
	services := NewServices()

	embedding := &mockEmbeddingProvider{}
	generator := &mockGenerator{}
	services.SetEmbeddingProvider(embedding)
	services.SetGenerator(generator)

	var order []string
	services.Register("first", nil, func() error { order = append(order, "first"); return nil })
	services.Register("second", nil, func() error { order = append(order, "second"); return errors.New("already closed") })

	err := services.Close()
	if err == nil || err.Error() != "already closed" {
		t.Errorf("expected joined closer error, got %v", err)
	}

	if !embedding.closed || !generator.closed {
		t.Error("expected providers to be closed")
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("expected reverse close order, got %v", order)
	}
	if services.EmbeddingProvider() != nil || services.Generator() != nil {
		t.Error("expected providers to be cleared")
	}

	if err := services.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got %v", err)
	}
}
