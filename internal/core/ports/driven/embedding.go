package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// EmbedRequest is a single-text call to an embedding provider
type EmbedRequest struct {
	Model      string
	Content    string
	Dimensions int             // Requested output dimensionality
	TaskHint   domain.TaskHint // Optional
}

// EmbeddingResult is one vector returned by a provider
type EmbeddingResult struct {
	Embedding []float32
}

// EmbeddingProvider generates text embeddings
type EmbeddingProvider interface {
	// Embed sends one text and returns the provider's vectors.
	// Adapters return domain.ErrInvalidResponseFormat when the payload
	// does not have the expected shape.
	Embed(ctx context.Context, req EmbedRequest) ([]EmbeddingResult, error)

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}

// EmbeddingCache memoises vectors by an opaque key
type EmbeddingCache interface {
	// Get returns the cached vector, or false when absent
	Get(ctx context.Context, key string) ([]float32, bool, error)

	// Set stores a vector
	Set(ctx context.Context, key string, embedding []float32) error
}
