package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure OllamaEmbedding implements EmbeddingProvider
var _ driven.EmbeddingProvider = (*OllamaEmbedding)(nil)

const (
	defaultOllamaBaseURL        = "http://localhost:11434"
	defaultOllamaEmbeddingModel = "nomic-embed-text"
)

// OllamaEmbedding implements EmbeddingProvider through a langchaingo embedder.
// Ollama has no task types, so hints are ignored. The output size is fixed by the model.
type OllamaEmbedding struct {
	embedder embeddings.Embedder
	model    string
}

// NewOllamaEmbedding creates a new Ollama embedding provider
func NewOllamaEmbedding(baseURL, model string) (driven.EmbeddingProvider, error) {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model == "" {
		model = defaultOllamaEmbeddingModel
	}

	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return newOllamaEmbedding(embedder, model), nil
}

func newOllamaEmbedding(embedder embeddings.Embedder, model string) *OllamaEmbedding {
	return &OllamaEmbedding{embedder: embedder, model: model}
}

// Embed generates the embedding for one text
func (e *OllamaEmbedding) Embed(ctx context.Context, req driven.EmbedRequest) ([]driven.EmbeddingResult, error) {
	vec, err := e.embedder.EmbedQuery(ctx, req.Content)
	if err != nil {
		return nil, err
	}
	return []driven.EmbeddingResult{{Embedding: vec}}, nil
}

// Model returns the model name being used
func (e *OllamaEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the embedding service is available
func (e *OllamaEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.embedder.EmbedQuery(ctx, "health check")
	return err
}

// Close releases resources held by the embedding service
func (e *OllamaEmbedding) Close() error {
	return nil
}
