package driven

import (
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// AIServiceFactory creates AI services based on configuration
type AIServiceFactory interface {
	// CreateEmbeddingProvider creates an embedding provider from settings
	// Returns nil, nil if settings are not configured
	CreateEmbeddingProvider(settings *domain.EmbeddingSettings) (EmbeddingProvider, error)

	// CreateGenerator creates a generator from settings
	// Returns nil, nil if settings are not configured
	CreateGenerator(settings *domain.LLMSettings) (Generator, error)
}
