package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// QueryService answers questions from ingested knowledge
type QueryService interface {
	// Query retrieves relevant fragments and generates a cited answer
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error)
}
