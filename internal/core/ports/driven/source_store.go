package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// SourceStore handles source persistence (PostgreSQL)
type SourceStore interface {
	// Save creates or updates a source. An empty ID is assigned on create.
	Save(ctx context.Context, source *domain.Source) error

	// Get retrieves a source by ID
	Get(ctx context.Context, id string) (*domain.Source, error)

	// ListBySector retrieves non-deleted sources of a sector, newest first
	ListBySector(ctx context.Context, sectorID string, limit, offset int) ([]*domain.Source, error)

	// CountBySector returns the number of non-deleted sources of a sector
	CountBySector(ctx context.Context, sectorID string) (int, error)
}
