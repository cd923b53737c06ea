package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// SourceService manages ingested sources after the fact
type SourceService interface {
	// Get retrieves a source by ID
	Get(ctx context.Context, id string) (*domain.Source, error)

	// ListBySector retrieves sources of a sector
	ListBySector(ctx context.Context, sectorID string, limit, offset int) ([]*domain.Source, error)

	// Fragments retrieves a source's fragments in position order
	Fragments(ctx context.Context, sourceID string) ([]*domain.Fragment, error)

	// SoftDelete marks a source deleted and removes its fragments
	SoftDelete(ctx context.Context, id string) error

	// Reprocess re-chunks and re-embeds a completed source's stored content
	Reprocess(ctx context.Context, id string) (*domain.IngestResult, error)

	// MergeFragmentMetadata merges keys into a fragment's metadata
	MergeFragmentMetadata(ctx context.Context, fragmentID string, metadata map[string]string) error

	// ReplaceFragmentEmbedding swaps a fragment's vector
	ReplaceFragmentEmbedding(ctx context.Context, fragmentID string, embedding []float32) error
}
