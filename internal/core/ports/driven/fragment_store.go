package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// FragmentStore handles fragment persistence (PostgreSQL)
type FragmentStore interface {
	// SaveBatch saves fragments in one transaction, in position order.
	// Empty IDs are assigned.
	SaveBatch(ctx context.Context, fragments []*domain.Fragment) error

	// ReplaceBySource atomically swaps every fragment of a source
	ReplaceBySource(ctx context.Context, sourceID string, fragments []*domain.Fragment) error

	// Get retrieves a fragment by ID
	Get(ctx context.Context, id string) (*domain.Fragment, error)

	// GetBySource retrieves all fragments of a source ordered by position
	GetBySource(ctx context.Context, sourceID string) ([]*domain.Fragment, error)

	// CountBySource returns the fragment count for a source
	CountBySource(ctx context.Context, sourceID string) (int, error)

	// MergeMetadata merges keys into a fragment's metadata
	MergeMetadata(ctx context.Context, id string, metadata map[string]string) error

	// UpdateEmbedding replaces a fragment's vector
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error

	// DeleteBySource deletes all fragments for a source
	DeleteBySource(ctx context.Context, sourceID string) error
}

// VectorSearcher runs similarity queries over stored fragments
type VectorSearcher interface {
	// Search returns fragments of q.SectorID that carry an embedding and
	// whose similarity is >= q.MinSimilarity, best first, at most q.Limit.
	Search(ctx context.Context, q domain.VectorQuery) ([]*domain.ScoredFragment, error)
}

// FragmentIndexer keeps a secondary vector index in step with the store
type FragmentIndexer interface {
	// Index adds or replaces fragments in the index
	Index(ctx context.Context, fragments []*domain.Fragment) error

	// RemoveBySource drops every indexed fragment of a source
	RemoveBySource(ctx context.Context, sourceID string) error
}
