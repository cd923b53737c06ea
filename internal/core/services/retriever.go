package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/metrics"
)

// FragmentRetriever finds the fragments most similar to a query vector.
type FragmentRetriever interface {
	Search(ctx context.Context, vector []float32, sectorID string, opts domain.RetrievalOptions) ([]*domain.ScoredFragment, error)
}

var _ FragmentRetriever = (*Retriever)(nil)

// Retriever applies defaults and bounds to similarity queries against a VectorSearcher.
type Retriever struct {
	searcher             driven.VectorSearcher
	defaultLimit         int
	maxLimit             int
	defaultMinSimilarity float64
	metrics              metrics.Recorder
	logger               *zerolog.Logger
}

// RetrieverConfig holds dependencies for Retriever.
type RetrieverConfig struct {
	Searcher             driven.VectorSearcher
	DefaultLimit         int      // Defaults to domain.DefaultRetrievalLimit
	MaxLimit             int      // Defaults to domain.MaxRetrievalLimit
	DefaultMinSimilarity *float64 // Defaults to domain.DefaultMinSimilarity
	Metrics              metrics.Recorder
	Logger               *zerolog.Logger
}

// NewRetriever creates a new retriever.
func NewRetriever(cfg RetrieverConfig) *Retriever {
	r := &Retriever{
		searcher:             cfg.Searcher,
		defaultLimit:         cfg.DefaultLimit,
		maxLimit:             cfg.MaxLimit,
		defaultMinSimilarity: domain.DefaultMinSimilarity,
		metrics:              cfg.Metrics,
		logger:               cfg.Logger,
	}
	if r.defaultLimit <= 0 {
		r.defaultLimit = domain.DefaultRetrievalLimit
	}
	if r.maxLimit <= 0 {
		r.maxLimit = domain.MaxRetrievalLimit
	}
	if cfg.DefaultMinSimilarity != nil {
		r.defaultMinSimilarity = *cfg.DefaultMinSimilarity
	}
	if r.metrics == nil {
		r.metrics = metrics.Nop()
	}
	if r.logger == nil {
		nop := zerolog.Nop()
		r.logger = &nop
	}
	return r
}

// Search returns fragments of sectorID ordered by descending similarity,
// all at or above the threshold and no more than the limit.
func (r *Retriever) Search(ctx context.Context, vector []float32, sectorID string, opts domain.RetrievalOptions) ([]*domain.ScoredFragment, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(sectorID) == "" {
		return nil, fmt.Errorf("%w: sector id is required", domain.ErrInvalidInput)
	}

	limit, threshold := opts.Resolve(r.defaultLimit, r.maxLimit, r.defaultMinSimilarity)

	start := time.Now()
	hits, err := r.searcher.Search(ctx, domain.VectorQuery{
		Vector:        vector,
		SectorID:      sectorID,
		Limit:         limit,
		MinSimilarity: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	// Stores are expected to filter and order already; enforce the contract anyway.
	kept := hits[:0]
	for _, h := range hits {
		if h != nil && h.Fragment != nil && h.Similarity >= threshold {
			kept = append(kept, h)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Similarity > kept[j].Similarity })
	if len(kept) > limit {
		kept = kept[:limit]
	}

	r.metrics.RetrievalObserved(time.Since(start), len(kept))
	r.logger.Debug().
		Str("sector_id", sectorID).
		Int("limit", limit).
		Float64("min_similarity", threshold).
		Int("results", len(kept)).
		Msg("retrieved fragments")

	return kept, nil
}
