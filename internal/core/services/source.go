package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure sourceService implements SourceService
var _ driving.SourceService = (*sourceService)(nil)

// sourceService implements the SourceService interface
type sourceService struct {
	sources    driven.SourceStore
	fragments  driven.FragmentStore
	indexer    driven.FragmentIndexer
	pipeline   *IngestionPipeline
	dimensions int
	logger     *zerolog.Logger
	now        func() time.Time
}

// SourceServiceConfig holds dependencies for the source service.
type SourceServiceConfig struct {
	Sources    driven.SourceStore
	Fragments  driven.FragmentStore
	Indexer    driven.FragmentIndexer // Optional
	Pipeline   *IngestionPipeline     // Used by Reprocess
	Dimensions int                    // Expected vector size; zero accepts any supported size
	Logger     *zerolog.Logger
	Now        func() time.Time
}

// NewSourceService creates a new SourceService
func NewSourceService(cfg SourceServiceConfig) driving.SourceService {
	s := &sourceService{
		sources:    cfg.Sources,
		fragments:  cfg.Fragments,
		indexer:    cfg.Indexer,
		pipeline:   cfg.Pipeline,
		dimensions: cfg.Dimensions,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if s.logger == nil {
		nop := zerolog.Nop()
		s.logger = &nop
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Get retrieves a source by ID
func (s *sourceService) Get(ctx context.Context, id string) (*domain.Source, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.sources.Get(ctx, id)
}

// ListBySector retrieves non-deleted sources of a sector
func (s *sourceService) ListBySector(ctx context.Context, sectorID string, limit, offset int) ([]*domain.Source, error) {
	if strings.TrimSpace(sectorID) == "" {
		return nil, fmt.Errorf("%w: sector id is required", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.sources.ListBySector(ctx, sectorID, limit, offset)
}

// Fragments retrieves a source's fragments in position order
func (s *sourceService) Fragments(ctx context.Context, sourceID string) ([]*domain.Fragment, error) {
	if _, err := s.Get(ctx, sourceID); err != nil {
		return nil, err
	}
	return s.fragments.GetBySource(ctx, sourceID)
}

// SoftDelete marks the source deleted and removes its fragments
func (s *sourceService) SoftDelete(ctx context.Context, id string) error {
	source, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := source.SoftDelete(s.now()); err != nil {
		return err
	}
	if err := s.sources.Save(ctx, source); err != nil {
		return fmt.Errorf("save source: %w", err)
	}

	if err := s.fragments.DeleteBySource(ctx, id); err != nil {
		return fmt.Errorf("delete fragments: %w", err)
	}
	if s.indexer != nil {
		if err := s.indexer.RemoveBySource(ctx, id); err != nil {
			return fmt.Errorf("unindex fragments: %w", err)
		}
	}

	s.logger.Info().Str("source_id", id).Msg("source deleted")
	return nil
}

// Reprocess re-chunks and re-embeds the stored content of a completed source.
// The source stays completed; its fragments are replaced in one step.
func (s *sourceService) Reprocess(ctx context.Context, id string) (*domain.IngestResult, error) {
	source, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if source.IsDeleted() {
		return nil, domain.ErrSourceDeleted
	}
	if source.Status != domain.SourceStatusCompleted {
		return nil, fmt.Errorf("%w: cannot reprocess a %s source", domain.ErrInvalidTransition, source.Status)
	}
	if s.pipeline == nil {
		return nil, fmt.Errorf("%w: reprocessing is not configured", domain.ErrServiceUnavailable)
	}

	count, err := s.pipeline.process(ctx, source, true)
	if err != nil {
		s.logger.Error().Err(err).Str("source_id", id).Msg("reprocess failed")
		return nil, err
	}

	source.UpdatedAt = s.now()
	if err := s.sources.Save(ctx, source); err != nil {
		return nil, fmt.Errorf("save source: %w", err)
	}
	s.pipeline.metrics.IngestionFinished(string(source.Status), count)

	s.logger.Info().Str("source_id", id).Int("fragments", count).Msg("source reprocessed")
	return &domain.IngestResult{
		SourceID:      source.ID,
		Title:         source.Title,
		FragmentCount: count,
		ContentSize:   len(source.Content),
		Status:        source.Status,
	}, nil
}

// MergeFragmentMetadata merges keys into a fragment's metadata
func (s *sourceService) MergeFragmentMetadata(ctx context.Context, fragmentID string, metadata map[string]string) error {
	if len(metadata) == 0 {
		return nil
	}
	fragment, err := s.liveFragment(ctx, fragmentID)
	if err != nil {
		return err
	}
	if err := s.fragments.MergeMetadata(ctx, fragmentID, metadata); err != nil {
		return err
	}
	fragment.MergeMetadata(metadata)
	return s.reindex(ctx, fragment)
}

// ReplaceFragmentEmbedding swaps a fragment's vector
func (s *sourceService) ReplaceFragmentEmbedding(ctx context.Context, fragmentID string, embedding []float32) error {
	if !domain.IsSupportedDimension(len(embedding)) {
		return fmt.Errorf("%w: %d", domain.ErrUnsupportedDimension, len(embedding))
	}
	if s.dimensions > 0 && len(embedding) != s.dimensions {
		return fmt.Errorf("%w: expected %d, got %d", domain.ErrUnsupportedDimension, s.dimensions, len(embedding))
	}

	fragment, err := s.liveFragment(ctx, fragmentID)
	if err != nil {
		return err
	}
	if err := s.fragments.UpdateEmbedding(ctx, fragmentID, embedding); err != nil {
		return err
	}
	if err := fragment.ReplaceEmbedding(embedding); err != nil {
		return err
	}
	return s.reindex(ctx, fragment)
}

// liveFragment loads a fragment whose source has not been deleted.
func (s *sourceService) liveFragment(ctx context.Context, fragmentID string) (*domain.Fragment, error) {
	if strings.TrimSpace(fragmentID) == "" {
		return nil, domain.ErrInvalidInput
	}
	fragment, err := s.fragments.Get(ctx, fragmentID)
	if err != nil {
		return nil, err
	}
	source, err := s.sources.Get(ctx, fragment.SourceID)
	if err != nil {
		return nil, err
	}
	if source.IsDeleted() {
		return nil, domain.ErrSourceDeleted
	}
	return fragment, nil
}

func (s *sourceService) reindex(ctx context.Context, fragment *domain.Fragment) error {
	if s.indexer == nil {
		return nil
	}
	if err := s.indexer.Index(ctx, []*domain.Fragment{fragment}); err != nil {
		return fmt.Errorf("index fragment: %w", err)
	}
	return nil
}

