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
	"github.com/custodia-labs/sercha-rag/internal/metrics"
)

// Verify interface compliance
var _ driving.IngestionService = (*IngestionPipeline)(nil)

// IngestionPipeline coordinates document ingestion.
// It implements the ingestion flow:
//  1. Validate the request
//  2. Parse bytes into normalized text
//  3. Create the source at pending and persist it at processing
//  4. Chunk the text
//  5. Embed every chunk in document mode
//  6. Persist fragments in one batch (and index them when an indexer is set)
//  7. Mark the source completed
//
// Any failure after step 3 marks the source failed before the error is returned.
type IngestionPipeline struct {
	parsers   driven.ParserRegistry
	chunker   driven.TextChunker
	embedder  DocumentEmbedder
	sources   driven.SourceStore
	fragments driven.FragmentStore
	indexer   driven.FragmentIndexer
	metrics   metrics.Recorder
	logger    *zerolog.Logger
	now       func() time.Time
}

// IngestionPipelineConfig holds dependencies for IngestionPipeline.
type IngestionPipelineConfig struct {
	Parsers   driven.ParserRegistry
	Chunker   driven.TextChunker
	Embedder  DocumentEmbedder
	Sources   driven.SourceStore
	Fragments driven.FragmentStore
	Indexer   driven.FragmentIndexer // Optional secondary vector index
	Metrics   metrics.Recorder
	Logger    *zerolog.Logger
	Now       func() time.Time
}

// NewIngestionPipeline creates a new ingestion pipeline.
func NewIngestionPipeline(cfg IngestionPipelineConfig) *IngestionPipeline {
	p := &IngestionPipeline{
		parsers:   cfg.Parsers,
		chunker:   cfg.Chunker,
		embedder:  cfg.Embedder,
		sources:   cfg.Sources,
		fragments: cfg.Fragments,
		indexer:   cfg.Indexer,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop()
	}
	if p.logger == nil {
		nop := zerolog.Nop()
		p.logger = &nop
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Ingest runs the full ingestion flow for one document.
func (p *IngestionPipeline) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	if err := validateIngestRequest(req); err != nil {
		return nil, err
	}

	parsed, err := p.parsers.Parse(req.Data, req.Kind)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(parsed.Metadata)+len(req.Metadata))
	for k, v := range parsed.Metadata {
		metadata[k] = v
	}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	source, err := domain.NewSource(req.Title, req.SectorID, req.Kind, parsed.Content, metadata, p.now())
	if err != nil {
		return nil, err
	}
	if err := source.BeginProcessing(p.now()); err != nil {
		return nil, err
	}
	if err := p.sources.Save(ctx, source); err != nil {
		return nil, fmt.Errorf("save source: %w", err)
	}

	log := p.logger.With().Str("source_id", source.ID).Str("sector_id", source.SectorID).Logger()
	log.Info().Str("title", source.Title).Str("kind", string(source.Kind)).Msg("ingesting source")

	count, err := p.process(ctx, source, false)
	if err != nil {
		p.fail(ctx, &log, source, err)
		return nil, err
	}

	// source stays Processing until the completed copy is persisted
	completed := *source
	if err := completed.Complete(p.now()); err != nil {
		p.fail(ctx, &log, source, err)
		return nil, err
	}
	if err := p.sources.Save(ctx, &completed); err != nil {
		p.fail(ctx, &log, source, err)
		return nil, fmt.Errorf("save source: %w", err)
	}
	source = &completed

	p.metrics.IngestionFinished(string(source.Status), count)
	log.Info().Int("fragments", count).Msg("source ingested")

	return &domain.IngestResult{
		SourceID:      source.ID,
		Title:         source.Title,
		FragmentCount: count,
		ContentSize:   len(source.Content),
		Status:        source.Status,
	}, nil
}

// process chunks, embeds and persists fragments for source.Content.
// With replace set, existing fragments of the source are swapped atomically.
func (p *IngestionPipeline) process(ctx context.Context, source *domain.Source, replace bool) (int, error) {
	chunks, err := p.chunker.Chunk(source.Content)
	if err != nil {
		return 0, fmt.Errorf("chunking failed: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedding failed: %w: %d vectors for %d chunks", domain.ErrInvalidResponseFormat, len(embeddings), len(chunks))
	}

	now := p.now()
	fragments := make([]*domain.Fragment, len(chunks))
	for i, c := range chunks {
		f, err := domain.NewFragment(source, c, embeddings[i], now)
		if err != nil {
			return 0, fmt.Errorf("build fragment %d: %w", i, err)
		}
		fragments[i] = f
	}

	if replace {
		err = p.fragments.ReplaceBySource(ctx, source.ID, fragments)
	} else {
		err = p.fragments.SaveBatch(ctx, fragments)
	}
	if err != nil {
		return 0, fmt.Errorf("save fragments: %w", err)
	}

	if p.indexer != nil {
		if replace {
			if err := p.indexer.RemoveBySource(ctx, source.ID); err != nil {
				return 0, fmt.Errorf("unindex fragments: %w", err)
			}
		}
		if err := p.indexer.Index(ctx, fragments); err != nil {
			return 0, fmt.Errorf("index fragments: %w", err)
		}
	}

	return len(fragments), nil
}

// fail records the error on the source. The write does not inherit
// cancellation so a cancelled request still leaves the source failed.
func (p *IngestionPipeline) fail(ctx context.Context, log *zerolog.Logger, source *domain.Source, cause error) {
	log.Error().Err(cause).Msg("ingestion failed")
	p.metrics.IngestionFinished(string(domain.SourceStatusFailed), 0)

	if err := source.Fail(cause.Error(), p.now()); err != nil {
		log.Error().Err(err).Msg("failed to mark source failed")
		return
	}
	if err := p.sources.Save(context.WithoutCancel(ctx), source); err != nil {
		log.Error().Err(err).Msg("failed to persist failed source")
	}
}

func validateIngestRequest(req domain.IngestRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.SectorID) == "" {
		return fmt.Errorf("%w: sector id is required", domain.ErrInvalidInput)
	}
	if len(req.Data) == 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, domain.ErrEmptyContent)
	}
	if !req.Kind.IsValid() {
		return fmt.Errorf("%w: %w: %q", domain.ErrInvalidInput, domain.ErrUnsupportedKind, req.Kind)
	}
	return nil
}
