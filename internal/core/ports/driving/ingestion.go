package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// IngestionService turns raw documents into retrievable fragments
type IngestionService interface {
	// Ingest parses, chunks, embeds and persists a document.
	// Failures after the source reaches processing leave it failed.
	Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error)
}
