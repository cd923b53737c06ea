package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

func newTestSourceService(t *testing.T) (*pipelineFixture, driving.SourceService) {
	t.Helper()
	f := newPipelineFixture(t)
	svc := NewSourceService(SourceServiceConfig{
		Sources:    f.sources,
		Fragments:  f.fragments,
		Indexer:    f.indexer,
		Pipeline:   f.pipeline,
		Dimensions: 768,
	})
	return f, svc
}

func ingestWords(t *testing.T, f *pipelineFixture, n int) *domain.IngestResult {
	t.Helper()
	result, err := f.pipeline.Ingest(context.Background(), textRequest(numberedWords(n)))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return result
}

func TestSourceService_Get(t *testing.T) {
	f, svc := newTestSourceService(t)
	result := ingestWords(t, f, 5)

	source, err := svc.Get(context.Background(), result.SourceID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.Status != domain.SourceStatusCompleted {
		t.Errorf("expected completed, got %s", source.Status)
	}

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(context.Background(), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSourceService_ListBySector(t *testing.T) {
	f, svc := newTestSourceService(t)
	ingestWords(t, f, 5)
	ingestWords(t, f, 6)

	sources, err := svc.ListBySector(context.Background(), "sector-1", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 2 {
		t.Errorf("expected 2 sources, got %d", len(sources))
	}

	sources, err = svc.ListBySector(context.Background(), "sector-2", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("expected no sources in another sector, got %d", len(sources))
	}

	if _, err := svc.ListBySector(context.Background(), " ", 10, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSourceService_Fragments(t *testing.T) {
	f, svc := newTestSourceService(t)
	result := ingestWords(t, f, 40)

	fragments, err := svc.Fragments(context.Background(), result.SourceID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fragments) != result.FragmentCount {
		t.Fatalf("expected %d fragments, got %d", result.FragmentCount, len(fragments))
	}
	for i, frag := range fragments {
		if frag.Position != i {
			t.Errorf("fragment %d has position %d", i, frag.Position)
		}
	}

	if _, err := svc.Fragments(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSourceService_SoftDelete(t *testing.T) {
	f, svc := newTestSourceService(t)
	result := ingestWords(t, f, 40)

	if err := svc.SoftDelete(context.Background(), result.SourceID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	source, _ := f.sources.Get(context.Background(), result.SourceID)
	if source.Status != domain.SourceStatusDeleted {
		t.Errorf("expected deleted, got %s", source.Status)
	}
	if source.DeletedAt == nil {
		t.Error("expected DeletedAt to be set")
	}
	if count, _ := f.fragments.CountBySource(context.Background(), result.SourceID); count != 0 {
		t.Errorf("expected fragments to be removed, got %d", count)
	}
	if indexed := f.indexer.Indexed(result.SourceID); len(indexed) != 0 {
		t.Errorf("expected index entries to be removed, got %v", indexed)
	}

	sources, _ := svc.ListBySector(context.Background(), "sector-1", 10, 0)
	if len(sources) != 0 {
		t.Errorf("deleted source should not be listed, got %d", len(sources))
	}

	if err := svc.SoftDelete(context.Background(), result.SourceID); !errors.Is(err, domain.ErrSourceDeleted) {
		t.Errorf("second delete: expected ErrSourceDeleted, got %v", err)
	}
}

func TestSourceService_Reprocess(t *testing.T) {
	f, svc := newTestSourceService(t)
	result := ingestWords(t, f, 40)

	before, _ := f.fragments.GetBySource(context.Background(), result.SourceID)
	callsBefore := f.provider.CallCount()

	reprocessed, err := svc.Reprocess(context.Background(), result.SourceID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reprocessed.FragmentCount != result.FragmentCount {
		t.Errorf("expected %d fragments, got %d", result.FragmentCount, reprocessed.FragmentCount)
	}
	if reprocessed.Status != domain.SourceStatusCompleted {
		t.Errorf("expected completed, got %s", reprocessed.Status)
	}
	if got := f.provider.CallCount() - callsBefore; got != result.FragmentCount {
		t.Errorf("expected %d embedding calls, got %d", result.FragmentCount, got)
	}

	after, _ := f.fragments.GetBySource(context.Background(), result.SourceID)
	if len(after) != len(before) {
		t.Fatalf("expected %d fragments after reprocess, got %d", len(before), len(after))
	}
	if after[0].ID == before[0].ID {
		t.Error("expected fragments to be replaced")
	}
	if got := len(f.indexer.Indexed(result.SourceID)); got != len(after) {
		t.Errorf("expected %d index entries, got %d", len(after), got)
	}

	statuses := f.sources.SavedStatuses()
	for _, s := range statuses[2:] {
		if s != domain.SourceStatusCompleted {
			t.Errorf("reprocess must not move the status, saw %s", s)
		}
	}
}

func TestSourceService_Reprocess_Rejected(t *testing.T) {
	f, svc := newTestSourceService(t)
	result := ingestWords(t, f, 5)

	failed, err := domain.NewSource("Broken", "sector-1", domain.SourceKindText, "body", nil, time.Now())
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	_ = failed.BeginProcessing(time.Now())
	_ = failed.Fail("boom", time.Now())
	_ = f.sources.Save(context.Background(), failed)

	if _, err := svc.Reprocess(context.Background(), failed.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("failed source: expected ErrInvalidTransition, got %v", err)
	}

	if err := svc.SoftDelete(context.Background(), result.SourceID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if _, err := svc.Reprocess(context.Background(), result.SourceID); !errors.Is(err, domain.ErrSourceDeleted) {
		t.Errorf("deleted source: expected ErrSourceDeleted, got %v", err)
	}
}

func TestSourceService_MergeFragmentMetadata(t *testing.T) {
	f, svc := newTestSourceService(t)
	result := ingestWords(t, f, 5)
	fragments, _ := f.fragments.GetBySource(context.Background(), result.SourceID)
	id := fragments[0].ID

	if err := svc.MergeFragmentMetadata(context.Background(), id, map[string]string{"reviewed": "yes"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := f.fragments.Get(context.Background(), id)
	if got.Metadata["reviewed"] != "yes" {
		t.Errorf("expected merged key, got %v", got.Metadata)
	}
	if got.Metadata["start_offset"] != "0" {
		t.Errorf("existing keys must survive, got %v", got.Metadata)
	}

	if err := svc.MergeFragmentMetadata(context.Background(), "missing", map[string]string{"a": "b"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSourceService_ReplaceFragmentEmbedding(t *testing.T) {
	f, svc := newTestSourceService(t)
	result := ingestWords(t, f, 5)
	fragments, _ := f.fragments.GetBySource(context.Background(), result.SourceID)
	id := fragments[0].ID

	vec := make([]float32, 768)
	vec[3] = 1
	if err := svc.ReplaceFragmentEmbedding(context.Background(), id, vec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := f.fragments.Get(context.Background(), id)
	if got.Embedding[3] != 1 {
		t.Error("expected embedding to be replaced")
	}

	for _, size := range []int{3, 1536} {
		err := svc.ReplaceFragmentEmbedding(context.Background(), id, make([]float32, size))
		if !errors.Is(err, domain.ErrUnsupportedDimension) {
			t.Errorf("size %d: expected ErrUnsupportedDimension, got %v", size, err)
		}
	}

	if err := svc.SoftDelete(context.Background(), result.SourceID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	err := svc.ReplaceFragmentEmbedding(context.Background(), id, vec)
	if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrSourceDeleted) {
		t.Errorf("expected a deleted fragment to be rejected, got %v", err)
	}
}
