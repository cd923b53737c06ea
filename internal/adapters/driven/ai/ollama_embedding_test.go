package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

type fakeEmbedder struct {
	queries []string
	vec     []float32
	err     error
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	return f.vec, f.err
}

func TestNewOllamaEmbedding_Defaults(t *testing.T) {
	svc, err := NewOllamaEmbedding("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Model() != "nomic-embed-text" {
		t.Errorf("expected default model, got %s", svc.Model())
	}
	if err := svc.Close(); err != nil {
		t.Errorf("expected no error from Close, got %v", err)
	}
}

func TestOllamaEmbedding_Embed(t *testing.T) {
	fake := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	svc := newOllamaEmbedding(fake, "nomic-embed-text")

	result, err := svc.Embed(context.Background(), driven.EmbedRequest{
		Content:  "what is the refund window",
		TaskHint: domain.TaskHintRetrievalQuery,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 || len(result[0].Embedding) != 2 {
		t.Errorf("unexpected result %+v", result)
	}
	if len(fake.queries) != 1 || fake.queries[0] != "what is the refund window" {
		t.Errorf("unexpected queries %v", fake.queries)
	}
}

func TestOllamaEmbedding_Embed_Error(t *testing.T) {
	upstream := errors.New("connection refused")
	svc := newOllamaEmbedding(&fakeEmbedder{err: upstream}, "m")

	_, err := svc.Embed(context.Background(), driven.EmbedRequest{Content: "x"})
	if !errors.Is(err, upstream) {
		t.Errorf("expected upstream error, got %v", err)
	}
	if err := svc.HealthCheck(context.Background()); !errors.Is(err, upstream) {
		t.Errorf("expected health check to fail, got %v", err)
	}
}
