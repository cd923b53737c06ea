package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// axis returns a 768-dim vector pointing mostly along dimension i
func axis(i int, tilt float32) []float32 {
	v := make([]float32, 768)
	v[i] = 1
	v[i+1] = tilt
	return v
}

func fragment(id, sourceID, sectorID string, position int, embedding []float32) *domain.Fragment {
	return &domain.Fragment{
		ID:         id,
		SourceID:   sourceID,
		SectorID:   sectorID,
		Content:    "content of " + id,
		Embedding:  embedding,
		Position:   position,
		TokenCount: 4,
		Metadata:   map[string]string{"start_offset": "0"},
	}
}

func newIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New(Config{})
	require.NoError(t, err)
	return idx
}

func TestIndex_Search(t *testing.T) {
	idx := newIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*domain.Fragment{
		fragment("f-1", "src-1", "sector-1", 0, axis(0, 0)),
		fragment("f-2", "src-1", "sector-1", 1, axis(0, 0.5)),
		fragment("f-3", "src-2", "sector-1", 0, axis(10, 0)),
		fragment("f-4", "src-3", "sector-2", 0, axis(0, 0)),
	}))
	assert.Equal(t, 4, idx.Count())

	hits, err := idx.Search(ctx, domain.VectorQuery{
		Vector:        axis(0, 0),
		SectorID:      "sector-1",
		Limit:         10,
		MinSimilarity: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "f-1", hits[0].Fragment.ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-5)
	assert.Equal(t, "f-2", hits[1].Fragment.ID)
	assert.Less(t, hits[1].Similarity, hits[0].Similarity)

	got := hits[1].Fragment
	assert.Equal(t, "src-1", got.SourceID)
	assert.Equal(t, "sector-1", got.SectorID)
	assert.Equal(t, 1, got.Position)
	assert.Equal(t, 4, got.TokenCount)
	assert.Equal(t, "content of f-2", got.Content)
	assert.Equal(t, map[string]string{"start_offset": "0"}, got.Metadata)
}

func TestIndex_Search_Limit(t *testing.T) {
	idx := newIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*domain.Fragment{
		fragment("f-1", "src-1", "sector-1", 0, axis(0, 0)),
		fragment("f-2", "src-1", "sector-1", 1, axis(0, 0.1)),
		fragment("f-3", "src-1", "sector-1", 2, axis(0, 0.2)),
	}))

	hits, err := idx.Search(ctx, domain.VectorQuery{Vector: axis(0, 0), SectorID: "sector-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "f-1", hits[0].Fragment.ID)
	assert.Equal(t, "f-2", hits[1].Fragment.ID)
}

func TestIndex_Search_Empty(t *testing.T) {
	idx := newIndex(t)

	hits, err := idx.Search(context.Background(), domain.VectorQuery{Vector: axis(0, 0), SectorID: "sector-1", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.NotNil(t, hits)
}

func TestIndex_SkipsFragmentsWithoutEmbedding(t *testing.T) {
	idx := newIndex(t)

	require.NoError(t, idx.Index(context.Background(), []*domain.Fragment{
		fragment("f-1", "src-1", "sector-1", 0, nil),
	}))
	assert.Equal(t, 0, idx.Count())
}

func TestIndex_RejectsUnsavedFragment(t *testing.T) {
	idx := newIndex(t)

	err := idx.Index(context.Background(), []*domain.Fragment{fragment("", "src-1", "sector-1", 0, axis(0, 0))})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndex_RemoveBySource(t *testing.T) {
	idx := newIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*domain.Fragment{
		fragment("f-1", "src-1", "sector-1", 0, axis(0, 0)),
		fragment("f-2", "src-1", "sector-1", 1, axis(2, 0)),
		fragment("f-3", "src-2", "sector-1", 0, axis(4, 0)),
	}))

	require.NoError(t, idx.RemoveBySource(ctx, "src-1"))
	assert.Equal(t, 1, idx.Count())

	hits, err := idx.Search(ctx, domain.VectorQuery{Vector: axis(4, 0), SectorID: "sector-1", Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "src-2", hits[0].Fragment.SourceID)

	assert.ErrorIs(t, idx.RemoveBySource(ctx, ""), domain.ErrInvalidInput)
}

func TestIndex_DoesNotMutateFragmentVector(t *testing.T) {
	idx := newIndex(t)
	vec := axis(0, 3)
	original := append([]float32(nil), vec...)

	require.NoError(t, idx.Index(context.Background(), []*domain.Fragment{fragment("f-1", "src-1", "sector-1", 0, vec)}))
	assert.Equal(t, original, vec)
}
