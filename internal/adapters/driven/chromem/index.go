// Package chromem provides an embedded vector index backed by chromem-go.
package chromem

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.VectorSearcher  = (*Index)(nil)
	_ driven.FragmentIndexer = (*Index)(nil)
)

// DefaultCollection is the collection fragments are stored in
const DefaultCollection = "fragments"

// Reserved metadata keys. Fragment metadata is stored under metaPrefix.
const (
	keySourceID   = "source_id"
	keySectorID   = "sector_id"
	keyPosition   = "position"
	keyTokenCount = "token_count"
	metaPrefix    = "meta."
)

// Config configures the index
type Config struct {
	// Path persists the database to disk. Empty keeps it in memory.
	Path string `yaml:"path"`

	// Compress gzips persisted files
	Compress bool `yaml:"compress"`

	// Collection defaults to DefaultCollection
	Collection string `yaml:"collection"`
}

// Index stores fragment vectors in a chromem collection
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// New opens or creates the index
func New(cfg Config) (*Index, error) {
	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector index: %w", err)
		}
	}

	name := cfg.Collection
	if name == "" {
		name = DefaultCollection
	}
	// Embeddings are always supplied, so no embedding function is needed.
	collection, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}

	return &Index{db: db, collection: collection}, nil
}

// Index adds or replaces fragments by ID. Fragments without a vector are skipped.
func (i *Index) Index(ctx context.Context, fragments []*domain.Fragment) error {
	docs := make([]chromem.Document, 0, len(fragments))
	for _, f := range fragments {
		if !f.HasEmbedding() {
			continue
		}
		if f.ID == "" {
			return fmt.Errorf("%w: fragment must be persisted before indexing", domain.ErrInvalidInput)
		}
		docs = append(docs, toDocument(f))
	}
	if len(docs) == 0 {
		return nil
	}

	if err := i.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// RemoveBySource drops every indexed fragment of a source
func (i *Index) RemoveBySource(ctx context.Context, sourceID string) error {
	if sourceID == "" {
		return domain.ErrInvalidInput
	}
	if err := i.collection.Delete(ctx, map[string]string{keySourceID: sourceID}, nil); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Search returns fragments of the sector at or above the threshold, best first.
func (i *Index) Search(ctx context.Context, q domain.VectorQuery) ([]*domain.ScoredFragment, error) {
	n := q.Limit
	if count := i.collection.Count(); n <= 0 || n > count {
		n = count
	}
	if n == 0 {
		return []*domain.ScoredFragment{}, nil
	}

	results, err := i.collection.QueryEmbedding(ctx, q.Vector, n, map[string]string{keySectorID: q.SectorID}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	hits := make([]*domain.ScoredFragment, 0, len(results))
	for _, r := range results {
		similarity := float64(r.Similarity)
		if similarity < q.MinSimilarity {
			continue
		}
		hits = append(hits, &domain.ScoredFragment{
			Fragment:   fromResult(r),
			Similarity: similarity,
		})
	}
	return hits, nil
}

// Count returns the number of indexed fragments
func (i *Index) Count() int {
	return i.collection.Count()
}

func toDocument(f *domain.Fragment) chromem.Document {
	metadata := map[string]string{
		keySourceID:   f.SourceID,
		keySectorID:   f.SectorID,
		keyPosition:   strconv.Itoa(f.Position),
		keyTokenCount: strconv.Itoa(f.TokenCount),
	}
	for k, v := range f.Metadata {
		metadata[metaPrefix+k] = v
	}

	// chromem normalizes in place, so hand it a copy
	embedding := make([]float32, len(f.Embedding))
	copy(embedding, f.Embedding)

	return chromem.Document{
		ID:        f.ID,
		Content:   f.Content,
		Metadata:  metadata,
		Embedding: embedding,
	}
}

func fromResult(r chromem.Result) *domain.Fragment {
	f := &domain.Fragment{
		ID:        r.ID,
		SourceID:  r.Metadata[keySourceID],
		SectorID:  r.Metadata[keySectorID],
		Content:   r.Content,
		Embedding: r.Embedding,
		Metadata:  make(map[string]string),
	}
	f.Position, _ = strconv.Atoi(r.Metadata[keyPosition])
	f.TokenCount, _ = strconv.Atoi(r.Metadata[keyTokenCount])
	for k, v := range r.Metadata {
		if strings.HasPrefix(k, metaPrefix) {
			f.Metadata[strings.TrimPrefix(k, metaPrefix)] = v
		}
	}
	return f
}
