package domain

import (
	"fmt"
	"strings"
	"time"
)

// SupportedDimensions is the allow-list of embedding sizes
var SupportedDimensions = []int{768, 1536, 3072}

// MinFragmentContentLength is the shortest trimmed content a fragment may hold
const MinFragmentContentLength = 1

// IsSupportedDimension returns true if d is in SupportedDimensions
func IsSupportedDimension(d int) bool {
	for _, s := range SupportedDimensions {
		if s == d {
			return true
		}
	}
	return false
}

// Chunk is a transient slice of normalized text produced by the chunker.
// Offsets are byte offsets into the text that was chunked.
type Chunk struct {
	Content     string `json:"content"`
	Position    int    `json:"position"`
	TokenCount  int    `json:"token_count"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// Fragment is the durable, embedded unit of retrieval
type Fragment struct {
	ID         string            `json:"id"`
	SourceID   string            `json:"source_id"`
	SectorID   string            `json:"sector_id"` // Denormalized from the owning source for filtering
	Content    string            `json:"content"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Position   int               `json:"position"`
	TokenCount int               `json:"token_count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewFragment pairs a chunk with its embedding
func NewFragment(source *Source, chunk Chunk, embedding []float32, now time.Time) (*Fragment, error) {
	f := &Fragment{
		SourceID:   source.ID,
		SectorID:   source.SectorID,
		Content:    chunk.Content,
		Embedding:  embedding,
		Position:   chunk.Position,
		TokenCount: chunk.TokenCount,
		Metadata: map[string]string{
			"start_offset": fmt.Sprint(chunk.StartOffset),
			"end_offset":   fmt.Sprint(chunk.EndOffset),
		},
		CreatedAt: now,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the fragment invariants
func (f *Fragment) Validate() error {
	if f.SourceID == "" {
		return fmt.Errorf("%w: fragment requires a source id", ErrInvalidInput)
	}
	if len(strings.TrimSpace(f.Content)) < MinFragmentContentLength {
		return fmt.Errorf("%w: fragment content is too short", ErrInvalidInput)
	}
	if f.Position < 0 {
		return fmt.Errorf("%w: negative fragment position", ErrInvalidInput)
	}
	if f.HasEmbedding() && !IsSupportedDimension(len(f.Embedding)) {
		return fmt.Errorf("%w: %d", ErrUnsupportedDimension, len(f.Embedding))
	}
	return nil
}

// HasEmbedding returns true if a vector is attached
func (f *Fragment) HasEmbedding() bool {
	return len(f.Embedding) > 0
}

// MergeMetadata adds or overwrites metadata keys
func (f *Fragment) MergeMetadata(metadata map[string]string) {
	if f.Metadata == nil {
		f.Metadata = make(map[string]string, len(metadata))
	}
	for k, v := range metadata {
		f.Metadata[k] = v
	}
}

// ReplaceEmbedding swaps the vector, keeping the dimensionality invariant
func (f *Fragment) ReplaceEmbedding(embedding []float32) error {
	if !IsSupportedDimension(len(embedding)) {
		return fmt.Errorf("%w: %d", ErrUnsupportedDimension, len(embedding))
	}
	f.Embedding = embedding
	return nil
}

// ScoredFragment is a retrieval hit
type ScoredFragment struct {
	Fragment   *Fragment `json:"fragment"`
	Similarity float64   `json:"similarity"` // 1 - cosine distance
}

// VectorQuery is the store-level similarity query
type VectorQuery struct {
	Vector        []float32
	SectorID      string
	Limit         int
	MinSimilarity float64
}
