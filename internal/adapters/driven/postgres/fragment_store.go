package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.FragmentStore  = (*FragmentStore)(nil)
	_ driven.VectorSearcher = (*FragmentStore)(nil)
)

// FragmentStore implements driven.FragmentStore and driven.VectorSearcher
// using PostgreSQL with the pgvector extension
type FragmentStore struct {
	db *DB
}

// NewFragmentStore creates a new FragmentStore
func NewFragmentStore(db *DB) *FragmentStore {
	return &FragmentStore{db: db}
}

const fragmentColumns = `id, source_id, sector_id, content, embedding, position, token_count, metadata, created_at`

const insertFragment = `
	INSERT INTO fragments (` + fragmentColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		content = EXCLUDED.content,
		embedding = EXCLUDED.embedding,
		position = EXCLUDED.position,
		token_count = EXCLUDED.token_count,
		metadata = EXCLUDED.metadata
`

// SaveBatch saves fragments in a transaction
func (s *FragmentStore) SaveBatch(ctx context.Context, fragments []*domain.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		return insertFragments(ctx, tx, fragments)
	})
}

// ReplaceBySource deletes a source's fragments and inserts the new set in one transaction
func (s *FragmentStore) ReplaceBySource(ctx context.Context, sourceID string, fragments []*domain.Fragment) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fragments WHERE source_id = $1`, sourceID); err != nil {
			return err
		}
		return insertFragments(ctx, tx, fragments)
	})
}

func insertFragments(ctx context.Context, tx *sql.Tx, fragments []*domain.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, insertFragment)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range fragments {
		if err := f.Validate(); err != nil {
			return err
		}
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		metadataJSON, err := marshalMetadata(f.Metadata)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			f.ID,
			f.SourceID,
			f.SectorID,
			f.Content,
			embeddingArg(f.Embedding),
			f.Position,
			f.TokenCount,
			metadataJSON,
			f.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a fragment by ID
func (s *FragmentStore) Get(ctx context.Context, id string) (*domain.Fragment, error) {
	query := `SELECT ` + fragmentColumns + ` FROM fragments WHERE id = $1`

	f, err := scanFragment(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// GetBySource retrieves all fragments of a source ordered by position
func (s *FragmentStore) GetBySource(ctx context.Context, sourceID string) ([]*domain.Fragment, error) {
	query := `
		SELECT ` + fragmentColumns + `
		FROM fragments
		WHERE source_id = $1
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fragments []*domain.Fragment
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return fragments, nil
}

// CountBySource returns the fragment count for a source
func (s *FragmentStore) CountBySource(ctx context.Context, sourceID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fragments WHERE source_id = $1`, sourceID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MergeMetadata merges keys into a fragment's metadata
func (s *FragmentStore) MergeMetadata(ctx context.Context, id string, metadata map[string]string) error {
	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `UPDATE fragments SET metadata = metadata || $2::jsonb WHERE id = $1`, id, metadataJSON)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// UpdateEmbedding replaces a fragment's vector
func (s *FragmentStore) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	if !domain.IsSupportedDimension(len(embedding)) {
		return fmt.Errorf("%w: %d", domain.ErrUnsupportedDimension, len(embedding))
	}
	result, err := s.db.ExecContext(ctx, `UPDATE fragments SET embedding = $2 WHERE id = $1`, id, pgvector.NewVector(embedding))
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// DeleteBySource deletes all fragments for a source
func (s *FragmentStore) DeleteBySource(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM fragments WHERE source_id = $1`, sourceID)
	return err
}

// Search ranks fragments of a sector by cosine similarity.
// pgvector's <=> operator is cosine distance, so similarity is 1 - distance.
func (s *FragmentStore) Search(ctx context.Context, q domain.VectorQuery) ([]*domain.ScoredFragment, error) {
	query := `
		SELECT ` + fragmentColumns + `, 1 - (embedding <=> $1) AS similarity
		FROM fragments
		WHERE sector_id = $2
		  AND embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1 ASC
		LIMIT $4
	`

	rows, err := s.db.QueryContext(ctx, query, pgvector.NewVector(q.Vector), q.SectorID, q.MinSimilarity, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []*domain.ScoredFragment
	for rows.Next() {
		var similarity float64
		f, err := scanFragment(rows, &similarity)
		if err != nil {
			return nil, err
		}
		hits = append(hits, &domain.ScoredFragment{Fragment: f, Similarity: similarity})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return hits, nil
}

func scanFragment(row rowScanner, extra ...any) (*domain.Fragment, error) {
	var f domain.Fragment
	var embedding *pgvector.Vector
	var metadataJSON []byte

	dest := []any{
		&f.ID,
		&f.SourceID,
		&f.SectorID,
		&f.Content,
		&embedding,
		&f.Position,
		&f.TokenCount,
		&metadataJSON,
		&f.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if embedding != nil {
		f.Embedding = embedding.Slice()
	}
	var err error
	if f.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
		return nil, err
	}
	return &f, nil
}

// embeddingArg binds a missing vector as NULL
func embeddingArg(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
