package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SourceStore = (*SourceStore)(nil)

// SourceStore implements driven.SourceStore using PostgreSQL
type SourceStore struct {
	db *DB
}

// NewSourceStore creates a new SourceStore
func NewSourceStore(db *DB) *SourceStore {
	return &SourceStore{db: db}
}

const sourceColumns = `id, sector_id, title, kind, content, metadata, status, error_message, created_at, updated_at, deleted_at`

// Save creates or updates a source
func (s *SourceStore) Save(ctx context.Context, source *domain.Source) error {
	metadataJSON, err := marshalMetadata(source.Metadata)
	if err != nil {
		return err
	}
	if source.ID == "" {
		source.ID = uuid.NewString()
	}

	query := `
		INSERT INTO sources (` + sourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = s.db.ExecContext(ctx, query,
		source.ID,
		source.SectorID,
		source.Title,
		string(source.Kind),
		source.Content,
		metadataJSON,
		string(source.Status),
		NullString(source.ErrorMessage),
		source.CreatedAt,
		source.UpdatedAt,
		NullTime(source.DeletedAt),
	)
	return err
}

// Get retrieves a source by ID
func (s *SourceStore) Get(ctx context.Context, id string) (*domain.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`

	source, err := scanSource(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return source, nil
}

// ListBySector retrieves non-deleted sources of a sector, newest first
func (s *SourceStore) ListBySector(ctx context.Context, sectorID string, limit, offset int) ([]*domain.Source, error) {
	query := `
		SELECT ` + sourceColumns + `
		FROM sources
		WHERE sector_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, sectorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sources, nil
}

// CountBySector returns the number of non-deleted sources of a sector
func (s *SourceStore) CountBySector(ctx context.Context, sectorID string) (int, error) {
	query := `SELECT COUNT(*) FROM sources WHERE sector_id = $1 AND deleted_at IS NULL`

	var count int
	if err := s.db.QueryRowContext(ctx, query, sectorID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*domain.Source, error) {
	var source domain.Source
	var metadataJSON []byte
	var errorMessage sql.NullString
	var deletedAt sql.NullTime

	err := row.Scan(
		&source.ID,
		&source.SectorID,
		&source.Title,
		&source.Kind,
		&source.Content,
		&metadataJSON,
		&source.Status,
		&errorMessage,
		&source.CreatedAt,
		&source.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if source.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
		return nil, err
	}
	source.ErrorMessage = errorMessage.String
	source.DeletedAt = TimePtr(deletedAt)

	return &source, nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

func unmarshalMetadata(data []byte) (map[string]string, error) {
	m := make(map[string]string)
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
