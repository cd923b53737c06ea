package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConversationStore = (*ConversationStore)(nil)

// ConversationStore implements driven.ConversationStore using PostgreSQL.
// Messages are append-only: existing rows are never rewritten.
type ConversationStore struct {
	db *DB
}

// NewConversationStore creates a new ConversationStore
func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Save upserts the conversation and inserts messages not stored yet
func (s *ConversationStore) Save(ctx context.Context, conv *domain.Conversation) error {
	if conv.ID == "" {
		conv.AssignID(uuid.NewString())
	}
	for _, m := range conv.Messages {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
	}
	if err := conv.Validate(); err != nil {
		return err
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, user_id, sector_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at
		`, conv.ID, conv.UserID, conv.SectorID, conv.CreatedAt, conv.UpdatedAt)
		if err != nil {
			return err
		}

		if len(conv.Messages) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO messages (id, conversation_id, role, content, metadata, sequence, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range conv.Messages {
			metadataJSON, err := marshalMetadata(m.Metadata)
			if err != nil {
				return err
			}
			_, err = stmt.ExecContext(ctx,
				m.ID,
				conv.ID,
				string(m.Role),
				m.Content,
				metadataJSON,
				m.Sequence,
				m.CreatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Get retrieves a conversation with all messages by ID
func (s *ConversationStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	query := `SELECT id, user_id, sector_id, created_at, updated_at FROM conversations WHERE id = $1`

	var conv domain.Conversation
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.SectorID,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if conv.Messages, err = s.messages(ctx, conv.ID); err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetLatest retrieves the most recently updated conversation of a user in a sector
func (s *ConversationStore) GetLatest(ctx context.Context, userID, sectorID string) (*domain.Conversation, error) {
	query := `
		SELECT id FROM conversations
		WHERE user_id = $1 AND sector_id = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var id string
	err := s.db.QueryRowContext(ctx, query, userID, sectorID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ListByUser retrieves a user's conversations in a sector, most recent first
func (s *ConversationStore) ListByUser(ctx context.Context, userID, sectorID string) ([]*domain.Conversation, error) {
	query := `
		SELECT id, user_id, sector_id, created_at, updated_at
		FROM conversations
		WHERE user_id = $1 AND sector_id = $2
		ORDER BY updated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, sectorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.SectorID, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, conv := range convs {
		if conv.Messages, err = s.messages(ctx, conv.ID); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

func (s *ConversationStore) messages(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, metadata, sequence, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY sequence ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var m domain.Message
		var metadataJSON []byte
		err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.Role,
			&m.Content,
			&metadataJSON,
			&m.Sequence,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if m.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
