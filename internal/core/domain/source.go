package domain

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind identifies the format of an ingested document
type SourceKind string

const (
	SourceKindPDF      SourceKind = "pdf"
	SourceKindMarkdown SourceKind = "markdown"
	SourceKindText     SourceKind = "text"
	SourceKindURL      SourceKind = "url"
)

// IsValid returns true if this is a known source kind
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceKindPDF, SourceKindMarkdown, SourceKindText, SourceKindURL:
		return true
	default:
		return false
	}
}

// ParseSourceKind maps a user-supplied name (or common alias) to a SourceKind
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return SourceKindPDF, nil
	case "markdown", "md":
		return SourceKindMarkdown, nil
	case "text", "txt", "plain", "plaintext":
		return SourceKindText, nil
	case "url", "html", "web":
		return SourceKindURL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

// SourceStatus is the lifecycle state of a Source
type SourceStatus string

const (
	SourceStatusPending    SourceStatus = "pending"
	SourceStatusProcessing SourceStatus = "processing"
	SourceStatusCompleted  SourceStatus = "completed"
	SourceStatusFailed     SourceStatus = "failed"
	SourceStatusDeleted    SourceStatus = "deleted"
)

// IsValid returns true if this is a known status
func (s SourceStatus) IsValid() bool {
	switch s {
	case SourceStatusPending, SourceStatusProcessing, SourceStatusCompleted,
		SourceStatusFailed, SourceStatusDeleted:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once ingestion has finished one way or another
func (s SourceStatus) IsTerminal() bool {
	return s == SourceStatusCompleted || s == SourceStatusFailed || s == SourceStatusDeleted
}

// sourceTransitions lists allowed forward moves. Deleted is reachable from
// every non-deleted state and handled separately by SoftDelete.
var sourceTransitions = map[SourceStatus][]SourceStatus{
	SourceStatusPending:    {SourceStatusProcessing},
	SourceStatusProcessing: {SourceStatusCompleted, SourceStatusFailed},
}

// CanTransitionTo reports whether moving from s to next is allowed
func (s SourceStatus) CanTransitionTo(next SourceStatus) bool {
	if next == SourceStatusDeleted {
		return s != SourceStatusDeleted
	}
	for _, allowed := range sourceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Source is a titled unit of knowledge scoped to a sector
type Source struct {
	ID           string            `json:"id"`
	SectorID     string            `json:"sector_id"`
	Title        string            `json:"title"`
	Kind         SourceKind        `json:"kind"`
	Content      string            `json:"content"` // Normalized text
	Metadata     map[string]string `json:"metadata,omitempty"`
	Status       SourceStatus      `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	DeletedAt    *time.Time        `json:"deleted_at,omitempty"`
}

// NewSource builds a Pending source. The ID is assigned on first persistence.
func NewSource(title, sectorID string, kind SourceKind, content string, metadata map[string]string, now time.Time) (*Source, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(sectorID) == "" {
		return nil, fmt.Errorf("%w: sector id is required", ErrInvalidInput)
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &Source{
		SectorID:  sectorID,
		Title:     title,
		Kind:      kind,
		Content:   content,
		Metadata:  metadata,
		Status:    SourceStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// BeginProcessing moves a Pending source to Processing
func (s *Source) BeginProcessing(now time.Time) error {
	return s.transition(SourceStatusProcessing, now)
}

// Complete marks a Processing source as Completed
func (s *Source) Complete(now time.Time) error {
	if err := s.transition(SourceStatusCompleted, now); err != nil {
		return err
	}
	s.ErrorMessage = ""
	return nil
}

// Fail marks a Processing source as Failed and records the cause
func (s *Source) Fail(message string, now time.Time) error {
	if err := s.transition(SourceStatusFailed, now); err != nil {
		return err
	}
	s.ErrorMessage = message
	return nil
}

// SoftDelete marks the source Deleted. A deleted source cannot be mutated again.
func (s *Source) SoftDelete(now time.Time) error {
	if err := s.transition(SourceStatusDeleted, now); err != nil {
		return err
	}
	s.DeletedAt = &now
	return nil
}

// MergeMetadata adds or overwrites metadata keys
func (s *Source) MergeMetadata(metadata map[string]string, now time.Time) error {
	if s.IsDeleted() {
		return ErrSourceDeleted
	}
	if s.Metadata == nil {
		s.Metadata = make(map[string]string, len(metadata))
	}
	for k, v := range metadata {
		s.Metadata[k] = v
	}
	s.UpdatedAt = now
	return nil
}

// IsDeleted returns true if the source was soft-deleted
func (s *Source) IsDeleted() bool {
	return s.Status == SourceStatusDeleted
}

func (s *Source) transition(next SourceStatus, now time.Time) error {
	if s.IsDeleted() {
		return ErrSourceDeleted
	}
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, next)
	}
	s.Status = next
	s.UpdatedAt = now
	return nil
}
