package driven

import (
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ParsedContent is normalized text extracted from a raw buffer
type ParsedContent struct {
	Content  string
	Metadata map[string]string
}

// Parser converts raw bytes of one or more source kinds into normalized text.
type Parser interface {
	// Parse extracts normalized text from data
	Parse(data []byte) (*ParsedContent, error)

	// SupportedKinds returns the source kinds this parser handles
	SupportedKinds() []domain.SourceKind

	// Priority returns the parser priority (higher = more specific).
	// When several parsers handle a kind the highest priority one wins.
	Priority() int
}

// ParserRegistry selects a parser by source kind.
type ParserRegistry interface {
	// Parse rejects empty buffers and unknown kinds, then delegates
	Parse(data []byte, kind domain.SourceKind) (*ParsedContent, error)

	// Get retrieves the best parser for a kind, or nil
	Get(kind domain.SourceKind) Parser

	// Register registers a parser
	Register(parser Parser)

	// List returns all kinds with at least one parser
	List() []domain.SourceKind
}

// TextChunker splits normalized text into overlapping chunks.
type TextChunker interface {
	// Chunk returns at least one chunk for non-blank text
	Chunk(text string) ([]domain.Chunk, error)
}
