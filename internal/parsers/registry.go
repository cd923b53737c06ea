// Package parsers converts raw document bytes into normalized text.
package parsers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ParserRegistry = (*Registry)(nil)

// Registry implements ParserRegistry with priority-based selection.
// When multiple parsers handle a kind, the highest priority one is used.
type Registry struct {
	mu      sync.RWMutex
	parsers []driven.Parser
}

// NewRegistry creates a new parser registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: make([]driven.Parser, 0),
	}
}

// Register registers a parser.
func (r *Registry) Register(parser driven.Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.parsers = append(r.parsers, parser)
}

// Get retrieves the best parser for a kind.
// Returns nil if no parser is registered for the kind.
func (r *Registry) Get(kind domain.SourceKind) driven.Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best driven.Parser
	for _, p := range r.parsers {
		if !handles(p, kind) {
			continue
		}
		if best == nil || p.Priority() > best.Priority() {
			best = p
		}
	}
	return best
}

// List returns all kinds with a registered parser.
func (r *Registry) List() []domain.SourceKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[domain.SourceKind]struct{})
	for _, p := range r.parsers {
		for _, k := range p.SupportedKinds() {
			set[k] = struct{}{}
		}
	}

	kinds := make([]domain.SourceKind, 0, len(set))
	for k := range set {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Parse rejects empty buffers and unknown kinds, then delegates to the best parser.
func (r *Registry) Parse(data []byte, kind domain.SourceKind) (*driven.ParsedContent, error) {
	if len(data) == 0 {
		return nil, domain.ErrEmptyContent
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedKind, kind)
	}
	p := r.Get(kind)
	if p == nil {
		return nil, fmt.Errorf("%w: no parser for %q", domain.ErrUnsupportedKind, kind)
	}

	parsed, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", kind, err)
	}
	if strings.TrimSpace(parsed.Content) == "" {
		return nil, domain.ErrEmptyContent
	}
	if parsed.Metadata == nil {
		parsed.Metadata = make(map[string]string)
	}
	parsed.Metadata["kind"] = string(kind)
	return parsed, nil
}

func handles(p driven.Parser, kind domain.SourceKind) bool {
	for _, k := range p.SupportedKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// DefaultRegistry creates a registry with the built-in parsers pre-registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(&PlaintextParser{})
	r.Register(NewMarkdownParser())
	r.Register(NewHTMLParser())
	r.Register(&PDFParser{})

	return r
}

// normalizeWhitespace unifies line endings, trims trailing spaces on each
// line and collapses runs of blank lines.
func normalizeWhitespace(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")

	for strings.Contains(content, "\n\n\n") {
		content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(content)
}
