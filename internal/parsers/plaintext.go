package parsers

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var _ driven.Parser = (*PlaintextParser)(nil)

// PlaintextParser handles plain text. Invalid UTF-8 is replaced.
type PlaintextParser struct{}

func (p *PlaintextParser) Parse(data []byte) (*driven.ParsedContent, error) {
	content := string(data)
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "\uFFFD")
	}
	content = normalizeWhitespace(content)

	return &driven.ParsedContent{
		Content: content,
		Metadata: map[string]string{
			"characters": strconv.Itoa(utf8.RuneCountInString(content)),
		},
	}, nil
}

func (p *PlaintextParser) SupportedKinds() []domain.SourceKind {
	return []domain.SourceKind{domain.SourceKindText}
}

func (p *PlaintextParser) Priority() int {
	return 10
}
