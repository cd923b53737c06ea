package parsers

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var _ driven.Parser = (*PDFParser)(nil)

// PDFParser extracts plain text page by page.
type PDFParser struct{}

func (p *PDFParser) Parse(data []byte) (parsed *driven.ParsedContent, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			parsed, err = nil, fmt.Errorf("%w: malformed pdf: %v", domain.ErrInvalidInput, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", domain.ErrInvalidInput, err)
	}

	pages := reader.NumPage()
	texts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if t := strings.TrimSpace(text); t != "" {
			texts = append(texts, t)
		}
	}

	return &driven.ParsedContent{
		Content: normalizeWhitespace(strings.Join(texts, "\n\n")),
		Metadata: map[string]string{
			"pages": strconv.Itoa(pages),
		},
	}, nil
}

func (p *PDFParser) SupportedKinds() []domain.SourceKind {
	return []domain.SourceKind{domain.SourceKindPDF}
}

func (p *PDFParser) Priority() int {
	return 50
}
