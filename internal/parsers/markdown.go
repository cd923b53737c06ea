package parsers

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var _ driven.Parser = (*MarkdownParser)(nil)

// MarkdownParser extracts readable text from Markdown by walking the goldmark AST.
// Formatting markers are dropped; headings, paragraphs, list items and code
// blocks are kept as separate blocks.
type MarkdownParser struct {
	md goldmark.Markdown
}

// NewMarkdownParser creates a Markdown parser with GitHub Flavored Markdown enabled.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (p *MarkdownParser) Parse(data []byte) (*driven.ParsedContent, error) {
	doc := p.md.Parser().Parse(text.NewReader(data))

	var (
		b        strings.Builder
		title    string
		headings int
	)

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.(type) {
			case *ast.ListItem, *east.TableRow:
				b.WriteString("\n")
			case *east.TableCell:
				b.WriteString("\t")
			default:
				if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
					b.WriteString("\n\n")
				}
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			headings++
			if title == "" {
				title = strings.TrimSpace(nodeText(node, data))
			}
		case *ast.Text:
			b.Write(node.Segment.Value(data))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteString("\n")
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.Label(data))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			writeLines(&b, n, data)
			b.WriteString("\n\n")
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"headings": strconv.Itoa(headings),
	}
	if title != "" {
		metadata["title"] = title
	}

	return &driven.ParsedContent{
		Content:  normalizeWhitespace(b.String()),
		Metadata: metadata,
	}, nil
}

func (p *MarkdownParser) SupportedKinds() []domain.SourceKind {
	return []domain.SourceKind{domain.SourceKindMarkdown}
}

func (p *MarkdownParser) Priority() int {
	return 50
}

func writeLines(b *strings.Builder, n ast.Node, source []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
}

// nodeText concatenates the text of a node's inline descendants.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
