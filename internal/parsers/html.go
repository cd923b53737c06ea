package parsers

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var _ driven.Parser = (*HTMLParser)(nil)

// HTMLParser extracts visible text from fetched web pages.
type HTMLParser struct {
	policy *bluemonday.Policy
}

// NewHTMLParser creates an HTML parser that strips every tag.
func NewHTMLParser() *HTMLParser {
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &HTMLParser{policy: policy}
}

func (p *HTMLParser) Parse(data []byte) (*driven.ParsedContent, error) {
	content := string(data)
	title := extractTitle(content)

	content = removeHTMLBlocks(content, "head")
	content = breakBlockTags(content)
	content = p.policy.Sanitize(content)
	content = html.UnescapeString(content)
	content = collapseSpaces(content)

	metadata := map[string]string{}
	if title != "" {
		metadata["title"] = title
	}
	return &driven.ParsedContent{
		Content:  normalizeWhitespace(content),
		Metadata: metadata,
	}, nil
}

func (p *HTMLParser) SupportedKinds() []domain.SourceKind {
	return []domain.SourceKind{domain.SourceKindURL}
}

func (p *HTMLParser) Priority() int {
	return 50
}

// Helper functions for HTML processing

func extractTitle(content string) string {
	lower := strings.ToLower(content)
	start := strings.Index(lower, "<title")
	if start == -1 {
		return ""
	}
	open := strings.Index(lower[start:], ">")
	if open == -1 {
		return ""
	}
	begin := start + open + 1
	end := strings.Index(lower[begin:], "</title>")
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(content[begin : begin+end]))
}

func removeHTMLBlocks(content, tagName string) string {
	result := content
	startTag := "<" + strings.ToLower(tagName)
	endTag := "</" + strings.ToLower(tagName) + ">"

	for {
		lower := strings.ToLower(result)
		startIdx := indexTag(lower, startTag)
		if startIdx == -1 {
			break
		}
		endIdx := strings.Index(lower[startIdx:], endTag)
		if endIdx == -1 {
			break
		}
		result = result[:startIdx] + result[startIdx+endIdx+len(endTag):]
	}

	return result
}

// indexTag finds startTag only when followed by '>' or whitespace, so "<head"
// does not match "<header".
func indexTag(lower, startTag string) int {
	offset := 0
	for {
		idx := strings.Index(lower[offset:], startTag)
		if idx == -1 {
			return -1
		}
		at := offset + idx
		next := at + len(startTag)
		if next >= len(lower) || strings.ContainsRune("> \t\n\r", rune(lower[next])) {
			return at
		}
		offset = next
	}
}

var blockTags = []string{"</p>", "</div>", "</li>", "</tr>", "</h1>", "</h2>", "</h3>", "</h4>", "</h5>", "</h6>", "<br>", "<br/>", "<br />", "</section>", "</article>"}

// breakBlockTags inserts newlines after block-level closers so paragraphs survive stripping.
func breakBlockTags(content string) string {
	var b strings.Builder
	lower := strings.ToLower(content)
	i := 0
	for i < len(content) {
		matched := false
		for _, tag := range blockTags {
			if strings.HasPrefix(lower[i:], tag) {
				b.WriteString(content[i : i+len(tag)])
				b.WriteString("\n\n")
				i += len(tag)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(content[i])
			i++
		}
	}
	return b.String()
}

func collapseSpaces(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}
