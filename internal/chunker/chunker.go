// Package chunker splits normalized text into overlapping, token-bounded windows.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// WordsPerToken is the heuristic ratio used for every token estimate.
const WordsPerToken = 0.75

// Verify interface compliance
var _ driven.TextChunker = (*Chunker)(nil)

// Config configures the chunker. All sizes are estimated tokens.
type Config struct {
	// ChunkSize is the maximum tokens per chunk
	ChunkSize int `yaml:"chunk_size"`

	// Overlap is the tokens shared by consecutive chunks
	Overlap int `yaml:"overlap"`

	// MinChunkSize is the smallest allowed non-final chunk
	MinChunkSize int `yaml:"min_chunk_size"`
}

// minChunkTokens is the estimate for one word, the smallest possible window.
const minChunkTokens = 2

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    512,
		Overlap:      50,
		MinChunkSize: 50,
	}
}

// Validate rejects inconsistent sizes.
func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive", domain.ErrInvalidInput)
	case c.ChunkSize < minChunkTokens:
		return fmt.Errorf("%w: chunk size must be at least %d tokens", domain.ErrInvalidInput, minChunkTokens)
	case c.Overlap < 0:
		return fmt.Errorf("%w: overlap must not be negative", domain.ErrInvalidInput)
	case c.MinChunkSize < 0:
		return fmt.Errorf("%w: min chunk size must not be negative", domain.ErrInvalidInput)
	case c.Overlap >= c.ChunkSize:
		return fmt.Errorf("%w: overlap (%d) must be less than chunk size (%d)", domain.ErrInvalidInput, c.Overlap, c.ChunkSize)
	case c.MinChunkSize >= c.ChunkSize:
		return fmt.Errorf("%w: min chunk size (%d) must be less than chunk size (%d)", domain.ErrInvalidInput, c.MinChunkSize, c.ChunkSize)
	}
	return nil
}

// Chunker splits text into sliding windows of whole words.
type Chunker struct {
	config       Config
	windowWords  int
	overlapWords int
}

// New creates a chunker, failing fast on an invalid config.
func New(config Config) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	window := wordsForTokens(config.ChunkSize)
	if window < 1 {
		window = 1
	}
	overlap := wordsForTokens(config.Overlap)
	if overlap >= window {
		overlap = window - 1
	}

	return &Chunker{
		config:       config,
		windowWords:  window,
		overlapWords: overlap,
	}, nil
}

// Config returns the chunker configuration.
func (c *Chunker) Config() Config {
	return c.config
}

// Chunk splits text into chunks. Content is sliced from the original text, so
// whitespace inside a chunk is preserved and offsets index into text.
func (c *Chunker) Chunk(text string) ([]domain.Chunk, error) {
	words := wordSpans(text)
	if len(words) == 0 {
		return nil, domain.ErrEmptyContent
	}

	var chunks []domain.Chunk
	start := 0
	for {
		end := start + c.windowWords
		if end > len(words) {
			end = len(words)
		}

		first, last := words[start], words[end-1]
		chunks = append(chunks, domain.Chunk{
			Content:     text[first.start:last.end],
			Position:    len(chunks),
			TokenCount:  TokensForWords(end - start),
			StartOffset: first.start,
			EndOffset:   last.end,
		})

		if end == len(words) {
			break
		}
		// overlapWords < windowWords, so every window adds at least one word
		start = end - c.overlapWords
	}

	return chunks, nil
}

// EstimateTokens returns the heuristic token count of text.
func EstimateTokens(text string) int {
	return TokensForWords(len(strings.Fields(text)))
}

// TokensForWords converts a word count to estimated tokens, rounding up.
func TokensForWords(words int) int {
	if words <= 0 {
		return 0
	}
	// ceil(words / 0.75) == ceil(4*words / 3)
	return (4*words + 2) / 3
}

// wordsForTokens is the largest word count whose estimate fits in tokens.
func wordsForTokens(tokens int) int {
	if tokens <= 0 {
		return 0
	}
	return (3 * tokens) / 4
}

type span struct {
	start, end int
}

// wordSpans returns byte ranges of whitespace-separated words.
func wordSpans(text string) []span {
	var spans []span
	inWord := false
	start := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inWord {
				spans = append(spans, span{start, i})
				inWord = false
			}
			continue
		}
		if !inWord {
			start = i
			inWord = true
		}
	}
	if inWord {
		spans = append(spans, span{start, len(text)})
	}
	return spans
}

// TruncateToChars cuts s to at most max bytes without splitting a rune.
func TruncateToChars(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
