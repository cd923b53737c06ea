package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/chunker"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/metrics"
)

const (
	// CharsPerToken converts a token ceiling into a character budget
	CharsPerToken = 4

	// DefaultMaxInputTokens is the per-text ceiling applied before truncation
	DefaultMaxInputTokens = 2048

	// DefaultEmbeddingBatchSize is the number of concurrent calls per window
	DefaultEmbeddingBatchSize = 16
)

// DocumentEmbedder embeds texts for indexing.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// QueryEmbedder embeds a single retrieval query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

var (
	_ DocumentEmbedder = (*EmbeddingClient)(nil)
	_ QueryEmbedder    = (*EmbeddingClient)(nil)
)

// EmbeddingClient validates, truncates and batches calls to an embedding provider.
type EmbeddingClient struct {
	provider       driven.EmbeddingProvider
	cache          driven.EmbeddingCache
	model          string
	dimensions     int
	batchSize      int
	maxInputTokens int
	metrics        metrics.Recorder
	logger         *zerolog.Logger
}

// EmbeddingClientConfig holds dependencies for EmbeddingClient.
type EmbeddingClientConfig struct {
	Provider       driven.EmbeddingProvider
	Cache          driven.EmbeddingCache // Optional
	Model          string                // Defaults to Provider.Model()
	Dimensions     int
	BatchSize      int
	MaxInputTokens int // Defaults to DefaultMaxInputTokens
	Metrics        metrics.Recorder
	Logger         *zerolog.Logger
}

// NewEmbeddingClient creates an embedding client, failing fast on bad configuration.
func NewEmbeddingClient(cfg EmbeddingClientConfig) (*EmbeddingClient, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("%w: embedding provider is required", domain.ErrInvalidInput)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}
	if !domain.IsSupportedDimension(cfg.Dimensions) {
		return nil, fmt.Errorf("%w: %d (supported: %v)", domain.ErrUnsupportedDimension, cfg.Dimensions, domain.SupportedDimensions)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive", domain.ErrInvalidInput)
	}

	model := cfg.Model
	if model == "" {
		model = cfg.Provider.Model()
	}
	maxTokens := cfg.MaxInputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxInputTokens
	}
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Nop()
	}
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &EmbeddingClient{
		provider:       cfg.Provider,
		cache:          cfg.Cache,
		model:          model,
		dimensions:     cfg.Dimensions,
		batchSize:      cfg.BatchSize,
		maxInputTokens: maxTokens,
		metrics:        rec,
		logger:         logger,
	}, nil
}

// Dimensions returns the configured output dimensionality.
func (c *EmbeddingClient) Dimensions() int {
	return c.dimensions
}

// Embed generates one embedding. A nil text is rejected with ErrNullText,
// a blank one with ErrEmptyText.
func (c *EmbeddingClient) Embed(ctx context.Context, text *string, hint domain.TaskHint) ([]float32, error) {
	if text == nil {
		return nil, domain.ErrNullText
	}
	if err := validateText(*text); err != nil {
		return nil, err
	}
	return c.embed(ctx, *text, hint)
}

// EmbedBatch generates one embedding per text, in input order.
// Every text is validated before any provider call. Windows of batchSize
// texts run concurrently; the first failure aborts the whole batch.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string, hint domain.TaskHint) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for i, text := range texts {
		if err := validateText(text); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
	}

	results := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				vec, err := c.embed(gctx, texts[i], hint)
				if err != nil {
					return err
				}
				results[i] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// EmbedDocuments embeds texts with the document-indexing hint.
func (c *EmbeddingClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.EmbedBatch(ctx, texts, domain.TaskHintRetrievalDocument)
}

// EmbedQuery embeds a query with the retrieval hint.
func (c *EmbeddingClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return c.Embed(ctx, &query, domain.TaskHintRetrievalQuery)
}

func (c *EmbeddingClient) embed(ctx context.Context, text string, hint domain.TaskHint) ([]float32, error) {
	content, truncated := c.truncate(text)

	key := c.cacheKey(content, hint)
	if c.cache != nil {
		if vec, ok, err := c.cache.Get(ctx, key); err != nil {
			c.logger.Warn().Err(err).Msg("embedding cache lookup failed")
		} else if ok {
			return vec, nil
		}
	}

	c.metrics.EmbeddingCall(string(hint), truncated)
	results, err := c.provider.Embed(ctx, driven.EmbedRequest{
		Model:      c.model,
		Content:    content,
		Dimensions: c.dimensions,
		TaskHint:   hint,
	})
	if err != nil {
		return nil, wrapProviderError("embedding failed", err)
	}

	vec, err := c.unwrap(results)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, vec); err != nil {
			c.logger.Warn().Err(err).Msg("embedding cache store failed")
		}
	}
	return vec, nil
}

// truncate enforces the token ceiling using the chars-per-token estimate.
func (c *EmbeddingClient) truncate(text string) (string, bool) {
	maxChars := c.maxInputTokens * CharsPerToken
	if len(text) <= maxChars {
		return text, false
	}
	cut := chunker.TruncateToChars(text, maxChars)
	c.logger.Warn().
		Int("original_chars", len(text)).
		Int("max_chars", maxChars).
		Int("estimated_tokens", (len(text)+CharsPerToken-1)/CharsPerToken).
		Msg("truncating embedding input")
	return cut, true
}

// unwrap checks the provider response shape and returns the first vector.
func (c *EmbeddingClient) unwrap(results []driven.EmbeddingResult) ([]float32, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", domain.ErrInvalidResponseFormat)
	}
	vec := results[0].Embedding
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: missing embedding values", domain.ErrInvalidResponseFormat)
	}
	if len(vec) != c.dimensions {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", domain.ErrInvalidResponseFormat, c.dimensions, len(vec))
	}
	return vec, nil
}

func (c *EmbeddingClient) cacheKey(content string, hint domain.TaskHint) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|", c.model, c.dimensions, hint)
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return domain.ErrEmptyText
	}
	return nil
}

// wrapProviderError prefixes an upstream failure with the failing stage.
// Shape errors raised by adapters keep their own sentinel.
func wrapProviderError(stage string, err error) error {
	if errors.Is(err, domain.ErrInvalidResponseFormat) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return fmt.Errorf("%s: %w: %w", stage, domain.ErrProvider, err)
}
