package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure LangchainGenerator implements Generator
var _ driven.Generator = (*LangchainGenerator)(nil)

const (
	defaultOpenAIChatModel = "gpt-4o-mini"
	defaultOllamaChatModel = "llama3.2"
)

// LangchainGenerator implements Generator on top of a langchaingo chat model
type LangchainGenerator struct {
	llm   llms.Model
	model string
}

// NewOpenAIGenerator creates a generator backed by an OpenAI-compatible chat API
func NewOpenAIGenerator(apiKey, model, baseURL string) (driven.Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrInvalidInput)
	}
	if model == "" {
		model = defaultOpenAIChatModel
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai: %w", err)
	}
	return NewLangchainGenerator(llm, model), nil
}

// NewOllamaGenerator creates a generator backed by a local Ollama server
func NewOllamaGenerator(baseURL, model string) (driven.Generator, error) {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model == "" {
		model = defaultOllamaChatModel
	}

	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}
	return NewLangchainGenerator(llm, model), nil
}

// NewLangchainGenerator wraps an existing langchaingo model
func NewLangchainGenerator(llm llms.Model, model string) *LangchainGenerator {
	return &LangchainGenerator{llm: llm, model: model}
}

// Generate sends the system framing and prompt as a two-message chat
func (g *LangchainGenerator) Generate(ctx context.Context, req driven.GenerateRequest) (*driven.GenerateResponse, error) {
	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	opts := []llms.CallOption{
		llms.WithTemperature(req.Config.Temperature),
	}
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.Config.MaxOutputTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.Config.MaxOutputTokens))
	}
	if req.Config.TopP > 0 {
		opts = append(opts, llms.WithTopP(req.Config.TopP))
	}
	if req.Config.TopK > 0 {
		opts = append(opts, llms.WithTopK(req.Config.TopK))
	}

	resp, err := g.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, fmt.Errorf("%w: no choices returned", domain.ErrInvalidResponseFormat)
	}

	return &driven.GenerateResponse{Text: resp.Choices[0].Content}, nil
}

// Model returns the model name being used
func (g *LangchainGenerator) Model() string {
	return g.model
}

// Ping verifies the LLM service is available
func (g *LangchainGenerator) Ping(ctx context.Context) error {
	_, err := g.llm.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "ping")},
		llms.WithMaxTokens(1),
	)
	return err
}

// Close releases resources held by the LLM service
func (g *LangchainGenerator) Close() error {
	return nil
}
