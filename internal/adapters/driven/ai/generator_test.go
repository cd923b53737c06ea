package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

type fakeModel struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	f.options = llms.CallOptions{}
	for _, opt := range options {
		opt(&f.options)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func textOf(t *testing.T, m llms.MessageContent) string {
	t.Helper()
	if len(m.Parts) != 1 {
		t.Fatalf("expected one part, got %d", len(m.Parts))
	}
	part, ok := m.Parts[0].(llms.TextContent)
	if !ok {
		t.Fatalf("expected text part, got %T", m.Parts[0])
	}
	return part.Text
}

func TestLangchainGenerator_Generate(t *testing.T) {
	fake := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "Refunds take 14 days."}}}}
	gen := NewLangchainGenerator(fake, "gpt-4o-mini")

	resp, err := gen.Generate(context.Background(), driven.GenerateRequest{
		Model:  "gpt-4o-mini",
		System: "Answer from the excerpts.",
		Prompt: "Question: refunds?",
		Config: domain.DefaultGenerationConfig(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Refunds take 14 days." {
		t.Errorf("unexpected text %q", resp.Text)
	}

	if len(fake.messages) != 2 {
		t.Fatalf("expected system and human messages, got %d", len(fake.messages))
	}
	if fake.messages[0].Role != llms.ChatMessageTypeSystem || textOf(t, fake.messages[0]) != "Answer from the excerpts." {
		t.Errorf("unexpected system message %+v", fake.messages[0])
	}
	if fake.messages[1].Role != llms.ChatMessageTypeHuman || textOf(t, fake.messages[1]) != "Question: refunds?" {
		t.Errorf("unexpected human message %+v", fake.messages[1])
	}

	opts := fake.options
	if opts.Model != "gpt-4o-mini" {
		t.Errorf("expected model option, got %q", opts.Model)
	}
	if opts.Temperature != 0.2 || opts.TopP != 0.8 || opts.TopK != 40 || opts.MaxTokens != 1024 {
		t.Errorf("unexpected call options %+v", opts)
	}
}

func TestLangchainGenerator_Generate_NoSystem(t *testing.T) {
	fake := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}}
	gen := NewLangchainGenerator(fake, "m")

	if _, err := gen.Generate(context.Background(), driven.GenerateRequest{Prompt: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.messages) != 1 {
		t.Errorf("expected only the human message, got %d", len(fake.messages))
	}
	if fake.options.MaxTokens != 0 || fake.options.TopK != 0 {
		t.Errorf("expected unset limits to be omitted, got %+v", fake.options)
	}
}

func TestLangchainGenerator_Generate_Errors(t *testing.T) {
	upstream := errors.New("rate limited")
	gen := NewLangchainGenerator(&fakeModel{err: upstream}, "m")

	if _, err := gen.Generate(context.Background(), driven.GenerateRequest{Prompt: "hi"}); !errors.Is(err, upstream) {
		t.Errorf("expected upstream error, got %v", err)
	}

	empty := NewLangchainGenerator(&fakeModel{resp: &llms.ContentResponse{}}, "m")
	if _, err := empty.Generate(context.Background(), driven.GenerateRequest{Prompt: "hi"}); !errors.Is(err, domain.ErrInvalidResponseFormat) {
		t.Errorf("expected ErrInvalidResponseFormat, got %v", err)
	}
}

func TestLangchainGenerator_Ping(t *testing.T) {
	fake := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "pong"}}}}
	gen := NewLangchainGenerator(fake, "m")

	if err := gen.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.options.MaxTokens != 1 {
		t.Errorf("expected ping to request one token, got %d", fake.options.MaxTokens)
	}
	if gen.Model() != "m" {
		t.Errorf("unexpected model %s", gen.Model())
	}
}

func TestNewOpenAIGenerator_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIGenerator("", "", "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewGenerators_Defaults(t *testing.T) {
	gen, err := NewOpenAIGenerator("sk-test", "", "http://localhost:1/v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.Model() != "gpt-4o-mini" {
		t.Errorf("expected default OpenAI model, got %s", gen.Model())
	}

	gen, err = NewOllamaGenerator("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.Model() != "llama3.2" {
		t.Errorf("expected default Ollama model, got %s", gen.Model())
	}
}
