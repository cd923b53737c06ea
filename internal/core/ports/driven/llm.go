package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// GenerateRequest is a single prompt for the generative model
type GenerateRequest struct {
	Model  string
	System string // Optional system framing
	Prompt string
	Config domain.GenerationConfig
}

// GenerateResponse holds the generated text
type GenerateResponse struct {
	Text string
}

// Generator produces answers from an assembled prompt
type Generator interface {
	// Generate runs the prompt through the model
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
