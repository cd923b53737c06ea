package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure OpenAIEmbedding implements EmbeddingProvider
var _ driven.EmbeddingProvider = (*OpenAIEmbedding)(nil)

// OpenAIEmbedding implements EmbeddingProvider using OpenAI's embedding API
type OpenAIEmbedding struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

const (
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
)

// NewOpenAIEmbedding creates a new OpenAI embedding provider
func NewOpenAIEmbedding(apiKey, model, baseURL string) (driven.EmbeddingProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrInvalidInput)
	}

	if model == "" {
		model = defaultOpenAIEmbeddingModel
	}

	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	return &OpenAIEmbedding{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// embeddingRequest is the request body for OpenAI embedding API
type embeddingRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format,omitempty"`
	Dimensions     int    `json:"dimensions,omitempty"`
}

// openAIEmbeddingData is one vector in an OpenAI embedding response
type openAIEmbeddingData struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// openAIError is the error envelope returned by OpenAI-compatible APIs
type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// embeddingResponse is the response from OpenAI embedding API
type embeddingResponse struct {
	Object string                `json:"object"`
	Data   []openAIEmbeddingData `json:"data"`
	Model  string                `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	Error *openAIError `json:"error,omitempty"`
}

// Embed generates embeddings for one text.
// The dimensions parameter is only sent to text-embedding-3 models.
func (e *OpenAIEmbedding) Embed(ctx context.Context, req driven.EmbedRequest) ([]driven.EmbeddingResult, error) {
	model := req.Model
	if model == "" {
		model = e.model
	}

	reqBody := embeddingRequest{
		Input:          req.Content,
		Model:          model,
		EncodingFormat: "float",
	}
	if strings.HasPrefix(model, "text-embedding-3") {
		reqBody.Dimensions = req.Dimensions
	}

	resp, err := e.doRequest(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	results := make([]driven.EmbeddingResult, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(results) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", domain.ErrInvalidResponseFormat, d.Index)
		}
		results[d.Index] = driven.EmbeddingResult{Embedding: d.Embedding}
	}

	return results, nil
}

// Model returns the model name being used
func (e *OpenAIEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the embedding service is available
func (e *OpenAIEmbedding) HealthCheck(ctx context.Context) error {
	// Make a small embedding request to verify connectivity
	_, err := e.Embed(ctx, driven.EmbedRequest{Content: "health check"})
	return err
}

// Close releases resources held by the embedding service
func (e *OpenAIEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// doRequest makes a request to the OpenAI embedding API
func (e *OpenAIEmbedding) doRequest(ctx context.Context, reqBody embeddingRequest) (*embeddingResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponseFormat, err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s (type: %s, code: %s)",
			embResp.Error.Message, embResp.Error.Type, embResp.Error.Code)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
	}

	return &embResp, nil
}
