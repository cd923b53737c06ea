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

// Ensure GeminiEmbedding implements EmbeddingProvider
var _ driven.EmbeddingProvider = (*GeminiEmbedding)(nil)

const (
	defaultGeminiEmbeddingModel = "text-embedding-004"
	defaultGeminiBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
)

// GeminiEmbedding implements EmbeddingProvider using the Gemini embedContent API.
// Task hints map directly onto the API's taskType.
type GeminiEmbedding struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGeminiEmbedding creates a new Gemini embedding provider
func NewGeminiEmbedding(apiKey, model, baseURL string) (driven.EmbeddingProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required", domain.ErrInvalidInput)
	}

	if model == "" {
		model = defaultGeminiEmbeddingModel
	}

	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	return &GeminiEmbedding{
		apiKey:  apiKey,
		model:   strings.TrimPrefix(model, "models/"),
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

// geminiEmbedRequest is the request body for models/{model}:embedContent
type geminiEmbedRequest struct {
	Model                string        `json:"model"`
	Content              geminiContent `json:"content"`
	TaskType             string        `json:"taskType,omitempty"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

// geminiEmbedResponse is the response from embedContent
type geminiEmbedResponse struct {
	Embedding *struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Embed generates the embedding for one text
func (e *GeminiEmbedding) Embed(ctx context.Context, req driven.EmbedRequest) ([]driven.EmbeddingResult, error) {
	model := strings.TrimPrefix(req.Model, "models/")
	if model == "" {
		model = e.model
	}

	reqBody := geminiEmbedRequest{
		Model:                "models/" + model,
		Content:              geminiContent{Parts: []geminiPart{{Text: req.Content}}},
		TaskType:             string(req.TaskHint),
		OutputDimensionality: req.Dimensions,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", e.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var embResp geminiEmbedResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("Gemini API returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponseFormat, err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("Gemini API error: %s (status: %s, code: %d)",
			embResp.Error.Message, embResp.Error.Status, embResp.Error.Code)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Gemini API returned status %d", resp.StatusCode)
	}

	if embResp.Embedding == nil {
		return nil, fmt.Errorf("%w: missing embedding object", domain.ErrInvalidResponseFormat)
	}

	return []driven.EmbeddingResult{{Embedding: embResp.Embedding.Values}}, nil
}

// Model returns the model name being used
func (e *GeminiEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the embedding service is available
func (e *GeminiEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.Embed(ctx, driven.EmbedRequest{Content: "health check"})
	return err
}

// Close releases resources held by the embedding service
func (e *GeminiEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
