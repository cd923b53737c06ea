package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

func TestNewGeminiEmbedding_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiEmbedding("", "", "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewGeminiEmbedding_Defaults(t *testing.T) {
	svc, err := NewGeminiEmbedding("key", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	emb := svc.(*GeminiEmbedding)
	if emb.model != "text-embedding-004" {
		t.Errorf("expected default model, got %s", emb.model)
	}
	if emb.baseURL != "https://generativelanguage.googleapis.com/v1beta" {
		t.Errorf("expected default base URL, got %s", emb.baseURL)
	}

	svc, _ = NewGeminiEmbedding("key", "models/gemini-embedding-001", "")
	if svc.Model() != "gemini-embedding-001" {
		t.Errorf("expected models/ prefix to be stripped, got %s", svc.Model())
	}
}

func TestGeminiEmbedding_Embed_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/models/text-embedding-004:embedContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "key" {
			t.Error("expected x-goog-api-key header")
		}

		var req geminiEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Model != "models/text-embedding-004" {
			t.Errorf("unexpected model %s", req.Model)
		}
		if len(req.Content.Parts) != 1 || req.Content.Parts[0].Text != "refund policy" {
			t.Errorf("unexpected content %+v", req.Content)
		}
		if req.TaskType != "RETRIEVAL_QUERY" {
			t.Errorf("expected RETRIEVAL_QUERY task type, got %q", req.TaskType)
		}
		if req.OutputDimensionality != 768 {
			t.Errorf("expected 768 output dimensions, got %d", req.OutputDimensionality)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.5,0.25]}}`))
	}))
	defer server.Close()

	svc, err := NewGeminiEmbedding("key", "", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.Embed(context.Background(), driven.EmbedRequest{
		Content:    "refund policy",
		Dimensions: 768,
		TaskHint:   domain.TaskHintRetrievalQuery,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 || len(result[0].Embedding) != 2 || result[0].Embedding[0] != 0.5 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestGeminiEmbedding_Embed_OmitsEmptyTaskType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if _, ok := raw["taskType"]; ok {
			t.Error("expected taskType to be omitted")
		}
		_, _ = w.Write([]byte(`{"embedding":{"values":[1]}}`))
	}))
	defer server.Close()

	svc, _ := NewGeminiEmbedding("key", "", server.URL)
	if _, err := svc.Embed(context.Background(), driven.EmbedRequest{Content: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGeminiEmbedding_Embed_MissingEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":true}`))
	}))
	defer server.Close()

	svc, _ := NewGeminiEmbedding("key", "", server.URL)

	_, err := svc.Embed(context.Background(), driven.EmbedRequest{Content: "x"})
	if !errors.Is(err, domain.ErrInvalidResponseFormat) {
		t.Errorf("expected ErrInvalidResponseFormat, got %v", err)
	}
}

func TestGeminiEmbedding_Embed_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	svc, _ := NewGeminiEmbedding("bad", "", server.URL)

	_, err := svc.Embed(context.Background(), driven.EmbedRequest{Content: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "Gemini API error: API key not valid (status: INVALID_ARGUMENT, code: 400)" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestGeminiEmbedding_Embed_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer server.Close()

	svc, _ := NewGeminiEmbedding("key", "", server.URL)

	_, err := svc.Embed(context.Background(), driven.EmbedRequest{Content: "x"})
	if err == nil || err.Error() != "Gemini API returned status 502" {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestGeminiEmbedding_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":{"values":[1]}}`))
	}))
	defer server.Close()

	svc, _ := NewGeminiEmbedding("key", "", server.URL)
	if err := svc.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected no error from health check, got %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("expected no error from Close, got %v", err)
	}
}
