package domain

// AIProvider identifies the AI/embedding provider
type AIProvider string

const (
	AIProviderGemini AIProvider = "gemini"
	AIProviderOpenAI AIProvider = "openai"
	AIProviderOllama AIProvider = "ollama"
)

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama:
		return false // Self-hosted, no API key needed
	default:
		return true
	}
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderGemini, AIProviderOpenAI, AIProviderOllama:
		return true
	default:
		return false
	}
}

// TaskHint declares the intent of an embedding call.
// Providers that do not support hints ignore it.
type TaskHint string

const (
	TaskHintNone               TaskHint = ""
	TaskHintRetrievalDocument  TaskHint = "RETRIEVAL_DOCUMENT"
	TaskHintRetrievalQuery     TaskHint = "RETRIEVAL_QUERY"
	TaskHintSemanticSimilarity TaskHint = "SEMANTIC_SIMILARITY"
	TaskHintClassification     TaskHint = "CLASSIFICATION"
	TaskHintClustering         TaskHint = "CLUSTERING"
)

// EmbeddingSettings configures the embedding provider
type EmbeddingSettings struct {
	Provider   AIProvider `json:"provider" yaml:"provider"`
	Model      string     `json:"model" yaml:"model"`
	APIKey     string     `json:"-" yaml:"api_key"` // Never serialize to JSON
	BaseURL    string     `json:"base_url,omitempty" yaml:"base_url"`
	Dimensions int        `json:"dimensions" yaml:"dimensions"`
}

// IsConfigured returns true if embedding settings are properly configured
func (e *EmbeddingSettings) IsConfigured() bool {
	if e.Provider == "" {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings configures the generative model
type LLMSettings struct {
	Provider AIProvider `json:"provider" yaml:"provider"`
	Model    string     `json:"model" yaml:"model"`
	APIKey   string     `json:"-" yaml:"api_key"` // Never serialize to JSON
	BaseURL  string     `json:"base_url,omitempty" yaml:"base_url"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	if l.Provider == "" {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// GenerationConfig tunes the generative call
type GenerationConfig struct {
	Temperature     float64 `json:"temperature" yaml:"temperature"`
	TopP            float64 `json:"top_p" yaml:"top_p"`
	TopK            int     `json:"top_k" yaml:"top_k"`
	MaxOutputTokens int     `json:"max_output_tokens" yaml:"max_output_tokens"`
}

// DefaultGenerationConfig returns a conservative low-temperature configuration
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.2,
		TopP:            0.8,
		TopK:            40,
		MaxOutputTokens: 1024,
	}
}
