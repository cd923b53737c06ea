package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/metrics"
)

const (
	// FallbackAnswer is returned when no fragment clears the similarity threshold
	FallbackAnswer = "I couldn't find any relevant information in the knowledge base to answer your question. " +
		"Try rephrasing it or adding documents that cover this topic."

	// DefaultHistoryWindow is how many prior messages prefix the retrieval query
	DefaultHistoryWindow = 5

	// SystemPrompt frames every generation call
	SystemPrompt = "You are a helpful assistant that answers questions using only the provided excerpts. " +
		"Cite excerpts by their number, for example [1]. " +
		"If the excerpts do not contain the answer, say that you do not know."
)

// Message metadata keys recorded on assistant answers
const (
	MetadataFragmentIDs   = "fragment_ids"
	MetadataFragmentCount = "fragment_count"
)

// Verify interface compliance
var _ driving.QueryService = (*QueryPipeline)(nil)

// QueryPipeline answers questions with retrieval-augmented generation.
type QueryPipeline struct {
	conversations driven.ConversationStore
	embedder      QueryEmbedder
	retriever     FragmentRetriever
	generator     driven.Generator
	generation    domain.GenerationConfig
	historyWindow int
	metrics       metrics.Recorder
	logger        *zerolog.Logger
	now           func() time.Time
}

// QueryPipelineConfig holds dependencies for QueryPipeline.
type QueryPipelineConfig struct {
	Conversations driven.ConversationStore
	Embedder      QueryEmbedder
	Retriever     FragmentRetriever
	Generator     driven.Generator
	Generation    *domain.GenerationConfig // Defaults to domain.DefaultGenerationConfig()
	HistoryWindow int                      // Defaults to DefaultHistoryWindow
	Metrics       metrics.Recorder
	Logger        *zerolog.Logger
	Now           func() time.Time
}

// NewQueryPipeline creates a new query pipeline.
func NewQueryPipeline(cfg QueryPipelineConfig) *QueryPipeline {
	q := &QueryPipeline{
		conversations: cfg.Conversations,
		embedder:      cfg.Embedder,
		retriever:     cfg.Retriever,
		generator:     cfg.Generator,
		generation:    domain.DefaultGenerationConfig(),
		historyWindow: cfg.HistoryWindow,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		now:           cfg.Now,
	}
	if cfg.Generation != nil {
		q.generation = *cfg.Generation
	}
	if q.historyWindow <= 0 {
		q.historyWindow = DefaultHistoryWindow
	}
	if q.metrics == nil {
		q.metrics = metrics.Nop()
	}
	if q.logger == nil {
		nop := zerolog.Nop()
		q.logger = &nop
	}
	if q.now == nil {
		q.now = time.Now
	}
	return q
}

// Query runs one question through the pipeline and records both turns
// in the conversation.
func (q *QueryPipeline) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	if err := validateQueryRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, outcome, err := q.run(ctx, req)
	if err != nil {
		outcome = metrics.OutcomeError
	}
	q.metrics.QueryFinished(outcome, time.Since(start))
	return resp, err
}

func (q *QueryPipeline) run(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, string, error) {
	conv, err := q.resolveConversation(ctx, req)
	if err != nil {
		return nil, "", err
	}

	prior := conv.Recent(q.historyWindow)
	contextual := BuildContextualQuery(prior, req.Question)
	conv.Append(domain.RoleUser, req.Question, nil, q.now())

	log := q.logger.With().Str("sector_id", req.SectorID).Str("user_id", req.UserID).Logger()

	vector, err := q.embedder.EmbedQuery(ctx, contextual)
	if err != nil {
		log.Error().Err(err).Msg("query embedding failed")
		return nil, "", err
	}

	hits, err := q.retriever.Search(ctx, vector, req.SectorID, req.Options)
	if err != nil {
		log.Error().Err(err).Msg("retrieval failed")
		return nil, "", err
	}

	if len(hits) == 0 {
		log.Info().Msg("no fragments above threshold, returning fallback answer")
		conv.Append(domain.RoleAssistant, FallbackAnswer, map[string]string{
			MetadataFragmentCount: "0",
		}, q.now())
		if err := q.conversations.Save(ctx, conv); err != nil {
			return nil, "", fmt.Errorf("save conversation: %w", err)
		}
		return q.response(conv, FallbackAnswer, nil), metrics.OutcomeFallback, nil
	}

	genResp, err := q.generator.Generate(ctx, driven.GenerateRequest{
		Model:  q.generator.Model(),
		System: SystemPrompt,
		Prompt: BuildPrompt(req.Question, hits),
		Config: q.generation,
	})
	if err != nil {
		log.Error().Err(err).Msg("generation failed")
		return nil, "", wrapProviderError("generation failed", err)
	}
	if genResp == nil {
		return nil, "", fmt.Errorf("generation failed: %w: empty response", domain.ErrInvalidResponseFormat)
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Fragment.ID
	}
	conv.Append(domain.RoleAssistant, genResp.Text, map[string]string{
		MetadataFragmentIDs:   strings.Join(ids, ","),
		MetadataFragmentCount: strconv.Itoa(len(hits)),
	}, q.now())

	if err := q.conversations.Save(ctx, conv); err != nil {
		return nil, "", fmt.Errorf("save conversation: %w", err)
	}

	log.Debug().Str("conversation_id", conv.ID).Int("fragments", len(hits)).Msg("answered question")
	return q.response(conv, genResp.Text, hits), metrics.OutcomeAnswered, nil
}

// resolveConversation loads the requested conversation, or the caller's latest
// one in the sector, or starts a new one.
func (q *QueryPipeline) resolveConversation(ctx context.Context, req domain.QueryRequest) (*domain.Conversation, error) {
	if req.ConversationID != "" {
		conv, err := q.conversations.Get(ctx, req.ConversationID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrConversationNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load conversation: %w", err)
		}
		if conv.UserID != req.UserID || conv.SectorID != req.SectorID {
			return nil, domain.ErrConversationNotFound
		}
		return conv, nil
	}

	conv, err := q.conversations.GetLatest(ctx, req.UserID, req.SectorID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return domain.NewConversation(req.UserID, req.SectorID, q.now())
}

func (q *QueryPipeline) response(conv *domain.Conversation, text string, hits []*domain.ScoredFragment) *domain.QueryResponse {
	citations := make([]*domain.Citation, 0, len(hits))
	for _, h := range hits {
		citations = append(citations, &domain.Citation{
			FragmentID: h.Fragment.ID,
			SourceID:   h.Fragment.SourceID,
			Content:    h.Fragment.Content,
			Position:   h.Fragment.Position,
			Similarity: h.Similarity,
			Metadata:   h.Fragment.Metadata,
		})
	}
	return &domain.QueryResponse{
		ResponseText:   text,
		ConversationID: conv.ID,
		Sources:        citations,
		Timestamp:      q.now(),
	}
}

// BuildContextualQuery prefixes the question with prior messages as
// "<Role>: <content>" lines. Without history the question is returned as is.
func BuildContextualQuery(history []*domain.Message, question string) string {
	if len(history) == 0 {
		return question
	}
	var b strings.Builder
	for _, m := range history {
		b.WriteString(m.Role.Label())
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(question)
	return b.String()
}

// BuildPrompt numbers the retrieved excerpts and appends the original question.
func BuildPrompt(question string, hits []*domain.ScoredFragment) string {
	var b strings.Builder
	b.WriteString("Use the following excerpts to answer the question.\n\n")
	for i, h := range hits {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, h.Fragment.Content)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func validateQueryRequest(req domain.QueryRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.SectorID) == "" {
		return fmt.Errorf("%w: sector id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Question) == "" {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, domain.ErrEmptyText)
	}
	return nil
}
