package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/chromem"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/sercha-rag/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-rag/internal/chunker"
	"github.com/custodia-labs/sercha-rag/internal/config"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/metrics"
	"github.com/custodia-labs/sercha-rag/internal/parsers"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

// schemaMigrator initialises the PostgreSQL schema for the configured dimensions
type schemaMigrator struct {
	db         *postgres.DB
	dimensions int
}

func (m schemaMigrator) Migrate(ctx context.Context) error {
	return m.db.InitSchema(ctx, m.dimensions)
}

// buildDependencies connects the stores and providers and assembles the pipelines.
// Commands whose provider is not configured are left disabled.
func buildDependencies(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*cli.Dependencies, error) {
	rt := runtime.NewServices()
	ok := false
	defer func() {
		if !ok {
			_ = rt.Close()
		}
	}()

	recorder := startMetrics(cfg.Metrics, rt, logger)

	logger.Debug().Msg("connecting to PostgreSQL")
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	rt.Register("postgres", db.Ping, db.Close)

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		logger.Debug().Msg("connecting to Redis")
		redisClient, err = redisadapter.Connect(ctx, redisadapter.Config{URL: cfg.Redis.URL})
		if err != nil {
			return nil, err
		}
		client := redisClient
		rt.Register("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() }, client.Close)
	}

	sourceStore := postgres.NewSourceStore(db)
	fragmentStore := postgres.NewFragmentStore(db)

	var conversations driven.ConversationStore = postgres.NewConversationStore(db)
	if cfg.Conversation.Backend == config.ConversationBackendRedis {
		conversations = redisadapter.NewConversationStore(redisClient, cfg.Redis.ConversationTTL)
	}

	var searcher driven.VectorSearcher = fragmentStore
	var indexer driven.FragmentIndexer
	if cfg.Vector.Backend == config.VectorBackendChromem {
		index, err := chromem.New(cfg.Vector.Chromem)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector index: %w", err)
		}
		searcher, indexer = index, index
		logger.Info().Str("path", cfg.Vector.Chromem.Path).Int("fragments", index.Count()).Msg("using chromem vector index")
	}

	factory := ai.NewFactory()
	provider, err := factory.CreateEmbeddingProvider(&cfg.Embedding.EmbeddingSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	rt.SetEmbeddingProvider(provider)

	generator, err := factory.CreateGenerator(&cfg.LLM.LLMSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	rt.SetGenerator(generator)

	deps := &cli.Dependencies{
		Conversations: services.NewConversationService(conversations),
		Health:        rt,
		Migrator:      schemaMigrator{db: db, dimensions: cfg.Embedding.Dimensions},
		Close:         rt.Close,
	}

	var pipeline *services.IngestionPipeline
	if provider == nil {
		logger.Warn().Str("provider", string(cfg.Embedding.Provider)).Msg("embedding provider not configured, ingest and query are disabled")
	} else {
		var cache driven.EmbeddingCache
		if redisClient != nil {
			cache = redisadapter.NewEmbeddingCache(redisClient, cfg.Redis.EmbeddingCacheTTL)
		}
		embedder, err := services.NewEmbeddingClient(services.EmbeddingClientConfig{
			Provider:       provider,
			Cache:          cache,
			Model:          cfg.Embedding.Model,
			Dimensions:     cfg.Embedding.Dimensions,
			BatchSize:      cfg.Embedding.BatchSize,
			MaxInputTokens: cfg.Embedding.MaxInputTokens,
			Metrics:        recorder,
			Logger:         logger,
		})
		if err != nil {
			return nil, err
		}

		textChunker, err := chunker.New(cfg.Chunking)
		if err != nil {
			return nil, err
		}

		pipeline = services.NewIngestionPipeline(services.IngestionPipelineConfig{
			Parsers:   parsers.DefaultRegistry(),
			Chunker:   textChunker,
			Embedder:  embedder,
			Sources:   sourceStore,
			Fragments: fragmentStore,
			Indexer:   indexer,
			Metrics:   recorder,
			Logger:    logger,
		})
		deps.Ingestion = pipeline

		if generator == nil {
			logger.Warn().Str("provider", string(cfg.LLM.Provider)).Msg("llm provider not configured, query is disabled")
		} else {
			minSimilarity := cfg.Retrieval.MinSimilarity
			retriever := services.NewRetriever(services.RetrieverConfig{
				Searcher:             searcher,
				DefaultLimit:         cfg.Retrieval.DefaultLimit,
				MaxLimit:             cfg.Retrieval.MaxLimit,
				DefaultMinSimilarity: &minSimilarity,
				Metrics:              recorder,
				Logger:               logger,
			})
			generation := cfg.LLM.GenerationConfig
			deps.Query = services.NewQueryPipeline(services.QueryPipelineConfig{
				Conversations: conversations,
				Embedder:      embedder,
				Retriever:     retriever,
				Generator:     generator,
				Generation:    &generation,
				HistoryWindow: cfg.Query.HistoryWindow,
				Metrics:       recorder,
				Logger:        logger,
			})
		}
	}

	deps.Sources = services.NewSourceService(services.SourceServiceConfig{
		Sources:    sourceStore,
		Fragments:  fragmentStore,
		Indexer:    indexer,
		Pipeline:   pipeline,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	ok = true
	return deps, nil
}

// startMetrics serves /metrics when an address is configured
func startMetrics(cfg config.MetricsConfig, rt *runtime.Services, logger *zerolog.Logger) metrics.Recorder {
	if cfg.Addr == "" {
		return metrics.Nop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheus(registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	rt.Register("metrics", nil, server.Close)

	return recorder
}
