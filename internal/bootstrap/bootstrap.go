package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/provenance-rag/internal/config"
	"github.com/kirillkom/provenance-rag/internal/core/ports"
	"github.com/kirillkom/provenance-rag/internal/core/usecase"
	"github.com/kirillkom/provenance-rag/internal/infrastructure/llm/openai"
	"github.com/kirillkom/provenance-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/provenance-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/provenance-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/provenance-rag/internal/infrastructure/retrieval/graphrag"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Signals  ports.SignalStore
	QueryUC  ports.QueryService
	IngestUC ports.DocumentIngestor
	IndexUC  ports.DocumentIndexer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	signals := postgres.NewSignalRepository(db)
	if err := signals.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	engine := graphrag.New(cfg.GraphRAGURL, graphrag.Options{
		QueryTimeout:       time.Duration(cfg.GraphRAGTimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
	})
	embedder := openai.NewEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIEmbedModel, openai.Options{
		BaseURL:            cfg.OpenAIBaseURL,
		RequestsPerSecond:  cfg.OpenAIRateRPS,
		Burst:              cfg.OpenAIRateBurst,
		ResilienceExecutor: executor,
	})

	rules, err := cfg.RouterRules()
	if err != nil {
		return nil, fmt.Errorf("load router rules: %w", err)
	}

	router := usecase.NewRouter(rules)
	parser := usecase.NewContextParser()
	paths := usecase.NewPathAttributor()
	sentences := usecase.NewSentenceAttributor(embedder, cfg.AttributionThreshold)

	queryUC := usecase.NewAnswerUseCase(router, signals, engine, parser, paths, sentences)
	ingestUC := usecase.NewIngestUseCase(signals, queue)
	indexUC := usecase.NewIndexDocumentUseCase(engine)

	return &App{
		Config: cfg,

		Queue:    queue,
		Signals:  signals,
		QueryUC:  queryUC,
		IngestUC: ingestUC,
		IndexUC:  indexUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
