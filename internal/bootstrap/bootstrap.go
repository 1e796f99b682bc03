package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/megachat/sales-assistant/internal/config"
	"github.com/megachat/sales-assistant/internal/core/nlu"
	"github.com/megachat/sales-assistant/internal/core/ports"
	"github.com/megachat/sales-assistant/internal/core/usecase"
	"github.com/megachat/sales-assistant/internal/infrastructure/cache/redis"
	"github.com/megachat/sales-assistant/internal/infrastructure/llm/ollama"
	"github.com/megachat/sales-assistant/internal/infrastructure/queue/nats"
	"github.com/megachat/sales-assistant/internal/infrastructure/repository/postgres"
	"github.com/megachat/sales-assistant/internal/infrastructure/rerank/crossencoder"
	"github.com/megachat/sales-assistant/internal/infrastructure/rerank/lexical"
	"github.com/megachat/sales-assistant/internal/infrastructure/resilience"
	"github.com/megachat/sales-assistant/internal/infrastructure/vector/qdrant"
	"github.com/megachat/sales-assistant/internal/observability/metrics"
	"github.com/megachat/sales-assistant/internal/observability/tracing"
)

// Options carries process-specific hooks into the shared wiring.
type Options struct {
	// Registerer receives resilience collectors. Nil disables them.
	Registerer prometheus.Registerer
	// StageObserver receives pipeline stage timings.
	StageObserver usecase.StageObserver
}

type App struct {
	Config config.Config

	Queue    ports.ProductQueue
	Repo     ports.ProductRepository
	Chat     ports.ChatService
	Catalog  *usecase.CatalogUseCase
	Indexer  ports.ProductIndexer
	Sessions ports.SessionStore
	Health   ports.HealthChecker

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, options Options) (*App, error) {
	app := &App{Config: cfg}

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRate:  cfg.OTelSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	app.onClose(func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("tracing_shutdown_failed", "error", err)
		}
	})

	// Chat-path calls get a short retry budget; indexing keeps the configured one.
	batchExecutor := resilience.NewExecutor(cfg.ResilienceConfig())
	chatExecutor := resilience.NewExecutor(cfg.ResilienceConfig().Interactive())
	if options.Registerer != nil {
		observer := metrics.NewResilienceMetrics(options.Registerer, cfg.ServiceName)
		batchExecutor.WithObserver(observer)
		chatExecutor.WithObserver(observer)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.onClose(func() { _ = db.Close() })
	repo := postgres.NewProductRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Name:               cfg.ServiceName,
		ResilienceExecutor: batchExecutor,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.onClose(queue.Close)

	redisClient := redis.NewClient(redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	cacheStore := redis.NewStore(redisClient, cfg.RedisKeyPrefix)
	app.onClose(func() { _ = cacheStore.Close() })

	chatLLM := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		ResilienceExecutor: chatExecutor,
		Temperature:        cfg.LLMTemperature,
		MaxTokens:          cfg.LLMMaxTokens,
	})
	indexLLM := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		ResilienceExecutor: batchExecutor,
	})

	searchIndex := qdrant.NewWithOptions(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
		ResilienceExecutor: chatExecutor,
	})
	writeIndex := qdrant.NewWithOptions(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
		ResilienceExecutor: batchExecutor,
	})

	rules, err := nlu.LoadRules(cfg.NLURulesPath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("load nlu rules: %w", err)
	}
	classifier, err := nlu.NewClassifier(rules)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init classifier: %w", err)
	}

	probes := []ports.HealthProbe{cacheStore, searchIndex, repo, queue, chatLLM}

	var scorer ports.RerankScorer
	if cfg.RerankerURL != "" {
		crossEncoder := crossencoder.New(cfg.RerankerURL, cfg.RerankerModel, crossencoder.Options{
			ResilienceExecutor: chatExecutor,
		})
		scorer = crossEncoder
		probes = append(probes, crossEncoder)
	} else {
		slog.Info("reranker_url_not_set", "fallback", "lexical")
		scorer = lexical.NewScorer()
	}

	queryEmbedder := usecase.NewCachedEmbedder(
		ollama.NewEmbedder(chatLLM, cfg.EmbedQueryPrefix, cfg.EmbedDocumentPrefix),
		cacheStore,
		cfg.CacheEmbeddingTTL,
	)
	documentEmbedder := ollama.NewEmbedder(indexLLM, cfg.EmbedQueryPrefix, cfg.EmbedDocumentPrefix)

	pipeline := usecase.NewChatPipeline(
		usecase.NewResponseCache(cacheStore, cfg.CacheResponseTTL),
		classifier,
		usecase.NewQueryExpander(ollama.NewCompleter(chatLLM), cfg.QueryVariations, cfg.ExpansionTemperature),
		usecase.NewFusionRetriever(queryEmbedder, searchIndex, cfg.RetrievalTopK, cfg.RetrievalConcurrency),
		usecase.NewReranker(scorer, cfg.RerankTopK),
		ollama.NewGenerator(chatLLM),
		cfg.PipelineTimeout,
	)
	if options.StageObserver != nil {
		pipeline.WithStageObserver(options.StageObserver)
	}

	sessions := usecase.NewSessionHistory(cacheStore, cfg.CacheSessionTTL, cfg.SessionMaxHistory)

	app.Queue = queue
	app.Repo = repo
	app.Chat = usecase.NewChatUseCase(pipeline, sessions)
	app.Catalog = usecase.NewCatalogUseCase(repo, queue, documentEmbedder, writeIndex, cacheStore, cfg.CacheProductTTL).
		WithAttributeCanonicalizer(classifier)
	app.Indexer = app.Catalog
	app.Sessions = sessions
	app.Health = usecase.NewHealthUseCase(cfg.HealthCheckTimeout, probes...)
	return app, nil
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
