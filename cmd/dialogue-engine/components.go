// cmd/dialogue-engine/components.go
package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dialogue-engine/internal/api"
	"dialogue-engine/internal/common/config"
	"dialogue-engine/internal/common/database"
	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/common/observability"
	"dialogue-engine/internal/models"
	"dialogue-engine/internal/orchestrator"
	"dialogue-engine/internal/providers/embedding"
	"dialogue-engine/internal/providers/genai"
	"dialogue-engine/internal/providers/redmine"
	"dialogue-engine/internal/providers/vectorindex"
	"dialogue-engine/internal/providers/websearch"
	"dialogue-engine/internal/session"
	actiondispatcher "dialogue-engine/internal/workers/dialogue/action-dispatcher"
	documentloader "dialogue-engine/internal/workers/dialogue/document-loader"
	intentclassifier "dialogue-engine/internal/workers/dialogue/intent-classifier"
	knowledgeretriever "dialogue-engine/internal/workers/dialogue/knowledge-retriever"
	qualityscorer "dialogue-engine/internal/workers/dialogue/quality-scorer"
	responsesynthesizer "dialogue-engine/internal/workers/dialogue/response-synthesizer"
	webevidence "dialogue-engine/internal/workers/dialogue/web-evidence"
	"dialogue-engine/pkg/registry"
)

// components are the process-wide handlers shared by every command.
type components struct {
	engine          *orchestrator.Engine
	retriever       *knowledgeretriever.Handler
	retrieverConfig *knowledgeretriever.Config
	loader          *documentloader.Handler
	obs             *observability.Observability
	checks          []api.ReadinessCheck
}

// retryWithBackoff runs operation until it succeeds, doubling the delay after
// each failure.
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", operationName, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func newVectorIndex(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (vectorindex.Index, api.ReadinessCheck, error) {
	vi := cfg.APIs.VectorIndex
	if vi.Backend == "elasticsearch" {
		var esClient *database.ElasticsearchClient
		err := retryWithBackoff(ctx, func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, api.ReadinessCheck{}, err
		}
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", vi.Index))
		return vectorindex.NewElasticsearchIndex(esClient.Client, vi.Index),
			api.ReadinessCheck{Name: "elasticsearch", Check: esClient.Ping}, nil
	}

	index := vectorindex.NewPineconeIndex(vi.Host, vi.APIKey, config.GetDuration(vi.Timeout))
	check := api.ReadinessCheck{Name: "pinecone", Check: func(ctx context.Context) error {
		_, err := index.DescribeStats(ctx)
		return err
	}}
	return index, check, nil
}

func newComponents(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger) (*components, error) {
	obs := observability.New(cfg.App.Name)

	catalogue, err := registry.Load(cfg.Actions.RegistryPath)
	if err != nil {
		obs.Shutdown()
		return nil, fmt.Errorf("load action catalogue: %w", err)
	}

	index, indexCheck, err := newVectorIndex(ctx, cfg, zapLog)
	if err != nil {
		obs.Shutdown()
		return nil, err
	}

	// --- Providers ---
	genaiCfg := cfg.APIs.GenAI
	provider := genai.NewOpenAIProvider(&genai.Config{
		BaseURL:    genaiCfg.BaseURL,
		APIKey:     genaiCfg.APIKey,
		Timeout:    config.GetDuration(genaiCfg.Timeout),
		MaxRetries: genaiCfg.MaxRetries,
	})

	embCfg := cfg.APIs.Embedding
	openaiEmbedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		BaseURL:   embCfg.BaseURL,
		APIKey:    embCfg.APIKey,
		Timeout:   config.GetDuration(embCfg.Timeout),
		CacheSize: embCfg.CacheSize,
	})
	if err != nil {
		obs.Shutdown()
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	var local embedding.Embedder
	if embCfg.LocalBaseURL != "" {
		local = embedding.NewOllamaEmbedder(embCfg.LocalBaseURL, embCfg.LocalModel, config.GetDuration(embCfg.Timeout))
	}

	wsCfg := cfg.APIs.WebSearch
	searcher := websearch.NewGoogleSearcher(websearch.GoogleConfig{
		BaseURL:  wsCfg.BaseURL,
		APIKey:   wsCfg.APIKey,
		EngineID: wsCfg.EngineID,
		Timeout:  config.GetDuration(wsCfg.Timeout),
		CacheTTL: config.GetDuration(wsCfg.CacheTTL),
	})
	fetcher := websearch.NewHTTPFetcher(config.GetDuration(cfg.Dialogue.FetchTimeout))

	rmCfg := cfg.APIs.Redmine
	redmineClient := redmine.NewHTTPClient(redmine.Config{
		URL:     rmCfg.URL,
		APIKey:  rmCfg.APIKey,
		Timeout: config.GetDuration(rmCfg.Timeout),
	})

	// --- Workers ---
	retrieverCfg := knowledgeretriever.LoadConfig()
	retrieverCfg.TopK = cfg.Dialogue.TopK
	retriever := knowledgeretriever.NewHandler(retrieverCfg, index, openaiEmbedder, local, log)

	scorer := qualityscorer.NewHandler(qualityscorer.LoadConfig(), log)

	webCfg := webevidence.LoadConfig()
	webCfg.Count = cfg.Dialogue.WebResults
	webCfg.Locale = wsCfg.Locale
	webCfg.FetchDelay = config.GetDuration(cfg.Dialogue.FetchDelay)
	gatherer := webevidence.NewHandler(webCfg, searcher, fetcher, scorer, log)

	classifierCfg := intentclassifier.LoadConfig()
	classifierCfg.Model = genaiCfg.ClassifierModel
	classifier := intentclassifier.NewHandler(classifierCfg, provider, catalogue, log)

	dispatcherCfg := actiondispatcher.LoadConfig()
	dispatcherCfg.UserID = rmCfg.UserID
	if rmCfg.ProjectID != "" {
		dispatcherCfg.ProjectID = rmCfg.ProjectID
	}
	dispatcherCfg.SearchCount = cfg.Dialogue.WebResults
	dispatcher := actiondispatcher.NewHandler(dispatcherCfg, redmineClient, gatherer, catalogue, log)

	synthCfg := responsesynthesizer.LoadConfig()
	synthCfg.Model = genaiCfg.SynthesisModel
	synthCfg.Temperature = genaiCfg.Temperature
	synthCfg.MaxTokens = genaiCfg.MaxTokens
	synthesizer := responsesynthesizer.NewHandler(synthCfg, provider, log)

	loaderCfg := documentloader.LoadConfig()
	loaderCfg.ChunkSize = cfg.Dialogue.ChunkSize
	loaderCfg.ChunkOverlap = cfg.Dialogue.ChunkOverlap
	loader := documentloader.NewHandler(loaderCfg, index, retriever, log)

	mode, err := models.ParseMode(cfg.Dialogue.DefaultMode)
	if err != nil {
		obs.Shutdown()
		return nil, err
	}
	engine, err := orchestrator.NewEngine(&orchestrator.Config{
		TopK:        cfg.Dialogue.TopK,
		WebResults:  cfg.Dialogue.WebResults,
		DefaultMode: mode,
	}, orchestrator.Dependencies{
		Retriever:     retriever,
		Classifier:    classifier,
		Dispatcher:    dispatcher,
		Synthesizer:   synthesizer,
		Gatherer:      gatherer,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		obs.Shutdown()
		return nil, err
	}

	checks := []api.ReadinessCheck{indexCheck}
	if rmCfg.URL != "" {
		checks = append(checks, api.ReadinessCheck{Name: "redmine", Check: redmineClient.Ping})
	}

	log.Info("components initialized", map[string]interface{}{
		"vectorIndex": cfg.APIs.VectorIndex.Backend,
		"defaultMode": string(mode),
		"actions":     len(catalogue.Names()),
	})

	return &components{
		engine:          engine,
		retriever:       retriever,
		retrieverConfig: retrieverCfg,
		loader:          loader,
		obs:             obs,
		checks:          checks,
	}, nil
}

func (c *components) Close() {
	c.obs.Shutdown()
}

// newSessionStore opens the configured history backend, retrying the first
// connection.
func newSessionStore(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger) (session.Store, api.ReadinessCheck, error) {
	if cfg.Session.Backend == "redis" {
		rdb := database.NewRedis(cfg.Database.Redis, cfg.Session.KeyPrefix)
		err := retryWithBackoff(ctx, func() error {
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			rdb.Close()
			return nil, api.ReadinessCheck{}, err
		}
		zapLog.Info("Redis connected successfully")
		store := session.NewRedisStore(rdb, config.GetDuration(cfg.Session.TTL), log)
		return store, api.ReadinessCheck{Name: "redis", Check: rdb.Ping}, nil
	}

	var pg *database.PostgresClient
	err := retryWithBackoff(ctx, func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		return nil
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, api.ReadinessCheck{}, err
	}
	zapLog.Info("PostgreSQL connected successfully")

	store := session.NewPostgresStore(pg, log)
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, api.ReadinessCheck{}, fmt.Errorf("migrate session schema: %w", err)
	}
	return store, api.ReadinessCheck{Name: "postgres", Check: pg.Ping}, nil
}
