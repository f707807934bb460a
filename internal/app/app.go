// Package app assembles the components shared by the server, the worker and
// the command line tool from one Config.
package app

import (
	"context"
	"fmt"
	"time"

	"pythagorean/internal/config"
	"pythagorean/internal/extract"
	"pythagorean/internal/ingest"
	"pythagorean/internal/logger"
	"pythagorean/internal/providers"
	"pythagorean/internal/rag"
	"pythagorean/internal/retrieval"
	"pythagorean/internal/storage"
	"pythagorean/internal/vector"

	"go.uber.org/zap"
)

type App struct {
	Config    config.Config
	Log       *zap.Logger
	DB        *storage.DB
	Store     storage.Store
	Providers *providers.Manager
	Engine    *vector.Engine
	Pipeline  *ingest.Pipeline
	Retriever *retrieval.Retriever
	RAG       *rag.Orchestrator
}

// New opens the configured backends. Postgres is only dialed when the store
// or the index lives there; the schema is applied on connect.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)
	a := &App{Config: cfg, Log: log}
	if cfg.StoreBackend == config.StorePostgres || cfg.IndexBackend == config.IndexPostgres {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := storage.NewDB(dialCtx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := storage.Migrate(dialCtx, db); err != nil {
			db.Close()
			return nil, err
		}
		a.DB = db
	}

	if cfg.StoreBackend == config.StorePostgres {
		a.Store = storage.NewPostgresStore(a.DB)
	} else {
		a.Store = storage.NewMemoryStore()
	}

	backend, err := a.openBackend()
	if err != nil {
		a.Close()
		return nil, err
	}

	pm, err := providers.NewManager(cfg, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("providers: %w", err)
	}
	a.Providers = pm
	a.Engine = vector.NewEngine(backend, pm, vector.Options{
		Dimension:   cfg.EmbedDim,
		BatchSize:   cfg.EmbedBatchSize,
		Concurrency: cfg.IndexConcurrency,
	}, log.Named("index"))
	a.Pipeline = ingest.New(extract.New(), a.Engine, ingest.Options{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	}, log.Named("ingest"))
	a.Retriever = retrieval.New(a.Engine, retrieval.Options{
		TopN:        cfg.CollectionTopN,
		Concurrency: cfg.RetrievalConcurrency,
	}, log.Named("retrieval"))
	a.RAG = rag.New(a.Retriever, pm, rag.Options{
		TopK:      cfg.RetrievalTopK,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.CompletionTimeout,
	}, log.Named("rag"))

	llms, embeds := pm.Names()
	log.Info("components ready",
		zap.String("store", cfg.StoreBackend),
		zap.String("index", cfg.IndexBackend),
		zap.Strings("llm_providers", llms),
		zap.Strings("embed_providers", embeds),
	)
	return a, nil
}

func (a *App) openBackend() (vector.Backend, error) {
	switch a.Config.IndexBackend {
	case config.IndexPostgres:
		return vector.NewPGBackend(a.DB.Pool), nil
	case config.IndexChromem:
		return vector.OpenChromemBackend(a.Config.ChromemPath, a.Log.Named("chromem"))
	default:
		return vector.NewChromemBackend(a.Log.Named("chromem")), nil
	}
}

func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
