package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pythagorean/internal/api"
	"pythagorean/internal/app"
	"pythagorean/internal/config"
	"pythagorean/internal/logger"
	"pythagorean/internal/workflows"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("init components", zap.Error(err))
	}
	defer a.Close()

	deps := api.Deps{
		Config:   cfg,
		Store:    a.Store,
		Pipeline: a.Pipeline,
		Index:    a.Engine,
		RAG:      a.RAG,
		Log:      lg.Named("api"),
	}
	if cfg.IngestMode == config.IngestTemporal {
		tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			lg.Fatal("dial temporal", zap.String("address", cfg.TemporalAddress), zap.Error(err))
		}
		defer tc.Close()
		deps.Dispatcher = workflows.NewDispatcher(tc, cfg.TemporalTaskQueue)
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(deps).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	lg.Info("pythagorean api listening",
		zap.String("addr", cfg.APIAddr),
		zap.String("ingest_mode", cfg.IngestMode),
		zap.String("llm_providers", cfg.LLMProviders),
		zap.String("embed_providers", cfg.EmbedProviders),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("serve", zap.Error(err))
	}
}
