package main

import (
	"context"
	"log"

	"pythagorean/internal/activities"
	"pythagorean/internal/app"
	"pythagorean/internal/config"
	"pythagorean/internal/logger"
	"pythagorean/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	cfg.IngestMode = config.IngestTemporal
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		lg.Fatal("dial temporal", zap.String("address", cfg.TemporalAddress), zap.Error(err))
	}
	defer c.Close()

	a, err := app.New(context.Background(), cfg, lg)
	if err != nil {
		lg.Fatal("init components", zap.Error(err))
	}
	defer a.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(a.Pipeline, a.Engine, a.Store, lg.Named("activities")))

	lg.Info("pythagorean worker listening",
		zap.String("temporal", cfg.TemporalAddress),
		zap.String("queue", cfg.TemporalTaskQueue),
		zap.String("embed_providers", cfg.EmbedProviders),
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		lg.Fatal("worker", zap.Error(err))
	}
}
