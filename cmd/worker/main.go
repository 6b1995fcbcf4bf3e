package main

import (
	"context"
	"log"
	"time"

	"examsearch/internal/activities"
	"examsearch/internal/app"
	"examsearch/internal/config"
	"examsearch/internal/providers"
	"examsearch/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := cfg.NewLogger()
	if cfg.TemporalAddress == "" {
		log.Fatal("EXAMSEARCH_TEMPORAL_ADDRESS is required for the worker")
	}
	if cfg.ServiceAccessToken == "" {
		logger.Warn("EXAMSEARCH_SERVICE_ACCESS_TOKEN is empty; every rebuild will fail")
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(a.Manager, providers.Credentials{AccessToken: cfg.ServiceAccessToken}, logger))

	logger.Info("examsearch worker listening", "temporal", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue, "cache", cfg.CacheBackend)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
