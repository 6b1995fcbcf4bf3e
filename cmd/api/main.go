package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"examsearch/internal/api"
	"examsearch/internal/app"
	"examsearch/internal/config"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	a, err := app.New(startCtx, cfg, logger)
	cancel()
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()
	a.StartSweeper(ctx, 10*time.Minute)

	deps := api.Deps{Manager: a.Manager, Cache: a.Cache, Verifier: a.Verifier, Logger: logger}
	if cfg.TemporalAddress != "" {
		tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			log.Fatal(err)
		}
		defer tc.Close()
		deps.Temporal = tc
	}

	server := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(cfg, deps).Routes(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * cfg.HTTPTimeout(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down api")
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("examsearch api listening",
		"addr", cfg.APIAddr,
		"source", cfg.Source,
		"cache", cfg.CacheBackend,
		"async_rebuild", cfg.TemporalAddress != "",
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
