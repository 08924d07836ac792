package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/wholesale-finder/internal/api"
	"github.com/maltedev/wholesale-finder/internal/app"
	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/maltedev/wholesale-finder/internal/jobs"
	"github.com/maltedev/wholesale-finder/internal/queue"
	"github.com/maltedev/wholesale-finder/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	// Single worker so queued lookups share the site's courtesy delay
	taskQueue := queue.NewInMemoryQueue(cfg.Server.QueueSize)
	jobManager := jobs.NewManager(taskQueue, pipeline.Finder, log)
	go jobManager.StartWorker(ctx)

	deps := api.Deps{
		Site:    cfg.Site,
		Scraper: pipeline.Scraper,
		Search:  pipeline.Search,
		Finder:  pipeline.Finder,
		Jobs:    jobManager,
	}
	if pipeline.Amazon != nil {
		deps.Amazon = pipeline.Amazon
	}
	if pipeline.Shopping != nil {
		deps.Shopping = pipeline.Shopping
	}
	handlers := api.NewHandlers(deps, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handlers, cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server...")
		taskQueue.Close()
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "port", cfg.Server.Port, "site", cfg.Site.Name)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
