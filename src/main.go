package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"

	"wordwatch/src/features/config"
	"wordwatch/src/features/counting"
	"wordwatch/src/features/deadline"
	"wordwatch/src/features/hosting"
	"wordwatch/src/features/logging"
	"wordwatch/src/infra/texcount"
	"wordwatch/src/infra/watcher"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	// Load configuration
	cfgManager, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := cfgManager.Get()

	// Setup default logger with slog
	logger := logging.SetupLogger(cfgManager)
	slog.SetDefault(logger)

	ddl, err := deadline.Parse(cfg.Deadline)
	if err != nil {
		log.Fatalf("failed to parse deadline: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resolve the watch set and take initial counts; a configured file that
	// cannot be counted at startup is fatal.
	counter := texcount.NewService(cfg.Counter.Binary)
	registry := counting.NewRegistry()
	if err := registry.Init(ctx, cfg.Files, counter); err != nil {
		log.Fatalf("failed to initialize watched files: %v", err)
	}
	snapshot := registry.Snapshot()
	tracker := counting.NewTracker(snapshot.Total)
	slog.Info("Initial counts taken", "files", len(snapshot.Files), "total", snapshot.Total)

	promRegistry := prometheus.NewRegistry()
	metrics := counting.NewMetrics(promRegistry)
	metrics.SetInitial(snapshot)

	// Start the recompute engine and the filesystem bridge feeding it.
	engine := counting.NewEngine(registry, tracker, counter, counting.NewLogSink(), metrics, counting.EngineConfig{
		QueueSize:     cfg.Watcher.QueueSize,
		MaxConcurrent: cfg.Watcher.MaxConcurrent,
	})
	engine.Start(ctx)

	bridge, err := watcher.NewBridge(registry, engine.Events(), engine.Dirty(), metrics)
	if err != nil {
		log.Fatalf("failed to create file watcher: %v", err)
	}
	if err := bridge.Start(ctx); err != nil {
		log.Fatalf("failed to start file watcher: %v", err)
	}

	// Countdown to the deadline, refreshed once a second.
	countdown := deadline.NewCountdown(ddl)
	go countdown.Run(ctx)

	if cfg.Server.MetricsPort != 0 {
		go func() {
			if err := hosting.ServeMetrics(cfg.Server.MetricsPort, promRegistry); err != nil {
				slog.Error("metrics listener stopped", "error", err)
			}
		}()
	}

	// Create and start the HTTP server
	countingHandler := counting.NewHandler(registry, tracker, countdown, cfgManager)
	server := hosting.NewServer(cfgManager, countingHandler, countdown)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()
	slog.Info("Server started. Press Ctrl+C to shut down.", "port", cfg.Server.Port, "deadline", ddl)

	// Wait for a shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	slog.Info("Shutting down...")

	bridge.Stop()
	cancel()
	engine.Wait()

	if err := server.Shutdown(); err != nil {
		log.Fatalf("failed to shutdown server: %v", err)
	}
	slog.Info("Gracefully shut down.")
}
