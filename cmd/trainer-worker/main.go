// trainer-worker consumes train jobs from the queue and drives each run
// through its lifecycle: status, heartbeats, events, upload, cleanup.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trainer/internal/artifact"
	"trainer/internal/cleanup"
	"trainer/internal/config"
	"trainer/internal/dispatcher"
	"trainer/internal/event"
	"trainer/internal/health"
	"trainer/internal/observability"
	"trainer/internal/queue"
	"trainer/internal/run"
	"trainer/internal/worker"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := runWorker(); err != nil {
		slog.Error("Worker failed", "error", err)
		os.Exit(1)
	}
}

func runWorker() error {
	ctx := context.Background()

	cfg := config.LoadWorkerConfig()
	dispatcherCfg := dispatcher.LoadConfigFromEnv()

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Shared state store
	store, err := run.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("Connected to state store")

	// Job queue on the same Redis
	jobs, err := queue.NewRedisQueue(cfg.RedisURL, cfg.QueueKey)
	if err != nil {
		return err
	}
	defer jobs.Close()

	// Event publishing, disabled when no callback URL is configured
	eventDispatcher := dispatcher.NewMemory(dispatcherCfg, metrics)
	var publisher event.Publisher = event.NopPublisher{}
	if cfg.CallbackURL != "" {
		publisher = event.NewDispatcherPublisher(eventDispatcher, cfg.CallbackURL, cfg.CallbackKey)
		slog.Info("Event publishing enabled", "destination", cfg.CallbackURL)
	} else {
		slog.Warn("Event publishing disabled - no CALLBACK_URL configured")
	}

	// Artifact upload, disabled when no endpoint is configured
	var uploader artifact.Uploader
	if cfg.UploadURL != "" {
		uploader = artifact.NewHTTPUploader(cfg.UploadURL, config.GetSecretFile(config.GetEnv("UPLOAD_KEY_FILE", "")))
		slog.Info("Artifact upload enabled", "url", cfg.UploadURL)
	} else {
		slog.Warn("Artifact upload disabled - no UPLOAD_URL configured")
	}

	// Post-run cleanup follows the maintenance settings
	maintCfg := config.DefaultMaintenanceConfig()
	cleaner := cleanup.NewEngine(maintCfg.Cleanup, store, metrics)

	runner := worker.NewRunner(worker.Config{
		Store:             store,
		Publisher:         publisher,
		Trainer:           &worker.SimulatedTrainer{},
		Uploader:          uploader,
		Cleaner:           cleaner,
		Metrics:           metrics,
		ArtifactsRoot:     cfg.ArtifactsRoot,
		HeartbeatInterval: cfg.HeartbeatInterval,
	})

	healthChecker := health.NewChecker(store)

	// Metrics and probe server
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, healthChecker.Liveness(r.Context()))
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		response := healthChecker.Readiness(r.Context())
		if !response.IsHealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		writeJSON(w, response)
	})
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting metrics server", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Consume jobs until shutdown
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = runner.Run(loopCtx, jobs)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("Metrics server failed", "error", err)
	}

	// Phase 1: flip readiness and stop taking jobs. The in-flight run keeps
	// going until its next cancel checkpoint or completion.
	healthChecker.SetShuttingDown()
	stopLoop()

	select {
	case <-loopDone:
	case <-time.After(30 * time.Second):
		slog.Warn("Run loop did not stop in time")
	}

	// Phase 2: stop the metrics server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Metrics server shutdown error", "error", err)
	}

	// Phase 3: drain the event dispatcher
	slog.Info("Draining event dispatcher")
	dispatcherCtx, dispatcherCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dispatcherCancel()
	if err := eventDispatcher.Close(dispatcherCtx); err != nil {
		slog.Warn("Dispatcher shutdown error", "error", err)
	}

	stats := eventDispatcher.Stats()
	slog.Info("Dispatcher stats",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)

	slog.Info("Shutdown complete")
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
