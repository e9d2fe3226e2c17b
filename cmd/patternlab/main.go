// PatternLab analysis server — provides the HTTP API, manages queue workers,
// and orchestrates video pattern-analysis sessions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mediapulse/patternlab/pkg/api"
	"github.com/mediapulse/patternlab/pkg/classic"
	"github.com/mediapulse/patternlab/pkg/cleanup"
	"github.com/mediapulse/patternlab/pkg/config"
	"github.com/mediapulse/patternlab/pkg/events"
	"github.com/mediapulse/patternlab/pkg/llm"
	"github.com/mediapulse/patternlab/pkg/notify"
	"github.com/mediapulse/patternlab/pkg/orchestrator"
	"github.com/mediapulse/patternlab/pkg/queue"
	"github.com/mediapulse/patternlab/pkg/services"
	"github.com/mediapulse/patternlab/pkg/session"
	"github.com/mediapulse/patternlab/pkg/store"
	"github.com/mediapulse/patternlab/pkg/tool"
	"github.com/mediapulse/patternlab/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolvePodID determines the pod identifier used in worker names and logs.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	podID := resolvePodID()

	slog.Info("Starting PatternLab",
		"version", version.Full(),
		"pod_id", podID,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize database (runs embedded migrations)
	dbClient, err := store.NewClient(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	resultStore := store.NewResultStore(dbClient)

	// 3. Initialize streaming infrastructure
	eventPublisher := events.NewEventPublisher(dbClient.DB())
	connManager := events.NewConnectionManager(10 * time.Second)

	// Start NotifyListener (dedicated pgx connection for LISTEN)
	notifyListener := events.NewNotifyListener(dbClient.ConnString(), connManager)
	if err := notifyListener.Start(ctx); err != nil {
		slog.Error("Failed to start NotifyListener", "error", err)
		os.Exit(1)
	}
	defer notifyListener.Stop(ctx)

	// Wire listener ↔ manager bidirectional link
	connManager.SetListener(notifyListener)
	slog.Info("Streaming infrastructure initialized")

	// 4. Create LLM client
	llmClient, err := llm.NewTieredClient(cfg.LLM.ClientConfig())
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	slog.Info("LLM client initialized", "base_url", cfg.LLM.BaseURL)

	// 5. Register the analysis toolset
	registry := tool.NewRegistry()
	if err := orchestrator.RegisterBuiltins(registry, orchestrator.ToolServices{
		Search:     &services.StubSearchService{},
		Validation: &services.StubValidationService{},
		Metadata:   &services.StubMetadataService{},
	}); err != nil {
		slog.Error("Failed to register analysis tools", "error", err)
		os.Exit(1)
	}

	// 6. Create the orchestrator and session manager
	sessions := session.NewManager()
	orch, err := orchestrator.New(orchestrator.Deps{
		Registry:  registry,
		Sessions:  sessions,
		LLM:       llmClient,
		Classic:   classic.NewAnalyzer(slog.Default()),
		Persister: resultStore,
		Emitter:   events.NewBridge(eventPublisher, slog.Default()),
		Cache:     tool.NewCache(),
	})
	if err != nil {
		slog.Error("Failed to create orchestrator", "error", err)
		os.Exit(1)
	}

	// 7. Slack notifications (nil service disables them)
	notifier := notify.NewService(notify.ServiceConfig{
		Token:        cfg.Slack.Token(),
		Channel:      cfg.Slack.Channel,
		DashboardURL: cfg.DashboardURL,
	})
	if notifier != nil {
		slog.Info("Slack notifications enabled", "channel", cfg.Slack.Channel)
	}

	// 8. Start worker pool (before HTTP server)
	workerPool := queue.NewWorkerPool(podID, cfg.Queue, queue.NewOrchestratorExecutor(orch), notifier)
	if err := workerPool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	// 9. Start event retention sweeper
	retention := cleanup.NewService(cfg.Retention.EventTTL, cfg.Retention.CleanupInterval, resultStore)
	retention.Start(ctx)
	defer retention.Stop()

	// 10. Create HTTP server
	httpServer, err := api.NewServer(api.Deps{
		Pool:             workerPool,
		Sessions:         sessions,
		Results:          resultStore,
		ConnManager:      connManager,
		DB:               dbClient.DB(),
		DefaultConfig:    cfg.Orchestrator,
		AllowedWSOrigins: cfg.Server.AllowedWSOrigins,
	})
	if err != nil {
		slog.Error("Failed to create API server", "error", err)
		os.Exit(1)
	}

	// 11. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("PatternLab started successfully",
		"pod_id", podID,
		"workers", cfg.Queue.WorkerCount)

	// 12. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 13. Graceful shutdown: stop the pool first so in-flight sessions finish,
	// bounded by the session timeout plus slack for finalization.
	poolShutdownCtx, poolCancel := context.WithTimeout(ctx, cfg.Queue.SessionTimeout+30*time.Second)
	defer poolCancel()

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-poolShutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded, abandoning in-flight sessions")
	}

	// Stop HTTP server with its own timeout budget
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
