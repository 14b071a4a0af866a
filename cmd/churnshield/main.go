// ChurnShield AI - Customer churn prediction that deploys in 60 seconds.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/alerts"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/api"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/batch"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/bus"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/cache"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/classifier"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/encoder"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/model"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/repository"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("CHURNSHIELD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting churnshield",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("CHURNSHIELD_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	// Environment overrides
	if path := os.Getenv("DATABASE_PATH"); path != "" {
		cfg.Repository.SQLitePath = path
	}
	if path := os.Getenv("CHURNSHIELD_MODEL_PATH"); path != "" {
		cfg.Model.Path = path
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"model_path", cfg.Model.Path,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize HistoryStore
	store, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize history store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("history store initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Encoder
	enc := encoder.New(encoder.TelcoV1())
	slog.Info("feature encoder initialized", "encoding", enc.Encoding().Version)

	// Load the scoring artifact. A missing or corrupt artifact starts the
	// server degraded: health reports it and predictions return 503.
	var scorer model.Scorer
	ensemble, err := model.Load(cfg.Model.Path, enc.Encoding())
	if err != nil {
		slog.Warn("model artifact unavailable, starting degraded",
			"path", cfg.Model.Path,
			"error", err,
		)
	} else {
		scorer = ensemble
		slog.Info("model loaded",
			"version", ensemble.Version(),
			"accuracy", ensemble.Metrics().Accuracy,
		)
	}

	// Initialize Classifier with score memoization
	cls := classifier.New(scorer, cacheImpl)

	// Initialize Batch Processor
	batchProc := batch.New(enc, cls, store, 10)

	// Initialize Alert Engine with builtin rules
	alertEngine, err := alerts.NewEngine(10)
	if err != nil {
		slog.Error("failed to initialize alert engine", "error", err)
		os.Exit(1)
	}
	defer alertEngine.Close()
	if err := alertEngine.LoadRules(alerts.BuiltinRules()); err != nil {
		slog.Error("failed to load builtin alert rules", "error", err)
		os.Exit(1)
	}
	slog.Info("alert engine initialized", "rules_count", alertEngine.RulesCount())

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("CHURNSHIELD_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, store, enc, cls, alertEngine)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, api.Dependencies{
		Store:      store,
		Cache:      cacheImpl,
		Bus:        busImpl,
		Encoder:    enc,
		Classifier: cls,
		Batch:      batchProc,
		Model:      ensemble,
		Alerts:     alertEngine,
		Version:    Version,
	})

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("churnshield is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("churnshield shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║            🛡  CHURNSHIELD AI             ║")
	fmt.Println("  ║     Customer Churn Prediction Engine      ║")
	fmt.Println("  ║      Know who leaves before they do.      ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /predict           - Predict churn for one customer")
	fmt.Println("    POST /predict/batch     - Predict churn for a CSV of customers")
	fmt.Println("    GET  /history           - List prediction history")
	fmt.Println("    GET  /history/stats     - Aggregate history statistics")
	fmt.Println("    DELETE /history/{id}    - Delete one prediction")
	fmt.Println("    DELETE /history         - Clear prediction history")
	fmt.Println("    GET  /metrics           - Model training metrics")
	fmt.Println("    GET  /alerts/rules      - List alert rules")
	fmt.Println("    POST /alerts/rules      - Load a new alert rule")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println()
}
