package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/replaystack/incident-replay/internal/airesolve"
	"github.com/replaystack/incident-replay/internal/api/anthropic"
	"github.com/replaystack/incident-replay/internal/api/erpnext"
	"github.com/replaystack/incident-replay/internal/config"
	"github.com/replaystack/incident-replay/internal/domain"
	"github.com/replaystack/incident-replay/internal/engine"
	"github.com/replaystack/incident-replay/internal/extract"
	"github.com/replaystack/incident-replay/internal/metrics"
	"github.com/replaystack/incident-replay/internal/rules"
	"github.com/replaystack/incident-replay/internal/server"
	"github.com/replaystack/incident-replay/internal/storage"
	"github.com/replaystack/incident-replay/internal/storage/memory"
	"github.com/replaystack/incident-replay/internal/storage/sqlite"
	"github.com/replaystack/incident-replay/internal/telemetry"
)

// ruleRegistry adapts *rules.Registry to engine.RuleRegistry, whose For
// method returns the structurally identical engine.Analyzer interface.
type ruleRegistry struct {
	*rules.Registry
}

func (r ruleRegistry) For(t domain.IncidentType) engine.Analyzer {
	return r.Registry.For(t)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("incident-replay", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	var store storage.IncidentStore
	switch cfg.Storage.Type {
	case "memory":
		store = memory.New()
	default:
		store, err = sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			log.Fatalf("Failed to open incident store: %v", err)
		}
	}
	defer store.Close()

	erpClient := erpnext.NewClient(cfg.ERPNext.BaseURL, cfg.ERPNext.APIToken,
		erpnext.WithTimeout(time.Duration(cfg.ERPNext.TimeoutSeconds)*time.Second))
	extractor := extract.New(erpClient, logger)

	aiClient := anthropic.NewClient(cfg.Anthropic.APIKey,
		anthropic.WithTimeout(time.Duration(cfg.Anthropic.TimeoutSeconds)*time.Second))
	resolver := airesolve.NewResolver(aiClient, cfg.Anthropic.Model, logger,
		airesolve.WithMaxTokens(cfg.Anthropic.MaxTokens))

	controller := engine.NewController(extractor, ruleRegistry{rules.NewRegistry()}, resolver, store, logger)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	defaultMode, ok := domain.ParseResolutionMode(cfg.Resolution.DefaultMode, domain.ModeRule)
	if !ok {
		log.Fatalf("Invalid resolution.default_mode: %q", cfg.Resolution.DefaultMode)
	}

	srv := server.New(cfg.Server.Port, logger)
	handler := server.NewIncidentHandler(store, controller, extractor, defaultMode)
	handler.Mount(srv.Router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("resolution engine starting",
		slog.String("storage", cfg.Storage.Type),
		slog.String("default_mode", string(defaultMode)))

	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
