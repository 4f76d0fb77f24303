// Command analytics starts the standalone analytics aggregation service.
//
// It consumes search-analytics events from Kafka, aggregates them in memory
// (total queries, latency percentiles, cache hits and misses, zero-result
// queries, top queries),
// and exposes an HTTP API at GET /api/v1/analytics for dashboards.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sapj/retrieval-cores/internal/analytics"
	analyticsstore "github.com/sapj/retrieval-cores/internal/analytics/aggregator"
	"github.com/sapj/retrieval-cores/pkg/config"
	"github.com/sapj/retrieval-cores/pkg/health"
	"github.com/sapj/retrieval-cores/pkg/kafka"
	"github.com/sapj/retrieval-cores/pkg/logger"
	"github.com/sapj/retrieval-cores/pkg/middleware"
	"github.com/sapj/retrieval-cores/pkg/postgres"
)

// main boots the standalone analytics service: it creates a Kafka consumer for
// analytics events, starts the in-memory aggregator, registers a health checker,
// and serves the HTTP API. Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Kafka consumer for analytics events.
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, nil)
	aggregator := analytics.NewAggregator(consumer)

	// Re-create consumer with the actual handler now that aggregator exists.
	consumer = kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
	aggregator = analytics.NewAggregator(consumer)

	go func() {
		if err := aggregator.Start(ctx); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	// Periodic snapshot persistence to Postgres, so dashboards can chart
	// historical trends rather than only the current in-memory window.
	var snapshotStore *analyticsstore.Store
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, analytics snapshot history disabled", "error", err)
	} else {
		defer db.Close()
		snapshotStore = analyticsstore.NewStore(db)
		snapshotStore.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		slog.Info("analytics snapshot persistence started", "interval", cfg.Analytics.SnapshotInterval)
	}

	// HTTP API.
	analyticsHandler := analytics.NewHandler(aggregator)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if snapshotStore == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", snapshotHistoryHandler(snapshotStore))
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}

// snapshotHistoryHandler serves GET /api/v1/analytics/history?limit=N, the
// last N persisted aggregate snapshots, newest first. Returns an empty list
// rather than an error when snapshot persistence isn't configured.
func snapshotHistoryHandler(store *analyticsstore.Store) http.HandlerFunc {
	log := slog.Default().With("component", "analytics-history-handler")
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if store == nil {
			json.NewEncoder(w).Encode(map[string]any{"snapshots": []any{}})
			return
		}
		limit := 20
		if limStr := r.URL.Query().Get("limit"); limStr != "" {
			if parsed, err := strconv.Atoi(limStr); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		snapshots, err := store.ListSnapshots(r.Context(), limit)
		if err != nil {
			log.Error("listing analytics snapshots failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "listing snapshots failed"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"snapshots": snapshots})
	}
}
