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
	"github.com/sapj/retrieval-cores/internal/catalog"
	"github.com/sapj/retrieval-cores/internal/indexer/shard"
	"github.com/sapj/retrieval-cores/internal/searcher/cache"
	"github.com/sapj/retrieval-cores/internal/searcher/executor"
	"github.com/sapj/retrieval-cores/internal/searcher/handler"
	"github.com/sapj/retrieval-cores/pkg/config"
	"github.com/sapj/retrieval-cores/pkg/health"
	"github.com/sapj/retrieval-cores/pkg/kafka"
	"github.com/sapj/retrieval-cores/pkg/logger"
	"github.com/sapj/retrieval-cores/pkg/metrics"
	"github.com/sapj/retrieval-cores/pkg/middleware"
	"github.com/sapj/retrieval-cores/pkg/postgres"
	pkgredis "github.com/sapj/retrieval-cores/pkg/redis"
)

const numShards = 8

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "num_shards", numShards)
	promMetrics := metrics.New()
	router, err := shard.NewRouter(cfg.Indexer, cfg.Ehash, cfg.IIDX, numShards, promMetrics)
	if err != nil {
		slog.Error("failed to create shard router", "error", err)
		os.Exit(1)
	}
	defer router.Close()
	slog.Info("shard router initialized", "data_dir", cfg.Indexer.DataDir)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	cat := catalog.New(db)
	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var collector *analytics.Collector
	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	collector = analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	analyticsHandler := analytics.HandleEvent(nil)
	analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analyticsHandler)
	aggregator := analytics.NewAggregator(analyticsConsumer)
	analyticsHandler = analytics.HandleEvent(aggregator)
	analyticsConsumer = kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
	aggregator = analytics.NewAggregator(analyticsConsumer)
	analyticsH := analytics.NewHandler(aggregator)

	go func() {
		if err := aggregator.Start(ctx); err != nil {
			slog.Error("analytics aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started")

	checker := health.NewChecker()
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		if router.NumShards() > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d shards active", router.NumShards())}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "no shards"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	exec := executor.NewSharded(router.GetAllEngines())
	h := handler.New(exec, queryCache, cat, collector, cfg.Search.DefaultLimit, cfg.Search.MaxResults).
		WithTracing(cfg.Tracing.Enabled)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/related", relatedHandler(router, cat, cfg.KDIndex.DefaultK))
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Metrics(promMetrics)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// relatedHandler serves GET /api/v1/related?doc_id=N, backed by the
// requested document's shard's similarity index: a k-NN query over the
// k-d tree of feature vectors, per internal/similarity.
func relatedHandler(router *shard.Router, cat *catalog.Catalog, defaultK int) http.HandlerFunc {
	log := slog.Default().With("component", "related-handler")
	return func(w http.ResponseWriter, r *http.Request) {
		docIDStr := r.URL.Query().Get("doc_id")
		docID, err := strconv.ParseInt(docIDStr, 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "doc_id must be an integer")
			return
		}
		k := defaultK
		if kStr := r.URL.Query().Get("k"); kStr != "" {
			parsed, err := strconv.Atoi(kStr)
			if err != nil || parsed < 1 {
				writeJSONError(w, http.StatusBadRequest, "k must be a positive integer")
				return
			}
			k = parsed
		}

		rec, err := cat.Get(r.Context(), docID)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "document not found")
			return
		}
		engine, err := router.Route(rec.ShardID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "shard unavailable")
			return
		}
		title, body, err := engine.GetRecord(docID)
		if err != nil {
			log.Error("fetching document record failed", "doc_id", docID, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "fetching document failed")
			return
		}
		related, err := engine.Related(title, body, k)
		if err != nil {
			log.Error("related query failed", "doc_id", docID, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "related query failed")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"doc_id":  docID,
			"related": related,
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
