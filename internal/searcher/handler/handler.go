package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sapj/retrieval-cores/internal/analytics"
	"github.com/sapj/retrieval-cores/internal/catalog"
	"github.com/sapj/retrieval-cores/internal/searcher/cache"
	"github.com/sapj/retrieval-cores/internal/searcher/executor"
	"github.com/sapj/retrieval-cores/internal/searcher/ranker"
	"github.com/sapj/retrieval-cores/pkg/logger"
	"github.com/sapj/retrieval-cores/pkg/middleware"
	"github.com/sapj/retrieval-cores/pkg/tracing"
)

// SearchExecutor evaluates a boolean query and returns the matching
// doc_ids, sorted ascending.
type SearchExecutor interface {
	Execute(ctx context.Context, query string) ([]int64, error)
}

// Handler serves the search HTTP endpoints.
type Handler struct {
	executor       SearchExecutor
	cache          *cache.QueryCache
	catalog        *catalog.Catalog
	collector      *analytics.Collector
	defaultLimit   int
	maxResults     int
	tracingEnabled bool
	logger         *slog.Logger
}

// New creates a search Handler. cat supplies recency for the outer,
// non-core ranking pass over IIDX's boolean result set.
func New(exec SearchExecutor, queryCache *cache.QueryCache, cat *catalog.Catalog, collector *analytics.Collector, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		catalog:      cat,
		collector:    collector,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// WithTracing enables per-request span logging of the query path (cache
// lookup, shard fan-out, recency ranking). Spans are logged via slog at the
// end of each request, so this is meant for local debugging, not
// steady-state production traffic.
func (h *Handler) WithTracing(enabled bool) *Handler {
	h.tracingEnabled = enabled
	return h
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var rootSpan *tracing.Span
	if h.tracingEnabled {
		ctx, rootSpan = tracing.StartSpan(ctx, "search", middleware.GetRequestID(ctx))
		defer func() {
			rootSpan.End()
			rootSpan.Log()
		}()
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	var result *executor.SearchResult
	var err error
	cacheHit := false

	compute := func() (*executor.SearchResult, error) {
		return h.runQuery(ctx, query, limit)
	}

	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, query, limit, compute)
	} else {
		result, err = compute()
	}

	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	latencyMs := time.Since(start).Milliseconds()

	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	if h.collector != nil {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}

		h.collector.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     query,
			TotalHits: result.TotalHits,
			Returned:  len(result.Results),
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

// runQuery evaluates the boolean query, then applies the outer recency
// ranking pass on top of IIDX's unordered result set.
func (h *Handler) runQuery(ctx context.Context, query string, limit int) (*executor.SearchResult, error) {
	execCtx := ctx
	var execSpan *tracing.Span
	if h.tracingEnabled {
		execCtx, execSpan = tracing.StartChildSpan(ctx, "executor.Execute")
	}
	docIDs, err := h.executor.Execute(execCtx, query)
	if execSpan != nil {
		execSpan.SetAttr("query", query)
		execSpan.End()
	}
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}

	var recency map[int64]time.Time
	if h.catalog != nil {
		recencyCtx := ctx
		var recencySpan *tracing.Span
		if h.tracingEnabled {
			recencyCtx, recencySpan = tracing.StartChildSpan(ctx, "catalog.RecencyOf")
		}
		recency, err = h.catalog.RecencyOf(recencyCtx, docIDs)
		if recencySpan != nil {
			recencySpan.End()
		}
		if err != nil {
			return nil, fmt.Errorf("fetching recency: %w", err)
		}
	}

	var rankSpan *tracing.Span
	if h.tracingEnabled {
		_, rankSpan = tracing.StartChildSpan(ctx, "ranker.Rank")
	}
	ranked := ranker.Rank(docIDs, recency, limit)
	if rankSpan != nil {
		rankSpan.SetAttr("ranked_count", len(ranked))
		rankSpan.End()
	}

	return &executor.SearchResult{
		Query:     query,
		TotalHits: len(docIDs),
		Results:   ranked,
	}, nil
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
