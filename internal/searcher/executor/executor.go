// Package executor runs boolean queries against IIDX, single-shard or
// fanned out across every shard.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sapj/retrieval-cores/internal/indexer"
	"github.com/sapj/retrieval-cores/internal/searcher/ranker"
)

// SearchResult is a query's outcome: the matching doc_ids, recency-ranked
// and truncated to the caller's limit.
type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.RankedDoc `json:"results"`
}

// Executor runs a boolean query against a single shard's Engine.
type Executor struct {
	engine *indexer.Engine
	logger *slog.Logger
}

// New creates an Executor over a single-shard Engine.
func New(engine *indexer.Engine) *Executor {
	return &Executor{
		engine: engine,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute evaluates query against the shard's inverted index and returns
// the matching doc_ids, sorted ascending.
func (e *Executor) Execute(ctx context.Context, query string) ([]int64, error) {
	ids, err := e.engine.Query(query)
	if err != nil {
		return nil, fmt.Errorf("evaluating query %q: %w", query, err)
	}
	e.logger.Debug("query executed", "query", query, "hits", len(ids))
	return ids, nil
}
