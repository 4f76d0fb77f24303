package executor

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sapj/retrieval-cores/internal/indexer"
	"github.com/sapj/retrieval-cores/internal/searcher/merger"
)

// ShardedExecutor fans a boolean query out across every shard's Engine,
// concurrently, and merges the per-shard doc_id sets.
type ShardedExecutor struct {
	engines map[int]*indexer.Engine
	logger  *slog.Logger
}

// NewSharded creates a ShardedExecutor over a shard-ID-to-Engine map.
func NewSharded(engines map[int]*indexer.Engine) *ShardedExecutor {
	return &ShardedExecutor{
		engines: engines,
		logger:  slog.Default().With("component", "sharded-executor"),
	}
}

// Execute evaluates query on every shard concurrently and returns the
// merged, sorted, duplicate-free doc_id set.
func (se *ShardedExecutor) Execute(ctx context.Context, query string) ([]int64, error) {
	shardIDs := make([]int, 0, len(se.engines))
	engines := make([]*indexer.Engine, 0, len(se.engines))
	for id, eng := range se.engines {
		shardIDs = append(shardIDs, id)
		engines = append(engines, eng)
	}

	perShard := make([][]int64, len(engines))
	g, _ := errgroup.WithContext(ctx)
	for i, eng := range engines {
		i, eng := i, eng
		g.Go(func() error {
			docIDs, err := eng.Query(query)
			if err != nil {
				return fmt.Errorf("shard %d: %w", shardIDs[i], err)
			}
			perShard[i] = docIDs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sharded query fan-out: %w", err)
	}

	merged := merger.Merge(perShard)
	se.logger.Info("sharded query executed",
		"query", query,
		"shards_queried", len(engines),
		"hits", len(merged),
	)
	return merged, nil
}
