package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sapj/retrieval-cores/internal/indexer"
	"github.com/sapj/retrieval-cores/internal/searcher/executor"
	"github.com/sapj/retrieval-cores/internal/searcher/ranker"
)

// BenchmarkQueryEvaluate measures the full Shunting-Yard parse-and-evaluate
// path for queries of varying boolean complexity against a single shard.
func BenchmarkQueryEvaluate(b *testing.B) {
	engine := newBenchEngine(b)
	defer engine.Close()

	terms := []string{"distributed", "search", "analytics", "platform", "indexing", "ranking", "caching", "sharding"}
	for i := 0; i < 2000; i++ {
		title := fmt.Sprintf("document about %s and %s", terms[i%len(terms)], terms[(i+1)%len(terms)])
		body := fmt.Sprintf("covers %s %s in production", terms[(i+2)%len(terms)], terms[(i+3)%len(terms)])
		if err := engine.IndexDocument(int64(i), title, body); err != nil {
			b.Fatal(err)
		}
	}

	queries := []struct {
		name  string
		query string
	}{
		{"simple", "distributed"},
		{"boolean_and", "search AND analytics AND platform"},
		{"boolean_or", "indexing OR caching OR ranking"},
		{"with_not", "distributed AND NOT monolithic"},
		{"complex", "(search AND ranking) OR (analytics AND NOT deprecated)"},
	}

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				results, err := engine.Query(q.query)
				if err != nil {
					b.Fatal(err)
				}
				_ = results
			}
		})
	}
}

// BenchmarkRecencyRank measures the outer recency-reordering pass at
// varying result-set sizes.
func BenchmarkRecencyRank(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, n := range sizes {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			docIDs := make([]int64, n)
			recency := make(map[int64]time.Time, n)
			base := time.Unix(1700000000, 0)
			for i := 0; i < n; i++ {
				docIDs[i] = int64(i)
				recency[int64(i)] = base.Add(time.Duration(i) * time.Second)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ranked := ranker.Rank(docIDs, recency, 10)
				_ = ranked
			}
		})
	}
}

// BenchmarkShardedExecutor exercises the sharded query executor with
// varying shard counts.
func BenchmarkShardedExecutor(b *testing.B) {
	shardCounts := []int{1, 4, 8}
	for _, numShards := range shardCounts {
		b.Run(fmt.Sprintf("shards_%d", numShards), func(b *testing.B) {
			engines := make(map[int]*indexer.Engine)
			for s := 0; s < numShards; s++ {
				engine := newBenchEngine(b)
				defer engine.Close()

				for d := 0; d < 1000; d++ {
					docID := int64(s*1000 + d)
					engine.IndexDocument(docID, "distributed search",
						"search analytics platform with distributed indexing and query ranking")
				}
				engines[s] = engine
			}

			exec := executor.NewSharded(engines)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				result, err := exec.Execute(context.Background(), "distributed search")
				if err != nil {
					b.Fatal(err)
				}
				_ = result
			}
		})
	}
}

// BenchmarkShardedExecutorParallel measures concurrent sharded search
// throughput across 8 shards.
func BenchmarkShardedExecutorParallel(b *testing.B) {
	engines := make(map[int]*indexer.Engine)
	for s := 0; s < 8; s++ {
		engine := newBenchEngine(b)
		defer engine.Close()

		for d := 0; d < 1000; d++ {
			docID := int64(s*1000 + d)
			engine.IndexDocument(docID, "distributed search analytics",
				"platform with distributed search indexing query processing and ranking engine")
		}
		engines[s] = engine
	}

	exec := executor.NewSharded(engines)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			result, err := exec.Execute(context.Background(), "distributed search")
			if err != nil {
				b.Fatal(err)
			}
			_ = result
		}
	})
}
