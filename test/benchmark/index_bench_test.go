// Package benchmark contains Go benchmarks for the three retrieval cores
// (EHASH, KDINDEX, IIDX) and the indexer engine that wires them together,
// measuring throughput and allocation behaviour.
package benchmark

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/sapj/retrieval-cores/internal/ehash"
	"github.com/sapj/retrieval-cores/internal/iidx"
	"github.com/sapj/retrieval-cores/internal/indexer"
	"github.com/sapj/retrieval-cores/internal/kdindex"
	"github.com/sapj/retrieval-cores/pkg/config"
)

// BenchmarkInvertedIndexAdd measures per-document insert throughput into
// the IIDX in-memory posting store.
func BenchmarkInvertedIndexAdd(b *testing.B) {
	idx := iidx.New(nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.AddDocument(int64(i), "this is a benchmark document with several terms for testing the indexing performance of our inverted index")
	}
}

// BenchmarkInvertedIndexQuery measures single-term lookup latency over
// 10 000 documents.
func BenchmarkInvertedIndexQuery(b *testing.B) {
	idx := iidx.New(nil)
	for i := 0; i < 10000; i++ {
		idx.AddDocument(int64(i), "distributed search engine with distributed indexing and query processing")
	}
	qp := iidx.NewQueryProcessor(idx)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results, err := qp.Evaluate("search")
		if err != nil {
			b.Fatal(err)
		}
		_ = results
	}
}

// BenchmarkInvertedIndexQueryParallel measures concurrent read throughput.
func BenchmarkInvertedIndexQueryParallel(b *testing.B) {
	idx := iidx.New(nil)
	for i := 0; i < 10000; i++ {
		idx.AddDocument(int64(i), "distributed search engine with distributed indexing and query processing")
	}
	qp := iidx.NewQueryProcessor(idx)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			results, err := qp.Evaluate("search")
			if err != nil {
				b.Fatal(err)
			}
			_ = results
		}
	})
}

// BenchmarkKDTreeBuild measures k-d tree build cost at varying corpus sizes.
func BenchmarkKDTreeBuild(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, n := range sizes {
		b.Run(fmt.Sprintf("points_%d", n), func(b *testing.B) {
			points := makePoints(n)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				tree, err := kdindex.Build(points)
				if err != nil {
					b.Fatal(err)
				}
				_ = tree
			}
		})
	}
}

// BenchmarkKDTreeKNN measures k-nearest-neighbour query latency over a
// pre-built tree of 10 000 points.
func BenchmarkKDTreeKNN(b *testing.B) {
	tree, err := kdindex.Build(makePoints(10000))
	if err != nil {
		b.Fatal(err)
	}
	query := kdindex.Point{0.5, 0.5, 0.5, 0.5}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		neighbors, err := tree.KNN(query, 10)
		if err != nil {
			b.Fatal(err)
		}
		_ = neighbors
	}
}

func makePoints(n int) []kdindex.Point {
	points := make([]kdindex.Point, n)
	for i := range points {
		points[i] = kdindex.Point{
			float64(i % 97), float64(i % 31), float64(i % 53), float64(i % 13),
		}
	}
	return points
}

// BenchmarkEhashInsert measures per-record insert throughput into an EHASH
// store, including the fsync-per-mutation persistence cost.
func BenchmarkEhashInsert(b *testing.B) {
	store, err := ehash.Open(ehash.Options{
		DataDir:            filepath.Join(b.TempDir(), "ehash"),
		InitialGlobalDepth: 2,
		MaxBucketSize:      4096,
		KeyOf: func(record []byte) []byte {
			return record
		},
	})
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		record := []byte(fmt.Sprintf("record-%d-benchmark-payload", i))
		if err := store.Insert(record); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEngineIndex measures full engine indexing throughput (IIDX +
// EHASH + similarity tree) at various pre-loaded corpus sizes.
func BenchmarkEngineIndex(b *testing.B) {
	sizes := []int{100, 1000, 5000}
	for _, preload := range sizes {
		b.Run(fmt.Sprintf("preload_%d", preload), func(b *testing.B) {
			engine := newBenchEngine(b)
			defer engine.Close()

			for i := 0; i < preload; i++ {
				if err := engine.IndexDocument(int64(i), "preload doc", "preloading documents for benchmark warmup phase"); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				docID := int64(preload + i)
				err := engine.IndexDocument(docID, "benchmark title", "benchmark document body for measuring indexing throughput")
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkEngineQuery measures end-to-end boolean query latency across
// 10 000 documents.
func BenchmarkEngineQuery(b *testing.B) {
	engine := newBenchEngine(b)
	defer engine.Close()

	terms := []string{"distributed", "search", "analytics", "platform", "indexing", "query", "engine", "ranking"}
	for i := 0; i < 10000; i++ {
		title := fmt.Sprintf("document about %s and %s", terms[i%len(terms)], terms[(i+1)%len(terms)])
		body := fmt.Sprintf("this document covers %s %s %s in production systems",
			terms[i%len(terms)], terms[(i+2)%len(terms)], terms[(i+3)%len(terms)])
		if err := engine.IndexDocument(int64(i), title, body); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results, err := engine.Query(terms[i%len(terms)])
		if err != nil {
			b.Fatal(err)
		}
		_ = results
	}
}

func newBenchEngine(b *testing.B) *indexer.Engine {
	b.Helper()
	dataDir := b.TempDir()
	cfg := config.IndexerConfig{DataDir: dataDir, FlushInterval: 0}
	ehashCfg := config.EhashConfig{
		DataDir:            filepath.Join(dataDir, "ehash"),
		InitialGlobalDepth: 2,
		MaxBucketSize:      4096,
	}
	iidxCfg := config.IIDXConfig{
		IndexPath:      filepath.Join(dataDir, "index.sapj"),
		SnapshotPeriod: 0,
	}
	engine, err := indexer.NewEngine(cfg, ehashCfg, iidxCfg)
	if err != nil {
		b.Fatal(err)
	}
	return engine
}
