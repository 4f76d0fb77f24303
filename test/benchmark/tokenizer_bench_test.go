package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sapj/retrieval-cores/internal/iidx"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Distributed search engines process queries across multiple shards to achieve
        horizontal scalability. Each shard maintains its own inverted index and responds
        to queries independently. Results are merged using a sorted union of doc_ids
        across the shards queried. This architecture enables sub-second query latency
        even with billions of documents spread across hundreds of nodes.`,
	"long": strings.Repeat(`Information retrieval systems form the backbone of modern search
        infrastructure. The inverted index maps each term to the sorted doc_ids
        containing it, pForDelta-compressed with skip pointers for fast intersection.
        Boolean queries are parsed with a shunting-yard algorithm into postfix form,
        then evaluated as intersections, unions, and complements over those doc_id
        sets. Caching layers reduce latency for repeated queries while an on-disk hash
        store serves the raw document blobs behind every hit. `, 20),
}

// BenchmarkNormalize measures normalization throughput (ASCII lowercase,
// punctuation strip, whitespace collapse) across input sizes.
func BenchmarkNormalize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				normalized := iidx.Normalize(text)
				_ = normalized
			}
		})
	}
}

// BenchmarkTokenize measures normalize-then-split throughput.
func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				tokens := iidx.Tokenize(text)
				_ = tokens
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tokens := iidx.Tokenize(text)
			_ = tokens
		}
	})
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	sizes := []int{10, 100, 500, 1000, 5000}
	baseWord := "distributed search analytics platform indexing "
	for _, size := range sizes {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				tokens := iidx.Tokenize(text)
				_ = tokens
			}
		})
	}
}
