// Package similarity is KDINDEX's concrete home in the platform: each
// indexed document gets a small fixed-dimension feature vector, and a
// kdindex.Tree per shard answers "find documents shaped like this one"
// through k-NN. This is a separate, explicitly vector-based signal — it
// never feeds IIDX's boolean retrieval, which stays ranking-free.
package similarity

import (
	"time"

	"github.com/sapj/retrieval-cores/internal/kdindex"
)

// Dimensions is the fixed size of every feature vector produced by Vectorize.
const Dimensions = 4

// Vectorize computes a document's shape vector from its tokenized text and
// ingestion time:
//
//  1. document length, in tokens
//  2. distinct term count
//  3. repetition density: tokens per distinct term (1.0 means every term is
//     unique; higher means terms repeat more)
//  4. ingestion time bucketed to the hour, as a float64 Unix hour count
//
// Two documents with a similar shape (length, vocabulary breadth, term
// repetition, and recency) land near each other in this space.
func Vectorize(tokens []string, ingestedAt time.Time) kdindex.Point {
	distinct := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		distinct[t] = struct{}{}
	}
	distinctCount := len(distinct)

	density := 0.0
	if distinctCount > 0 {
		density = float64(len(tokens)) / float64(distinctCount)
	}

	hourBucket := float64(ingestedAt.Unix() / 3600)

	return kdindex.Point{
		float64(len(tokens)),
		float64(distinctCount),
		density,
		hourBucket,
	}
}
