// Package ranker reorders a boolean query's result set by recency. It
// deliberately lives outside internal/iidx: IIDX's evaluator only ever
// returns an unordered, sorted-by-doc_id match set, and ranking a global
// document ordering on top of that is this package's entire job.
package ranker

import (
	"sort"
	"time"
)

// RankedDoc is a single boolean-query match, carrying the recency signal it
// was ordered by.
type RankedDoc struct {
	DocID     int64     `json:"doc_id"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Rank reorders docIDs by recency, most recent first, and truncates to
// limit (0 or negative means no limit). recency maps a doc_id to its
// catalog created_at; a doc_id absent from recency (for example, a catalog
// read racing a still-in-flight index reload) sorts last, using the zero
// time.
func Rank(docIDs []int64, recency map[int64]time.Time, limit int) []RankedDoc {
	result := make([]RankedDoc, 0, len(docIDs))
	for _, id := range docIDs {
		result = append(result, RankedDoc{DocID: id, IndexedAt: recency[id]})
	}
	sort.Slice(result, func(i, j int) bool {
		ti, tj := result[i].IndexedAt, result[j].IndexedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return result[i].DocID < result[j].DocID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
