// Package kdindex implements KDINDEX, an in-memory k-d tree supporting
// k-nearest-neighbour and radius range queries over fixed-dimension float
// vectors.
//
// Build partitions a point set by repeated median-split (an order-statistic
// selection per level, not a full sort, keeping the expected build cost
// linear per level). Insert descends with the usual less-than-axis rule and
// never rebalances, per spec.md §1's explicit non-goal. Queries prune
// subtrees using the same axis-aligned bound the build established.
//
// The tree is intended to be built once and read many times; Insert exists
// for incremental growth but the common path is Build-then-query, per
// spec.md §4.2's "immutable-after-build is the intended mode."
package kdindex
