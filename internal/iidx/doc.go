// Package iidx implements IIDX, an inverted-index engine over pForDelta-
// compressed posting lists with block-aligned skip pointers, a boolean
// (AND/OR/NOT, parenthesised) query language evaluated by Shunting-Yard, and
// a binary on-disk format (magic "SAPJ").
//
// Text normalisation and tokenisation live in normalize.go; the pForDelta
// bit-packing codec and skip-pointer builder live in codec.go and
// skiplist.go; InvertedIndex (index.go) owns the term → postings map under a
// single read/write lock, with QueryProcessor (query.go) as its read-only
// query surface; StorageManager (storage.go) persists and reloads the index
// map and skip pointers.
//
// IIDX performs no ranking and no deletion, per spec.md §1's explicit
// non-goals: it is boolean retrieval only, and a posting list only grows.
package iidx
