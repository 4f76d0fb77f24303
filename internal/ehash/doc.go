// Package ehash implements EHASH, an extensible-hashing on-disk key/record
// store with dynamic directory doubling and block-aligned bucket files.
//
// Records are opaque byte blobs; callers supply a KeyFunc that extracts a key
// from a record. A 64-bit content hash of the key (xxhash, already part of
// this module's dependency graph transitively through Prometheus, promoted
// here to a direct dependency) selects a directory slot, which in turn names
// the bucket file holding the record. When a bucket fills, it is split: its
// records are redistributed between itself and a sibling bucket according to
// one additional bit of the hash, doubling the directory first if every
// available hash bit is already exhausted at the current depth.
//
// Single-writer, multi-reader: the directory's RWMutex is held for reads on
// Find/GetEntries and for writes during Insert (which may itself trigger one
// or more splits). Buckets have no lock of their own, so while an Insert
// runs, reads of every bucket wait for it, not only reads of the bucket it
// writes.
package ehash
