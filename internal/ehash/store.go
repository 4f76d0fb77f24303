package ehash

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cespare/xxhash/v2"

	apperrors "github.com/sapj/retrieval-cores/pkg/errors"
	"github.com/sapj/retrieval-cores/pkg/resilience"
)

// Store is the public EHASH API: a directory of block-aligned bucket files,
// addressed by an extensible hash directory over a caller-supplied key
// extractor. See spec.md §4.1 for the full insert/split protocol.
type Store struct {
	dir    *directory
	keyOf  KeyFunc
	logger *slog.Logger
}

// Options configures a new or reopened Store.
type Options struct {
	// DataDir holds the directory manifest and bucket_<id>.dat files.
	DataDir string
	// InitialGlobalDepth sizes a freshly created store to 2^depth buckets.
	// Ignored when reopening a store with an existing manifest.
	InitialGlobalDepth int
	// MaxBucketSize is the fixed size, in bytes, of every bucket file. The
	// caller is responsible for rounding it to a filesystem block multiple,
	// per spec.md §3's "max_bucket_size rounded up to a filesystem block
	// multiple" — EHASH itself only requires a positive size.
	MaxBucketSize int64
	// KeyOf extracts the key bytes from an opaque record.
	KeyOf KeyFunc
	// Logger receives operational messages. A nil Logger falls back to
	// slog.Default(), per SPEC_FULL.md's ambient-stack logging section.
	Logger *slog.Logger
}

// Open creates a new store (if opts.DataDir is empty or absent) or reopens
// an existing one (if a directory manifest is present).
func Open(opts Options) (*Store, error) {
	if opts.KeyOf == nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "ehash.Open: KeyOf is required", nil)
	}
	if opts.MaxBucketSize <= lengthPrefixSize {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "ehash.Open: MaxBucketSize too small", nil)
	}
	if opts.InitialGlobalDepth < 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "ehash.Open: InitialGlobalDepth must be >= 0", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "ehash")
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrIo, "creating ehash data directory", err)
	}

	hashFn := func(key []byte) uint64 { return xxhash.Sum64(key) }
	dir, err := openDirectory(opts.DataDir, opts.InitialGlobalDepth, opts.MaxBucketSize, hashFn, opts.KeyOf, logger)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, keyOf: opts.KeyOf, logger: logger}, nil
}

// Insert adds or replaces a record, per spec.md §4.1's insert protocol:
// update in place on an exact hash match, append if the target bucket has
// room, otherwise split (doubling the directory first if necessary) and
// retry. Retries are bounded by maxSplitRetries; exhausting them returns
// ErrUnsplittable.
func (s *Store) Insert(record []byte) error {
	return s.InsertContext(context.Background(), record)
}

// InsertContext is Insert with an explicit context, used to bound the retry
// backoff applied around each bucket persist (transient I/O errors only —
// logical conditions like ErrRecordTooLarge are never retried).
func (s *Store) InsertContext(ctx context.Context, record []byte) error {
	key := s.keyOf(record)
	h := xxhash.Sum64(key)

	s.dir.mu.Lock()
	defer s.dir.mu.Unlock()

	if !fitsAnyBucket(record, s.dir.maxBucketSize) {
		return apperrors.Wrap(apperrors.ErrRecordTooLarge,
			fmt.Sprintf("record of %d bytes exceeds max bucket size %d", len(record), s.dir.maxBucketSize), nil)
	}

	for attempt := 0; ; attempt++ {
		slot := s.dir.slotFor(h)
		id := s.dir.slots[slot]
		ref := s.dir.arena.get(id)
		bucket := ref.bucket

		if bucket.contains(h) {
			bucket.upsert(h, record)
			return s.persistBucket(ctx, bucket)
		}
		if bucket.fits(len(record)) {
			bucket.append(h, record)
			return s.persistBucket(ctx, bucket)
		}
		if attempt >= maxSplitRetries {
			return apperrors.Wrap(apperrors.ErrUnsplittable,
				"exceeded maximum split retries; all colliding records share every hash bit observed", nil)
		}
		if err := s.dir.split(id, ref.rootIndex); err != nil {
			return err
		}
	}
}

// fitsAnyBucket reports whether a record could ever be stored, independent
// of current bucket occupancy.
func fitsAnyBucket(record []byte, maxBucketSize int64) bool {
	return int64(lengthPrefixSize+len(record)) <= maxBucketSize
}

// persistBucket flushes a dirty bucket to disk, retrying transient I/O
// failures via pkg/resilience.
func (s *Store) persistBucket(ctx context.Context, b *Bucket) error {
	return resilience.Retry(ctx, "ehash-bucket-persist", resilience.RetryConfig{}, b.persist)
}

// Find returns the record stored under hash h, if any, per spec.md §4.1's
// lookup semantics: "find(h) returns the record at directory slot
// low_bits(h, global_depth) whose in-memory hash map contains h."
func (s *Store) Find(h uint64) ([]byte, bool) {
	s.dir.mu.RLock()
	defer s.dir.mu.RUnlock()
	slot := s.dir.slotFor(h)
	bucket := s.dir.arena.get(s.dir.slots[slot]).bucket
	return bucket.find(h)
}

// HashKey hashes a record's key the same way Insert/Find do, so callers can
// compute the h to pass to Find/GetEntries from a key alone.
func (s *Store) HashKey(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// GetEntries returns every record in the bucket that would host hash h,
// useful for iteration (spec.md §4.1).
func (s *Store) GetEntries(h uint64) [][]byte {
	s.dir.mu.RLock()
	defer s.dir.mu.RUnlock()
	slot := s.dir.slotFor(h)
	bucket := s.dir.arena.get(s.dir.slots[slot]).bucket
	entries := bucket.all()
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.record
	}
	return out
}

// Stats summarises the directory for diagnostics and tests.
type Stats struct {
	GlobalDepth int
	NumSlots    int
	NumBuckets  int
}

// Stats reports the current directory shape.
func (s *Store) Stats() Stats {
	s.dir.mu.RLock()
	defer s.dir.mu.RUnlock()
	seen := make(map[BucketID]struct{})
	for _, id := range s.dir.slots {
		seen[id] = struct{}{}
	}
	return Stats{
		GlobalDepth: s.dir.globalDepth,
		NumSlots:    len(s.dir.slots),
		NumBuckets:  len(seen),
	}
}

// CheckInvariants verifies the directory invariants from spec.md §8:
// |directory| == 2^global_depth, every local_depth <= global_depth, and
// every bucket's root index equals the smallest directory slot referencing
// it. It is exported for tests and for operational health checks.
func (s *Store) CheckInvariants() error {
	s.dir.mu.RLock()
	defer s.dir.mu.RUnlock()

	if len(s.dir.slots) != 1<<uint(s.dir.globalDepth) {
		return apperrors.Wrap(apperrors.ErrDirectoryCorrupt,
			fmt.Sprintf("directory has %d slots, want 2^%d", len(s.dir.slots), s.dir.globalDepth), nil)
	}
	rootIndex := make(map[BucketID]int)
	for i, id := range s.dir.slots {
		if _, ok := rootIndex[id]; !ok {
			rootIndex[id] = i
		}
		ref := s.dir.arena.get(id)
		if ref.localDepth > s.dir.globalDepth {
			return apperrors.Wrap(apperrors.ErrDirectoryCorrupt,
				fmt.Sprintf("bucket %d has local depth %d > global depth %d", id, ref.localDepth, s.dir.globalDepth), nil)
		}
	}
	for id, root := range rootIndex {
		ref := s.dir.arena.get(id)
		if ref.rootIndex != root {
			return apperrors.Wrap(apperrors.ErrDirectoryCorrupt,
				fmt.Sprintf("bucket %d root index %d, want %d", id, ref.rootIndex, root), nil)
		}
	}
	return nil
}

// Close flushes nothing by itself (buckets persist on every mutation); it
// exists so Store satisfies the lifecycle shape the rest of the module's
// service layer expects (io.Closer-like, no-arg, idempotent).
func (s *Store) Close() error {
	return nil
}
