package iidx

import (
	"log/slog"
	"sort"
	"sync"

	apperrors "github.com/sapj/retrieval-cores/pkg/errors"
)

// InvertedIndex maps terms to pForDelta-compressed posting lists and their
// skip pointers, guarded by a single read/write lock per spec.md §4.3's
// concurrency model: add_document/insert_term/insert_skips take the write
// side, get_postings/contains take the read side.
type InvertedIndex struct {
	mu             sync.RWMutex
	postings       map[string][]byte
	skips          map[string][]SkipPointer
	seenDocs       map[int64]struct{}
	totalDocuments int
	logger         *slog.Logger
}

// New creates an empty InvertedIndex. A nil logger falls back to
// slog.Default(), per SPEC_FULL.md's ambient-stack logging section.
func New(logger *slog.Logger) *InvertedIndex {
	if logger == nil {
		logger = slog.Default().With("component", "iidx")
	}
	return &InvertedIndex{
		postings: make(map[string][]byte),
		skips:    make(map[string][]SkipPointer),
		seenDocs: make(map[int64]struct{}),
		logger:   logger,
	}
}

// AddDocument tokenises text and inserts docID into every resulting term's
// posting list. Per SPEC_FULL.md's resolution of spec.md §9's open
// question, AddDocument is idempotent per doc_id: a doc_id seen before is a
// no-op, so total_documents and every posting list stay consistent with
// NOT's "universe \ x" semantics instead of double-counting.
func (idx *InvertedIndex) AddDocument(docID int64, text string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, seen := idx.seenDocs[docID]; seen {
		idx.logger.Debug("duplicate add_document ignored", "doc_id", docID)
		return nil
	}

	tokens := Tokenize(text)
	for _, term := range tokens {
		if err := idx.insertTermLocked(term, docID); err != nil {
			return err
		}
	}
	idx.seenDocs[docID] = struct{}{}
	idx.totalDocuments++
	return nil
}

// insertTermLocked decodes a term's current posting, binary-inserts docID in
// sorted order (a no-op on exact duplicates), re-encodes, and rebuilds the
// term's skip pointers. Caller must hold the write lock.
func (idx *InvertedIndex) insertTermLocked(term string, docID int64) error {
	current, err := DecodePosting(idx.postings[term])
	if err != nil {
		return err
	}
	updated, inserted := insertSortedUnique(current, docID)
	if !inserted {
		return nil
	}
	encoded, err := EncodePosting(updated)
	if err != nil {
		return err
	}
	skips, err := BuildSkipPointers(encoded)
	if err != nil {
		return err
	}
	idx.postings[term] = encoded
	idx.skips[term] = skips
	return nil
}

// insertSortedUnique inserts id into a sorted, duplicate-free slice,
// returning the (possibly unchanged) slice and whether an insert happened.
func insertSortedUnique(ids []int64, id int64) ([]int64, bool) {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return ids, false
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids, true
}

// GetPostings returns the sorted, duplicate-free doc_id list for a
// (lowercased) term, or an empty slice if the term is unknown, per spec.md
// §4.3's evaluator rule ("operand push: posting list of the term, empty if
// term unknown").
func (idx *InvertedIndex) GetPostings(term string) ([]int64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return DecodePosting(idx.postings[Normalize(term)])
}

// Contains reports whether a term has any posting at all.
func (idx *InvertedIndex) Contains(term string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.postings[Normalize(term)]
	return ok
}

// TotalDocuments returns the number of distinct documents added so far,
// used as NOT's universe bound ([1..total_documents]).
func (idx *InvertedIndex) TotalDocuments() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.totalDocuments
}

// Terms returns every term with a non-empty posting list, in no particular
// order. Used by StorageManager to enumerate the index for persistence.
func (idx *InvertedIndex) Terms() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	terms := make([]string, 0, len(idx.postings))
	for t := range idx.postings {
		terms = append(terms, t)
	}
	return terms
}

// rawPosting returns a term's compressed posting bytes and skip pointers
// exactly as stored, without decode/re-encode, for byte-for-byte
// persistence round-trips.
func (idx *InvertedIndex) rawPosting(term string) ([]byte, []SkipPointer) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.postings[term], idx.skips[term]
}

// loadSnapshot replaces the index's contents with previously persisted
// state. Used only by StorageManager.Load; the caller owns the returned
// index exclusively until this call returns.
func (idx *InvertedIndex) loadSnapshot(postings map[string][]byte, skips map[string][]SkipPointer, seenDocs map[int64]struct{}, totalDocuments int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.postings = postings
	idx.skips = skips
	idx.seenDocs = seenDocs
	idx.totalDocuments = totalDocuments
}

// checkInvariants verifies that every posting list is sorted and
// duplicate-free and that every skip pointer's recorded doc_id matches the
// first decoded doc_id of the block at its byte offset, per spec.md §8.
// It is unexported; the package's own tests call it.
func (idx *InvertedIndex) checkInvariants() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for term, compressed := range idx.postings {
		ids, err := DecodePosting(compressed)
		if err != nil {
			return err
		}
		for i := 1; i < len(ids); i++ {
			if ids[i] <= ids[i-1] {
				return apperrors.Wrap(apperrors.ErrNotStrictlyIncreasing,
					"iidx: posting list for term "+term+" is not sorted/duplicate-free", nil)
			}
		}
		skips, err := BuildSkipPointers(compressed)
		if err != nil {
			return err
		}
		stored := idx.skips[term]
		if len(stored) != len(skips) {
			return apperrors.Wrap(apperrors.ErrCorrupt, "iidx: stored skip pointer count drifted from rebuilt count for term "+term, nil)
		}
		for i := range skips {
			if stored[i] != skips[i] {
				return apperrors.Wrap(apperrors.ErrCorrupt, "iidx: stored skip pointer drifted from rebuilt value for term "+term, nil)
			}
		}
	}
	return nil
}
