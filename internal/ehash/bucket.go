package ehash

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	apperrors "github.com/sapj/retrieval-cores/pkg/errors"
)

// lengthPrefixSize is the size in bytes of the u32 length prefix written
// before every record in a bucket file.
const lengthPrefixSize = 4

// KeyFunc extracts the key bytes from an opaque record. The store hashes
// the returned bytes to decide which bucket a record belongs to.
type KeyFunc func(record []byte) []byte

// entry is one record held in a bucket's in-memory state.
type entry struct {
	hash   uint64
	record []byte
}

// Bucket is a fixed-size, block-aligned on-disk file holding a
// length-prefixed sequence of records followed by zero padding. It mirrors
// spec.md §3's Bucket data model: a hash map from h -> record consistent
// with the entries list, and a dirty flag set iff in-memory state diverges
// from what is on disk.
type Bucket struct {
	path    string
	maxSize int64

	entries []entry
	byHash  map[uint64]int // hash -> index into entries
	used    int64          // bytes currently occupied by entries (excludes padding)
	dirty   bool

	hashFn func([]byte) uint64
	keyOf  KeyFunc
	logger *slog.Logger
}

// openOrCreateBucket opens an existing bucket file at path, or creates a new
// zero-filled one of exactly maxSize bytes if none exists.
func openOrCreateBucket(path string, maxSize int64, hashFn func([]byte) uint64, keyOf KeyFunc, logger *slog.Logger) (*Bucket, error) {
	b := &Bucket{
		path:    path,
		maxSize: maxSize,
		byHash:  make(map[uint64]int),
		hashFn:  hashFn,
		keyOf:   keyOf,
		logger:  logger,
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := b.createEmpty(); err != nil {
			return nil, err
		}
		return b, nil
	case err != nil:
		return nil, apperrors.Wrap(apperrors.ErrIo, fmt.Sprintf("reading bucket file %s", path), err)
	}

	if int64(len(data)) != maxSize {
		return nil, apperrors.Wrap(apperrors.ErrDirectoryCorrupt,
			fmt.Sprintf("bucket file %s has length %d, want %d", path, len(data), maxSize), nil)
	}
	if err := b.parse(data); err != nil {
		return nil, err
	}
	return b, nil
}

// createEmpty writes a new all-zero bucket file of exactly maxSize bytes.
func (b *Bucket) createEmpty() error {
	f, err := os.Create(b.path)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrIo, fmt.Sprintf("creating bucket file %s", b.path), err)
	}
	defer f.Close()
	if err := f.Truncate(b.maxSize); err != nil {
		return apperrors.Wrap(apperrors.ErrIo, fmt.Sprintf("sizing bucket file %s", b.path), err)
	}
	return nil
}

// parse reads length-prefixed records from data until a zero length prefix
// (padding) or the end of the buffer is reached, per spec.md §4.1's on-disk
// format: "On open, entries are read until length == 0 is encountered or
// max_bucket_size is reached."
func (b *Bucket) parse(data []byte) error {
	offset := int64(0)
	for offset+lengthPrefixSize <= b.maxSize {
		length := binary.LittleEndian.Uint32(data[offset : offset+lengthPrefixSize])
		if length == 0 {
			break
		}
		recStart := offset + lengthPrefixSize
		recEnd := recStart + int64(length)
		if recEnd > b.maxSize {
			return apperrors.Wrap(apperrors.ErrDirectoryCorrupt,
				fmt.Sprintf("bucket file %s: record overruns bucket bound", b.path), nil)
		}
		record := make([]byte, length)
		copy(record, data[recStart:recEnd])
		h := b.hashFn(b.keyOf(record))
		b.byHash[h] = len(b.entries)
		b.entries = append(b.entries, entry{hash: h, record: record})
		b.used += lengthPrefixSize + int64(length)
		offset = recEnd
	}
	return nil
}

// fits reports whether a record of the given length can be appended to this
// bucket without exceeding maxSize, alongside everything already present.
func (b *Bucket) fits(recordLen int) bool {
	return b.used+lengthPrefixSize+int64(recordLen) <= b.maxSize
}

// fitsEmpty reports whether a record of the given length could ever fit in
// an empty bucket of this capacity — used to distinguish RecordTooLarge
// (can never fit anywhere) from ordinary overflow (needs a split).
func (b *Bucket) fitsEmpty(recordLen int) bool {
	return lengthPrefixSize+int64(recordLen) <= b.maxSize
}

// contains reports whether a record with the given hash is already present.
func (b *Bucket) contains(h uint64) bool {
	_, ok := b.byHash[h]
	return ok
}

// find returns the record stored under hash h, if any.
func (b *Bucket) find(h uint64) ([]byte, bool) {
	idx, ok := b.byHash[h]
	if !ok {
		return nil, false
	}
	return b.entries[idx].record, true
}

// all returns every entry currently held by the bucket, for iteration during
// split redistribution or GetEntries.
func (b *Bucket) all() []entry {
	return b.entries
}

// upsert replaces the record stored under hash h in place.
func (b *Bucket) upsert(h uint64, record []byte) {
	idx := b.byHash[h]
	old := b.entries[idx].record
	b.used += int64(len(record)) - int64(len(old))
	b.entries[idx].record = record
	b.dirty = true
}

// append adds a new record under hash h. Callers must have already checked
// fits(len(record)).
func (b *Bucket) append(h uint64, record []byte) {
	b.byHash[h] = len(b.entries)
	b.entries = append(b.entries, entry{hash: h, record: record})
	b.used += lengthPrefixSize + int64(len(record))
	b.dirty = true
}

// clear empties the bucket's in-memory state. Used by the split protocol,
// which clears a bucket before re-appending the records it keeps (spec.md
// §4.1: "Updating B requires clearing it first, then re-appending the kept
// records").
func (b *Bucket) clear() {
	b.entries = b.entries[:0]
	b.byHash = make(map[uint64]int)
	b.used = 0
	b.dirty = true
}

// persist writes the bucket to disk via temp-file-then-rename if dirty,
// matching the teacher's atomic segment-write technique
// (internal/indexer/segment/writer.go) and spec.md §5's "individual bucket
// file rewrites are atomic via temp-file + rename."
func (b *Bucket) persist() error {
	if !b.dirty {
		return nil
	}
	tmpPath := b.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrIo, fmt.Sprintf("creating temp bucket file %s", tmpPath), err)
	}

	buf := make([]byte, b.maxSize)
	offset := int64(0)
	for _, e := range b.entries {
		binary.LittleEndian.PutUint32(buf[offset:offset+lengthPrefixSize], uint32(len(e.record)))
		offset += lengthPrefixSize
		copy(buf[offset:], e.record)
		offset += int64(len(e.record))
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return apperrors.Wrap(apperrors.ErrIo, fmt.Sprintf("writing bucket file %s", tmpPath), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return apperrors.Wrap(apperrors.ErrIo, fmt.Sprintf("syncing bucket file %s", tmpPath), err)
	}
	if err := f.Close(); err != nil {
		return apperrors.Wrap(apperrors.ErrIo, fmt.Sprintf("closing bucket file %s", tmpPath), err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		return apperrors.Wrap(apperrors.ErrIo, fmt.Sprintf("renaming bucket file %s", tmpPath), err)
	}
	b.dirty = false
	return nil
}

// count returns the number of records currently held.
func (b *Bucket) count() int {
	return len(b.entries)
}
