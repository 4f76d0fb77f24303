package iidx

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"os"

	apperrors "github.com/sapj/retrieval-cores/pkg/errors"
)

// magic identifies a valid IIDX index file: 'S', 'A', 'P', 'J'.
var magic = [4]byte{'S', 'A', 'P', 'J'}

// formatVersion is the only version StorageManager currently emits or
// accepts.
const formatVersion uint32 = 1

// StorageManager persists and reloads an InvertedIndex in the binary layout
// from spec.md §4.3:
//
//	magic[4] = 'S','A','P','J'
//	version  : u32 = 1
//	num_terms: u32
//	repeat num_terms times:
//	   term_len: u32, term bytes
//	   posting_len: u32, posting bytes
//	   num_skips: u32
//	   repeat num_skips: i32 doc_id, u64 byte_offset
//
// Writes go to a temp file that is then renamed into place, so a crash
// mid-write leaves the previous file intact.
type StorageManager struct {
	logger *slog.Logger
}

// NewStorageManager constructs a StorageManager. A nil logger falls back to
// slog.Default().
func NewStorageManager(logger *slog.Logger) *StorageManager {
	if logger == nil {
		logger = slog.Default().With("component", "iidx-storage")
	}
	return &StorageManager{logger: logger}
}

// Save writes idx to path atomically (temp file + rename). Terms and their
// posting bytes/skip pointers are written exactly as stored, without
// decode/re-encode, so a round-trip load is byte-for-byte identical.
func (sm *StorageManager) Save(idx *InvertedIndex, path string) error {
	terms := idx.Terms()

	var buf bytes.Buffer
	buf.Write(magic[:])
	writeUint32(&buf, formatVersion)
	writeUint32(&buf, uint32(len(terms)))

	for _, term := range terms {
		posting, skips := idx.rawPosting(term)
		writeUint32(&buf, uint32(len(term)))
		buf.WriteString(term)
		writeUint32(&buf, uint32(len(posting)))
		buf.Write(posting)
		writeUint32(&buf, uint32(len(skips)))
		for _, s := range skips {
			writeInt32(&buf, int32(s.DocID))
			writeUint64(&buf, s.ByteOffset)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return apperrors.Wrap(apperrors.ErrIo, "iidx.StorageManager.Save: writing temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return apperrors.Wrap(apperrors.ErrIo, "iidx.StorageManager.Save: renaming into place", err)
	}
	sm.logger.Info("saved index", "path", path, "terms", len(terms))
	return nil
}

// Load reads path into a fresh InvertedIndex. A magic/version mismatch is
// FormatError; reading fewer bytes than a field announces is Truncated, per
// spec.md §4.3.
func (sm *StorageManager) Load(path string, logger *slog.Logger) (*InvertedIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrIo, "iidx.StorageManager.Load: reading file", err)
	}
	r := bytes.NewReader(data)

	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.StorageManager.Load: truncated magic", err)
	}
	if gotMagic != magic {
		return nil, apperrors.Wrap(apperrors.ErrFormatError, "iidx.StorageManager.Load: bad magic bytes", nil)
	}
	version, err := readUint32(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.StorageManager.Load: truncated version", err)
	}
	if version != formatVersion {
		return nil, apperrors.Wrap(apperrors.ErrFormatError, "iidx.StorageManager.Load: unsupported version", nil)
	}
	numTerms, err := readUint32(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.StorageManager.Load: truncated term count", err)
	}

	postings := make(map[string][]byte, numTerms)
	skipsByTerm := make(map[string][]SkipPointer, numTerms)
	seenDocs := make(map[int64]struct{})
	totalDocuments := 0

	for i := uint32(0); i < numTerms; i++ {
		termLen, err := readUint32(r)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.StorageManager.Load: truncated term length", err)
		}
		termBytes := make([]byte, termLen)
		if _, err := io.ReadFull(r, termBytes); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.StorageManager.Load: truncated term bytes", err)
		}
		term := string(termBytes)

		postingLen, err := readUint32(r)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.StorageManager.Load: truncated posting length", err)
		}
		posting := make([]byte, postingLen)
		if _, err := io.ReadFull(r, posting); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.StorageManager.Load: truncated posting bytes", err)
		}

		numSkips, err := readUint32(r)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.StorageManager.Load: truncated skip count", err)
		}
		skips := make([]SkipPointer, numSkips)
		for j := uint32(0); j < numSkips; j++ {
			docID, err := readInt32(r)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.StorageManager.Load: truncated skip doc_id", err)
			}
			offset, err := readUint64(r)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.StorageManager.Load: truncated skip byte_offset", err)
			}
			skips[j] = SkipPointer{DocID: int64(docID), ByteOffset: offset}
		}

		postings[term] = posting
		skipsByTerm[term] = skips

		ids, err := DecodePosting(posting)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, ok := seenDocs[id]; !ok {
				seenDocs[id] = struct{}{}
			}
		}
	}
	totalDocuments = len(seenDocs)

	idx := New(logger)
	idx.loadSnapshot(postings, skipsByTerm, seenDocs, totalDocuments)
	sm.logger.Info("loaded index", "path", path, "terms", numTerms)
	return idx, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeInt32(buf *bytes.Buffer, v int32) {
	writeUint32(buf, uint32(v))
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readInt32(r io.Reader) (int32, error) {
	v, err := readUint32(r)
	return int32(v), err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
