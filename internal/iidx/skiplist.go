package iidx

import apperrors "github.com/sapj/retrieval-cores/pkg/errors"

// SkipPointer locates a pForDelta block by the first doc_id it decodes to
// and the byte offset of its (p, n) header, per spec.md §4.3.
type SkipPointer struct {
	DocID      int64
	ByteOffset uint64
}

// BuildSkipPointers rebuilds the skip-pointer list for a compressed posting
// stream from scratch. It is a pure function of the bytes: callers rebuild
// it whenever a posting's compressed form changes, per spec.md §4.3's "skip
// pointers ... rebuilt whenever the compressed bytes change."
func BuildSkipPointers(data []byte) ([]SkipPointer, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var skips []SkipPointer
	var prevAbs uint64
	first := true
	pos := 0

	for pos < len(data) {
		headerOffset := pos
		if pos+blockHeaderSize > len(data) {
			return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.BuildSkipPointers: truncated block header", nil)
		}
		p := int(data[pos])
		n := int(data[pos+1])
		pos += blockHeaderSize
		if p == 0 {
			return nil, apperrors.Wrap(apperrors.ErrCorrupt, "iidx.BuildSkipPointers: block width p == 0", nil)
		}
		bytesNeeded := (p*n + 7) / 8
		if pos+bytesNeeded > len(data) {
			return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.BuildSkipPointers: truncated block body", nil)
		}
		br := &bitReader{buf: data[pos : pos+bytesNeeded]}
		pos += bytesNeeded

		blockRecorded := false
		for i := 0; i < n; i++ {
			g, err := br.readBits(p)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.ErrCorrupt, "iidx.BuildSkipPointers: insufficient bits in block", err)
			}
			if first {
				prevAbs = g
				first = false
			} else {
				prevAbs += g
			}
			if !blockRecorded {
				skips = append(skips, SkipPointer{DocID: int64(prevAbs), ByteOffset: uint64(headerOffset)})
				blockRecorded = true
			}
		}
	}
	return skips, nil
}
