package iidx

import apperrors "github.com/sapj/retrieval-cores/pkg/errors"

// NBlock is the fixed pForDelta block size, per spec.md §4.3.
const NBlock = 128

// blockHeaderSize is the two raw (unpacked) bytes (p, n) preceding every
// block's bit-packed gap values.
const blockHeaderSize = 2

// EncodePosting gap-encodes a sorted, strictly-increasing, non-negative
// doc_id sequence into a pForDelta byte stream: blocks of up to NBlock
// gaps, each prefixed by a (p, n) header byte pair, followed by the n gaps
// bit-packed at p bits apiece.
func EncodePosting(docIDs []int64) ([]byte, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}
	gaps := make([]uint64, len(docIDs))
	if docIDs[0] < 0 {
		return nil, apperrors.Wrap(apperrors.ErrNotStrictlyIncreasing, "iidx.EncodePosting: negative doc_id", nil)
	}
	gaps[0] = uint64(docIDs[0])
	for i := 1; i < len(docIDs); i++ {
		if docIDs[i] <= docIDs[i-1] {
			return nil, apperrors.Wrap(apperrors.ErrNotStrictlyIncreasing,
				"iidx.EncodePosting: doc_ids must be strictly increasing", nil)
		}
		gaps[i] = uint64(docIDs[i] - docIDs[i-1])
	}

	var out []byte
	for start := 0; start < len(gaps); start += NBlock {
		end := start + NBlock
		if end > len(gaps) {
			end = len(gaps)
		}
		block := gaps[start:end]

		var maxGap uint64
		for _, g := range block {
			if g > maxGap {
				maxGap = g
			}
		}
		p := bitWidth(maxGap)
		n := len(block)
		out = append(out, byte(p), byte(n))

		bw := &bitWriter{}
		for _, g := range block {
			bw.writeBits(g, p)
		}
		bw.flush()
		out = append(out, bw.buf...)
	}
	return out, nil
}

// DecodePosting is EncodePosting's inverse: decode(encode(S)) == S for any
// strictly-increasing non-negative S, per spec.md §4.3's round-trip
// invariant.
func DecodePosting(data []byte) ([]int64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result []int64
	var prevAbs uint64
	first := true
	pos := 0

	for pos < len(data) {
		if pos+blockHeaderSize > len(data) {
			return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.DecodePosting: truncated block header", nil)
		}
		p := int(data[pos])
		n := int(data[pos+1])
		pos += blockHeaderSize
		if p == 0 {
			return nil, apperrors.Wrap(apperrors.ErrCorrupt, "iidx.DecodePosting: block width p == 0", nil)
		}
		bytesNeeded := (p*n + 7) / 8
		if pos+bytesNeeded > len(data) {
			return nil, apperrors.Wrap(apperrors.ErrTruncated, "iidx.DecodePosting: truncated block body", nil)
		}
		br := &bitReader{buf: data[pos : pos+bytesNeeded]}
		pos += bytesNeeded

		for i := 0; i < n; i++ {
			g, err := br.readBits(p)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.ErrCorrupt, "iidx.DecodePosting: insufficient bits in block", err)
			}
			if first {
				prevAbs = g
				first = false
			} else {
				prevAbs += g
			}
			result = append(result, int64(prevAbs))
		}
	}
	return result, nil
}
