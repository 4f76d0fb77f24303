package indexer

import (
	"encoding/binary"
	"fmt"
)

// docKeySize is the width of the doc_id prefix every EHASH record carries,
// used both to compute the record's hash key and to recover the doc_id on
// read-back.
const docKeySize = 8

// encodeRecord packs a document into the flat byte blob EHASH stores:
// doc_id (8 bytes, big-endian) | title_len (4 bytes) | title | body.
func encodeRecord(docID int64, title, body string) []byte {
	buf := make([]byte, docKeySize+4+len(title)+len(body))
	binary.BigEndian.PutUint64(buf[0:8], uint64(docID))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(title)))
	copy(buf[12:12+len(title)], title)
	copy(buf[12+len(title):], body)
	return buf
}

// decodeRecord reverses encodeRecord.
func decodeRecord(data []byte) (docID int64, title, body string, err error) {
	if len(data) < docKeySize+4 {
		return 0, "", "", fmt.Errorf("ehash record too short: %d bytes", len(data))
	}
	docID = int64(binary.BigEndian.Uint64(data[0:8]))
	titleLen := int(binary.BigEndian.Uint32(data[8:12]))
	if docKeySize+4+titleLen > len(data) {
		return 0, "", "", fmt.Errorf("ehash record title_len %d exceeds record size", titleLen)
	}
	title = string(data[12 : 12+titleLen])
	body = string(data[12+titleLen:])
	return docID, title, body, nil
}

// recordKeyOf extracts the doc_id prefix from an encoded record, used as
// ehash.Store's KeyFunc.
func recordKeyOf(record []byte) []byte {
	if len(record) < docKeySize {
		return record
	}
	return record[:docKeySize]
}

// docIDKey renders a doc_id the same way encodeRecord embeds it, so callers
// can compute ehash.Store.HashKey(docIDKey(id)) to Find a record back.
func docIDKey(docID int64) []byte {
	buf := make([]byte, docKeySize)
	binary.BigEndian.PutUint64(buf, uint64(docID))
	return buf
}
