package iidx

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]int64{
		{1, 3, 7, 15, 31, 63, 127},
		{0},
		{5},
		{1, 2, 3, 4, 5},
		nil,
	}
	for _, ids := range cases {
		encoded, err := EncodePosting(ids)
		if err != nil {
			t.Fatalf("EncodePosting(%v): %v", ids, err)
		}
		decoded, err := DecodePosting(encoded)
		if err != nil {
			t.Fatalf("DecodePosting(%v): %v", ids, err)
		}
		if len(ids) == 0 {
			if len(decoded) != 0 {
				t.Fatalf("decode(encode(%v)) = %v, want empty", ids, decoded)
			}
			continue
		}
		if !reflect.DeepEqual(decoded, ids) {
			t.Fatalf("decode(encode(%v)) = %v, want %v", ids, decoded, ids)
		}
	}
}

func TestEncodeAcrossBlockBoundary(t *testing.T) {
	ids := make([]int64, 300)
	for i := range ids {
		ids[i] = int64(i) * 2
	}
	encoded, err := EncodePosting(ids)
	if err != nil {
		t.Fatalf("EncodePosting: %v", err)
	}
	decoded, err := DecodePosting(encoded)
	if err != nil {
		t.Fatalf("DecodePosting: %v", err)
	}
	if !reflect.DeepEqual(decoded, ids) {
		t.Fatalf("round trip across block boundary mismatched")
	}
}

func TestEncodeNotStrictlyIncreasing(t *testing.T) {
	if _, err := EncodePosting([]int64{1, 1, 2}); err == nil {
		t.Fatalf("expected ErrNotStrictlyIncreasing for duplicate doc_id")
	}
	if _, err := EncodePosting([]int64{5, 3}); err == nil {
		t.Fatalf("expected ErrNotStrictlyIncreasing for decreasing doc_id")
	}
}

func TestDecodeCorruptZeroWidth(t *testing.T) {
	data := []byte{0, 1, 0}
	if _, err := DecodePosting(data); err == nil {
		t.Fatalf("expected error for p == 0")
	}
}

func TestDecodeTruncated(t *testing.T) {
	encoded, err := EncodePosting([]int64{1, 2, 3})
	if err != nil {
		t.Fatalf("EncodePosting: %v", err)
	}
	truncated := encoded[:len(encoded)-1]
	if _, err := DecodePosting(truncated); err == nil {
		t.Fatalf("expected truncation error")
	}
}

func TestSkipPointersMatchBlockStarts(t *testing.T) {
	ids := make([]int64, 260)
	for i := range ids {
		ids[i] = int64(i)*3 + 1
	}
	encoded, err := EncodePosting(ids)
	if err != nil {
		t.Fatalf("EncodePosting: %v", err)
	}
	skips, err := BuildSkipPointers(encoded)
	if err != nil {
		t.Fatalf("BuildSkipPointers: %v", err)
	}
	if len(skips) != 3 {
		t.Fatalf("expected 3 skip pointers for 260 ids over blocks of 128, got %d", len(skips))
	}
	for _, sp := range skips {
		p := int(encoded[sp.ByteOffset])
		if p == 0 {
			t.Fatalf("skip pointer at offset %d points at a p==0 header", sp.ByteOffset)
		}
	}

	decoded, err := DecodePosting(encoded)
	if err != nil {
		t.Fatalf("DecodePosting: %v", err)
	}
	if decoded[0] != skips[0].DocID {
		t.Fatalf("first skip pointer doc_id = %d, want %d", skips[0].DocID, decoded[0])
	}
	if decoded[128] != skips[1].DocID {
		t.Fatalf("second skip pointer doc_id = %d, want %d", skips[1].DocID, decoded[128])
	}
	if decoded[256] != skips[2].DocID {
		t.Fatalf("third skip pointer doc_id = %d, want %d", skips[2].DocID, decoded[256])
	}
}
