package ehash

import (
	"encoding/binary"
	"fmt"
	"testing"
)

// testKeyOf treats a record as `key_len:u32 key value...`, matching the
// self-delimiting form spec.md §6 suggests for record payloads.
func testKeyOf(record []byte) []byte {
	keyLen := binary.LittleEndian.Uint32(record[:4])
	return record[4 : 4+keyLen]
}

func makeRecord(key, value string) []byte {
	buf := make([]byte, 4+len(key)+len(value))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(key)))
	copy(buf[4:], key)
	copy(buf[4+len(key):], value)
	return buf
}

func newTestStore(t *testing.T, maxBucketSize int64, initialDepth int) *Store {
	t.Helper()
	s, err := Open(Options{
		DataDir:            t.TempDir(),
		InitialGlobalDepth: initialDepth,
		MaxBucketSize:      maxBucketSize,
		KeyOf:              testKeyOf,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestStoreInsertAndFind(t *testing.T) {
	s := newTestStore(t, 256, 1)
	rec := makeRecord("alpha", "first value")
	if err := s.Insert(rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	h := s.HashKey([]byte("alpha"))
	got, ok := s.Find(h)
	if !ok {
		t.Fatalf("Find: record not found")
	}
	if string(got) != string(rec) {
		t.Fatalf("Find returned %q, want %q", got, rec)
	}
}

func TestStoreUpdateInPlace(t *testing.T) {
	s := newTestStore(t, 256, 1)
	if err := s.Insert(makeRecord("alpha", "v1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(makeRecord("alpha", "v2")); err != nil {
		t.Fatalf("Insert (replace): %v", err)
	}
	h := s.HashKey([]byte("alpha"))
	got, ok := s.Find(h)
	if !ok || string(testKeyOf(got)) != "alpha" {
		t.Fatalf("Find after replace: %q, %v", got, ok)
	}
	entries := s.GetEntries(h)
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 entry for alpha's bucket-slot after replace, got %d", len(entries))
	}
}

func TestStoreSplitsAndGrowsDirectory(t *testing.T) {
	// Small enough that 3 similarly-sized records overflow a bucket.
	s := newTestStore(t, 64, 1)

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key-%02d", i)
		rec := makeRecord(key, fmt.Sprintf("value-%02d", i))
		if err := s.Insert(rec); err != nil {
			t.Fatalf("Insert(%s): %v", key, err)
		}
	}

	stats := s.Stats()
	if stats.NumSlots != 1<<uint(stats.GlobalDepth) {
		t.Fatalf("NumSlots=%d does not match 2^GlobalDepth=%d", stats.NumSlots, 1<<uint(stats.GlobalDepth))
	}
	if stats.GlobalDepth < 2 {
		t.Fatalf("expected global depth to grow past the initial 1, got %d", stats.GlobalDepth)
	}
	if err := s.CheckInvariants(); err != nil {
		t.Fatalf("CheckInvariants: %v", err)
	}

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key-%02d", i)
		h := s.HashKey([]byte(key))
		got, ok := s.Find(h)
		if !ok {
			t.Fatalf("Find(%s): not found after splits", key)
		}
		if string(testKeyOf(got)) != key {
			t.Fatalf("Find(%s): got key %q", key, testKeyOf(got))
		}
	}
}

func TestStoreRecordTooLarge(t *testing.T) {
	s := newTestStore(t, 32, 1)
	big := makeRecord("k", string(make([]byte, 64)))
	if err := s.Insert(big); err == nil {
		t.Fatalf("expected ErrRecordTooLarge, got nil")
	}
}

func TestStoreReopenPreservesManifest(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{DataDir: dir, InitialGlobalDepth: 1, MaxBucketSize: 64, KeyOf: testKeyOf})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key-%02d", i)
		if err := s.Insert(makeRecord(key, "v")); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	before := s.Stats()

	reopened, err := Open(Options{DataDir: dir, InitialGlobalDepth: 1, MaxBucketSize: 64, KeyOf: testKeyOf})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	after := reopened.Stats()
	if before.GlobalDepth != after.GlobalDepth || before.NumBuckets != after.NumBuckets {
		t.Fatalf("reopen lost directory structure: before=%+v after=%+v", before, after)
	}
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key-%02d", i)
		h := reopened.HashKey([]byte(key))
		if _, ok := reopened.Find(h); !ok {
			t.Fatalf("Find(%s) failed after reopen", key)
		}
	}
}
