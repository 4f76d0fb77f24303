package ehash

import (
	"path/filepath"
	"testing"
)

func TestBucketCreateAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bucket_0.dat")
	hashFn := func(k []byte) uint64 { return uint64(len(k)) + 1 }

	b, err := openOrCreateBucket(path, 128, hashFn, testKeyOf, nil)
	if err != nil {
		t.Fatalf("openOrCreateBucket: %v", err)
	}
	rec := makeRecord("k1", "v1")
	h := hashFn(testKeyOf(rec))
	if !b.fits(len(rec)) {
		t.Fatalf("expected record to fit in a fresh 128-byte bucket")
	}
	b.append(h, rec)
	if err := b.persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}

	reloaded, err := openOrCreateBucket(path, 128, hashFn, testKeyOf, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, ok := reloaded.find(h)
	if !ok {
		t.Fatalf("reloaded bucket missing record")
	}
	if string(got) != string(rec) {
		t.Fatalf("reloaded record = %q, want %q", got, rec)
	}
	if reloaded.count() != 1 {
		t.Fatalf("reloaded count = %d, want 1", reloaded.count())
	}
}

func TestBucketFitsBoundary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bucket_0.dat")
	hashFn := func(k []byte) uint64 { return 0 }
	b, err := openOrCreateBucket(path, 20, hashFn, testKeyOf, nil)
	if err != nil {
		t.Fatalf("openOrCreateBucket: %v", err)
	}
	// 4 (bucket prefix) + len(rec) must be <= 20.
	rec := makeRecord("ab", "cd") // len(rec) = 4+2+2 = 8, total 12
	if !b.fits(len(rec)) {
		t.Fatalf("expected record of total size 12 to fit in 20-byte bucket")
	}
	b.append(hashFn(testKeyOf(rec)), rec)
	// used = 12, remaining = 8, another identical 8-byte payload needs 12 more -> doesn't fit.
	rec2 := makeRecord("ef", "gh")
	if b.fits(len(rec2)) {
		t.Fatalf("expected second record not to fit (would overflow 20-byte bucket)")
	}
}
