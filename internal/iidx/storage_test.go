package iidx

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStorageSaveLoadRoundTrip(t *testing.T) {
	idx := New(nil)
	docs := map[int64]string{
		1: "hello world",
		2: "hello again and again",
		3: "world peace treaty",
		4: "another document entirely",
		5: "final document in the set",
	}
	for id, text := range docs {
		if err := idx.AddDocument(id, text); err != nil {
			t.Fatalf("AddDocument(%d): %v", id, err)
		}
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "index.sapj")
	sm := NewStorageManager(nil)
	if err := sm.Save(idx, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := sm.Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, term := range idx.Terms() {
		want, err := idx.GetPostings(term)
		if err != nil {
			t.Fatalf("GetPostings(%s) on original: %v", term, err)
		}
		got, err := reloaded.GetPostings(term)
		if err != nil {
			t.Fatalf("GetPostings(%s) on reloaded: %v", term, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("term %q postings = %v, want %v", term, got, want)
		}

		wantPosting, wantSkips := idx.rawPosting(term)
		gotPosting, gotSkips := reloaded.rawPosting(term)
		if !reflect.DeepEqual(gotPosting, wantPosting) {
			t.Fatalf("term %q raw posting bytes differ after reload", term)
		}
		if !reflect.DeepEqual(gotSkips, wantSkips) {
			t.Fatalf("term %q skip pointers differ after reload", term)
		}
	}
}

func TestStorageLoadRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.sapj")
	if err := os.WriteFile(path, []byte("XXXX"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sm := NewStorageManager(nil)
	if _, err := sm.Load(path, nil); err == nil {
		t.Fatalf("expected FormatError for bad magic")
	}
}

func TestStorageLoadRejectsTruncatedFile(t *testing.T) {
	idx := New(nil)
	if err := idx.AddDocument(1, "hello world"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "index.sapj")
	sm := NewStorageManager(nil)
	if err := sm.Save(idx, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	full, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	truncatedPath := filepath.Join(dir, "truncated.sapj")
	if err := os.WriteFile(truncatedPath, full[:len(full)-3], 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := sm.Load(truncatedPath, nil); err == nil {
		t.Fatalf("expected Truncated error for truncated file")
	}
}
