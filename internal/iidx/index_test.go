package iidx

import (
	"reflect"
	"testing"
)

func TestAddDocumentAndGetPostings(t *testing.T) {
	idx := New(nil)
	if err := idx.AddDocument(1, "hello world"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := idx.AddDocument(2, "hello again"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := idx.AddDocument(3, "world peace"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	got, err := idx.GetPostings("hello")
	if err != nil {
		t.Fatalf("GetPostings: %v", err)
	}
	if !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("GetPostings(hello) = %v, want [1 2]", got)
	}
	if idx.TotalDocuments() != 3 {
		t.Fatalf("TotalDocuments() = %d, want 3", idx.TotalDocuments())
	}
}

func TestAddDocumentIdempotent(t *testing.T) {
	idx := New(nil)
	if err := idx.AddDocument(1, "hello world"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := idx.AddDocument(1, "hello world"); err != nil {
		t.Fatalf("AddDocument (repeat): %v", err)
	}
	if idx.TotalDocuments() != 1 {
		t.Fatalf("TotalDocuments() = %d, want 1 after re-adding the same doc_id", idx.TotalDocuments())
	}
	got, err := idx.GetPostings("hello")
	if err != nil {
		t.Fatalf("GetPostings: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetPostings(hello) = %v, want exactly one entry", got)
	}
}

func TestGetPostingsUnknownTermIsEmpty(t *testing.T) {
	idx := New(nil)
	got, err := idx.GetPostings("nonexistent")
	if err != nil {
		t.Fatalf("GetPostings: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("GetPostings(unknown) = %v, want empty", got)
	}
}

func TestPostingsSortedAfterManyInserts(t *testing.T) {
	idx := New(nil)
	order := []int64{50, 3, 47, 1, 99, 2, 48}
	for _, id := range order {
		if err := idx.AddDocument(id, "shared term"); err != nil {
			t.Fatalf("AddDocument(%d): %v", id, err)
		}
	}
	got, err := idx.GetPostings("shared")
	if err != nil {
		t.Fatalf("GetPostings: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("postings not strictly sorted: %v", got)
		}
	}
	if len(got) != len(order) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(order))
	}
}

func TestCheckInvariants(t *testing.T) {
	idx := New(nil)
	for i := int64(1); i <= 300; i++ {
		if err := idx.AddDocument(i, "bulk term"); err != nil {
			t.Fatalf("AddDocument(%d): %v", i, err)
		}
	}
	if err := idx.checkInvariants(); err != nil {
		t.Fatalf("checkInvariants: %v", err)
	}
}
