package iidx

import "testing"

func newSampleIndex(t *testing.T) *InvertedIndex {
	t.Helper()
	idx := New(nil)
	docs := map[int64]string{
		1: "hello world",
		2: "hello again",
		3: "world peace",
	}
	for id, text := range docs {
		if err := idx.AddDocument(id, text); err != nil {
			t.Fatalf("AddDocument(%d): %v", id, err)
		}
	}
	return idx
}

func assertQuery(t *testing.T, idx *InvertedIndex, query string, want []int64) {
	t.Helper()
	qp := NewQueryProcessor(idx)
	got, err := qp.Evaluate(query)
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", query, err)
	}
	if len(got) != len(want) {
		t.Fatalf("Evaluate(%q) = %v, want %v", query, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Evaluate(%q) = %v, want %v", query, got, want)
		}
	}
}

func TestBooleanQueryScenario(t *testing.T) {
	idx := newSampleIndex(t)
	assertQuery(t, idx, "hello AND world", []int64{1})
	assertQuery(t, idx, "hello OR world", []int64{1, 2, 3})
	assertQuery(t, idx, "NOT hello", []int64{3})
}

func TestQueryPrecedenceAndParens(t *testing.T) {
	idx := newSampleIndex(t)
	// NOT binds tighter than AND, which binds tighter than OR.
	assertQuery(t, idx, "hello AND NOT again", []int64{1})
	assertQuery(t, idx, "(hello OR peace) AND world", []int64{1, 3})
	assertQuery(t, idx, "hello and world", []int64{1}) // operators are case-insensitive
}

func TestQueryUnknownTermIsEmptyPosting(t *testing.T) {
	idx := newSampleIndex(t)
	assertQuery(t, idx, "nonexistent", nil)
	assertQuery(t, idx, "hello AND nonexistent", nil)
}

func TestMalformedQueries(t *testing.T) {
	idx := newSampleIndex(t)
	qp := NewQueryProcessor(idx)
	malformed := []string{
		"AND hello",
		"hello AND",
		"NOT",
		"((hello)",
		"hello))",
		"hello world",
		"",
		"hello NOT",
	}
	for _, q := range malformed {
		if _, err := qp.Evaluate(q); err == nil {
			t.Fatalf("Evaluate(%q): expected MalformedQuery, got nil error", q)
		}
	}
}
