package iidx

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Hello, World!":        "hello world",
		"  multiple   spaces ": "multiple spaces",
		"UPPER-CASE_word":      "uppercaseword",
		"":                     "",
		"   ":                  "",
		"café":                 "café",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTokenizePreservesDuplicatesAndOrder(t *testing.T) {
	got := Tokenize("hello world hello")
	want := []string{"hello", "world", "hello"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
}

func TestTokenizeEmpty(t *testing.T) {
	if got := Tokenize("   "); got != nil {
		t.Fatalf("Tokenize(whitespace) = %v, want nil", got)
	}
}
