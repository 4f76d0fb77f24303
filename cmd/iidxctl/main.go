// Command iidxctl is a standalone demo program for the IIDX core.
//
// It builds an inverted index over the spec's 3-document example, saves it
// to a temp SAPJ file, reloads it into a fresh InvertedIndex, and runs the
// three canned boolean queries from spec.md §8.
//
// Usage:
//
//	go run ./cmd/iidxctl [-path /tmp/iidx-demo.sapj]
//
// Exit codes: 0 success, 1 setup, I/O, or query failure.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sapj/retrieval-cores/internal/iidx"
)

var docs = map[int64]string{
	1: "hello world",
	2: "hello again",
	3: "world peace",
}

func main() {
	path := flag.String("path", "", "snapshot path (defaults to a temp file)")
	flag.Parse()

	snapshotPath := *path
	if snapshotPath == "" {
		f, err := os.CreateTemp("", "iidxctl-*.sapj")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create temp file: %v\n", err)
			os.Exit(1)
		}
		snapshotPath = f.Name()
		f.Close()
		defer os.Remove(snapshotPath)
	}

	idx := iidx.New(nil)
	for docID, text := range docs {
		if err := idx.AddDocument(docID, text); err != nil {
			fmt.Fprintf(os.Stderr, "AddDocument(%d) failed: %v\n", docID, err)
			os.Exit(1)
		}
	}
	fmt.Printf("indexed %d documents, %d distinct terms\n", idx.TotalDocuments(), len(idx.Terms()))

	fmt.Printf("\nrunning canned queries against the in-memory index:\n")
	if err := runQueries(idx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	storage := iidx.NewStorageManager(nil)
	fmt.Printf("\nsaving snapshot to %s\n", snapshotPath)
	if err := storage.Save(idx, snapshotPath); err != nil {
		fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("reloading into a fresh InvertedIndex")
	reloaded, err := storage.Load(snapshotPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("reloaded %d documents, %d distinct terms\n", reloaded.TotalDocuments(), len(reloaded.Terms()))

	fmt.Printf("\nrunning the same canned queries against the reloaded index:\n")
	if err := runQueries(reloaded); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runQueries(idx *iidx.InvertedIndex) error {
	qp := iidx.NewQueryProcessor(idx)
	scenarios := []struct {
		query string
		want  []int64
	}{
		{"hello AND world", []int64{1}},
		{"hello OR world", []int64{1, 2, 3}},
		{"NOT hello", []int64{3}},
	}
	for _, sc := range scenarios {
		got, err := qp.Evaluate(sc.query)
		if err != nil {
			return fmt.Errorf("query %q failed: %w", sc.query, err)
		}
		fmt.Printf("  %-20s -> %v\n", sc.query, got)
		if !int64SliceEqual(got, sc.want) {
			return fmt.Errorf("query %q: expected %v, got %v", sc.query, sc.want, got)
		}
	}
	return nil
}

func int64SliceEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
