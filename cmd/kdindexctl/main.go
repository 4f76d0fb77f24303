// Command kdindexctl is a standalone demo program for the KDINDEX core.
//
// It builds a tree from a hardcoded 2-D point set and runs the k-NN and
// range scenarios from spec.md §8.
//
// Usage:
//
//	go run ./cmd/kdindexctl
//
// Exit codes: 0 success, 1 setup or evaluation failure.
package main

import (
	"fmt"
	"os"

	"github.com/sapj/retrieval-cores/internal/kdindex"
)

func main() {
	points := []kdindex.Point{
		{2, 3}, {5, 4}, {9, 6}, {4, 7}, {8, 1}, {7, 2},
	}

	tree, err := kdindex.Build(points)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("built tree over %d points\n\n", tree.Len())

	query := kdindex.Point{5, 5}

	fmt.Printf("k-NN query=%v k=2\n", query)
	neighbors, err := tree.KNN(query, 2)
	if err != nil {
		fmt.Fprintf(os.Stderr, "knn failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  result: %v\n", neighbors)
	want := []kdindex.Point{{5, 4}, {4, 7}}
	if !pointsEqual(neighbors, want) {
		fmt.Fprintf(os.Stderr, "expected %v, got %v\n", want, neighbors)
		os.Exit(1)
	}
	fmt.Println("  matches spec scenario 5")

	fmt.Printf("\nrange query=%v radius=3.0\n", query)
	inRange, err := tree.Range(query, 3.0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "range failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  result: %v\n", inRange)

	mustInclude := []kdindex.Point{{5, 4}, {4, 7}}
	mustExclude := kdindex.Point{2, 3}
	for _, p := range mustInclude {
		if !contains(inRange, p) {
			fmt.Fprintf(os.Stderr, "expected range result to include %v\n", p)
			os.Exit(1)
		}
	}
	if contains(inRange, mustExclude) {
		fmt.Fprintf(os.Stderr, "expected range result to exclude %v\n", mustExclude)
		os.Exit(1)
	}
	fmt.Println("  matches spec scenario 6")
}

func pointsEqual(a, b []kdindex.Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

func contains(points []kdindex.Point, target kdindex.Point) bool {
	for _, p := range points {
		if len(p) != len(target) {
			continue
		}
		match := true
		for i := range p {
			if p[i] != target[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
