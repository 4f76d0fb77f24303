package kdindex

import (
	"reflect"
	"sort"
	"testing"
)

func samplePoints() []Point {
	return []Point{
		{2, 3}, {5, 4}, {9, 6}, {4, 7}, {8, 1}, {7, 2},
	}
}

func TestBuildPartitionInvariant(t *testing.T) {
	tree, err := Build(samplePoints())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		var checkLeft, checkRight func(sub *Node)
		checkLeft = func(sub *Node) {
			if sub == nil {
				return
			}
			if sub.Point[n.Axis] >= n.Point[n.Axis] {
				t.Fatalf("left subtree point %v not strictly less than %v on axis %d", sub.Point, n.Point, n.Axis)
			}
			checkLeft(sub.Left)
			checkLeft(sub.Right)
		}
		checkRight = func(sub *Node) {
			if sub == nil {
				return
			}
			if sub.Point[n.Axis] < n.Point[n.Axis] {
				t.Fatalf("right subtree point %v less than %v on axis %d", sub.Point, n.Point, n.Axis)
			}
			checkRight(sub.Left)
			checkRight(sub.Right)
		}
		checkLeft(n.Left)
		checkRight(n.Right)
		walk(n.Left)
		walk(n.Right)
	}
	walk(tree.root)
}

func TestKNNScenario(t *testing.T) {
	tree, err := Build(samplePoints())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := tree.KNN(Point{5, 5}, 2)
	if err != nil {
		t.Fatalf("KNN: %v", err)
	}
	want := []Point{{5, 4}, {4, 7}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("KNN(5,5, k=2) = %v, want %v", got, want)
	}
}

func TestKNNMatchesBruteForce(t *testing.T) {
	points := []Point{
		{1, 1}, {2, 9}, {3, 4}, {7, 7}, {6, 2}, {0, 5}, {8, 8}, {4, 4}, {9, 1}, {5, 5},
	}
	tree, err := Build(points)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	query := Point{4, 6}
	const k = 3

	got, err := tree.KNN(query, k)
	if err != nil {
		t.Fatalf("KNN: %v", err)
	}

	type scored struct {
		p Point
		d float64
	}
	brute := make([]scored, len(points))
	for i, p := range points {
		brute[i] = scored{p, sqDist(query, p)}
	}
	sort.Slice(brute, func(i, j int) bool { return brute[i].d < brute[j].d })

	if len(got) != k {
		t.Fatalf("KNN returned %d points, want %d", len(got), k)
	}
	for i := 0; i < k; i++ {
		if sqDist(query, got[i]) != brute[i].d {
			t.Fatalf("KNN result %d = %v (dist %v), want dist %v", i, got[i], sqDist(query, got[i]), brute[i].d)
		}
	}
}

func TestRangeScenario(t *testing.T) {
	tree, err := Build(samplePoints())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := tree.Range(Point{5, 5}, 3.0)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	contains := func(pts []Point, p Point) bool {
		for _, q := range pts {
			if reflect.DeepEqual(p, q) {
				return true
			}
		}
		return false
	}
	if !contains(got, Point{5, 4}) {
		t.Fatalf("Range(5,5, r=3) should include (5,4), got %v", got)
	}
	if !contains(got, Point{4, 7}) {
		t.Fatalf("Range(5,5, r=3) should include (4,7), got %v", got)
	}
	if contains(got, Point{2, 3}) {
		t.Fatalf("Range(5,5, r=3) should exclude (2,3), got %v", got)
	}
}

func TestInsertWithoutRebalancing(t *testing.T) {
	tree, err := Build(nil)
	if err != nil {
		t.Fatalf("Build(nil): %v", err)
	}
	for _, p := range samplePoints() {
		if err := tree.Insert(p); err != nil {
			t.Fatalf("Insert(%v): %v", p, err)
		}
	}
	if tree.Len() != len(samplePoints()) {
		t.Fatalf("Len() = %d, want %d", tree.Len(), len(samplePoints()))
	}
	got, err := tree.KNN(Point{5, 5}, 2)
	if err != nil {
		t.Fatalf("KNN: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("KNN after inserts returned %d points, want 2", len(got))
	}
}

func TestDimensionMismatch(t *testing.T) {
	tree, err := Build([]Point{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := tree.KNN(Point{1, 2, 3}, 1); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
	if err := tree.Insert(Point{1}); err == nil {
		t.Fatalf("expected dimension mismatch error on Insert")
	}
}

func TestBuildInconsistentDimensions(t *testing.T) {
	_, err := Build([]Point{{1, 2}, {1, 2, 3}})
	if err == nil {
		t.Fatalf("expected dimension mismatch error from Build")
	}
}

func TestEmptyTree(t *testing.T) {
	tree, err := Build(nil)
	if err != nil {
		t.Fatalf("Build(nil): %v", err)
	}
	got, err := tree.KNN(Point{1, 2}, 3)
	if err != nil {
		t.Fatalf("KNN on empty tree: %v", err)
	}
	if got != nil {
		t.Fatalf("KNN on empty tree = %v, want nil", got)
	}
	rangeGot, err := tree.Range(Point{1, 2}, 5)
	if err != nil {
		t.Fatalf("Range on empty tree: %v", err)
	}
	if rangeGot != nil {
		t.Fatalf("Range on empty tree = %v, want nil", rangeGot)
	}
}
