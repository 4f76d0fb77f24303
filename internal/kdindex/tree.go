package kdindex

import (
	"container/heap"
	"sync"

	apperrors "github.com/sapj/retrieval-cores/pkg/errors"
)

// Tree is an in-memory k-d tree over fixed-dimension points. The zero value
// is an empty tree (Build returns one for an empty point set); the first
// Insert into it fixes its dimension.
type Tree struct {
	mu   sync.RWMutex
	root *Node
	dim  int
	size int
}

// Build partitions points into a balanced k-d tree via repeated median
// split: at each level it selects the true median along the level's axis in
// expected-linear time (quickselect), partitions the remaining points
// strictly less-than / greater-or-equal around that value, and recurses.
// Per spec.md §4.2's partition invariant, every point in a node's left
// subtree has a strictly smaller coordinate on the node's axis, and every
// point in its right subtree (including ties) has a coordinate greater than
// or equal to it.
func Build(points []Point) (*Tree, error) {
	if len(points) == 0 {
		return &Tree{}, nil
	}
	dim := len(points[0])
	if dim == 0 {
		return nil, apperrors.Wrap(apperrors.ErrEmptyPointSet, "kdindex.Build: points have zero dimension", nil)
	}
	cp := make([]Point, len(points))
	for i, p := range points {
		if len(p) != dim {
			return nil, apperrors.Wrap(apperrors.ErrDimensionMismatch, "kdindex.Build: inconsistent point dimension", nil)
		}
		cp[i] = p.Clone()
	}
	root := buildRecursive(cp, 0, dim)
	return &Tree{root: root, dim: dim, size: len(points)}, nil
}

// Dimension reports the coordinate length every point in the tree shares.
// It is 0 for a tree built from an empty point set.
func (t *Tree) Dimension() int {
	return t.dim
}

// Len reports the number of points currently in the tree.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

func buildRecursive(points []Point, depth, dim int) *Node {
	if len(points) == 0 {
		return nil
	}
	axis := depth % dim
	if len(points) == 1 {
		return &Node{Point: points[0], Axis: axis}
	}

	vals := make([]float64, len(points))
	for i, p := range points {
		vals[i] = p[axis]
	}
	medianValue := kthSmallestValue(vals, len(points)/2)

	less := make([]Point, 0, len(points))
	rest := make([]Point, 0, len(points))
	for _, p := range points {
		if p[axis] < medianValue {
			less = append(less, p)
		} else {
			rest = append(rest, p)
		}
	}
	// rest holds at least one point whose coordinate equals medianValue; move
	// it to the front and take it as this node's point, so left stays strictly
	// smaller and every point left in rest is greater or equal.
	for i, p := range rest {
		if p[axis] == medianValue {
			rest[0], rest[i] = rest[i], rest[0]
			break
		}
	}
	nodePoint := rest[0]
	rest = rest[1:]

	return &Node{
		Point: nodePoint,
		Axis:  axis,
		Left:  buildRecursive(less, depth+1, dim),
		Right: buildRecursive(rest, depth+1, dim),
	}
}

// kthSmallestValue returns the k-th smallest (0-indexed) value of vals via
// Lomuto-partition quickselect. vals is mutated in place; callers pass a
// scratch copy.
func kthSmallestValue(vals []float64, k int) float64 {
	lo, hi := 0, len(vals)-1
	for {
		if lo == hi {
			return vals[lo]
		}
		p := partitionFloats(vals, lo, hi)
		switch {
		case k == p:
			return vals[p]
		case k < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func partitionFloats(vals []float64, lo, hi int) int {
	pivot := vals[hi]
	i := lo
	for j := lo; j < hi; j++ {
		if vals[j] < pivot {
			vals[i], vals[j] = vals[j], vals[i]
			i++
		}
	}
	vals[i], vals[hi] = vals[hi], vals[i]
	return i
}

// Insert adds a point without rebalancing, per spec.md §1's explicit
// non-goal: descend with the standard less-than-axis rule until an empty
// child slot is found.
func (t *Tree) Insert(p Point) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.root == nil && t.dim == 0 {
		if len(p) == 0 {
			return apperrors.Wrap(apperrors.ErrEmptyPointSet, "kdindex.Insert: point has zero dimension", nil)
		}
		t.dim = len(p)
	}
	if len(p) != t.dim {
		return apperrors.Wrap(apperrors.ErrDimensionMismatch, "kdindex.Insert: point dimension does not match tree", nil)
	}
	t.root = insertRecursive(t.root, p.Clone(), 0, t.dim)
	t.size++
	return nil
}

func insertRecursive(node *Node, p Point, depth, dim int) *Node {
	if node == nil {
		return &Node{Point: p, Axis: depth % dim}
	}
	if p[node.Axis] < node.Point[node.Axis] {
		node.Left = insertRecursive(node.Left, p, depth+1, dim)
	} else {
		node.Right = insertRecursive(node.Right, p, depth+1, dim)
	}
	return node
}

type neighbor struct {
	point Point
	dist  float64
}

// neighborHeap is a max-heap on distance: the root is always the current
// farthest of the up-to-k candidates kept so far, so KNN can evict it in
// O(log k) the moment a closer point is found.
type neighborHeap []neighbor

func (h neighborHeap) Len() int            { return len(h) }
func (h neighborHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h neighborHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *neighborHeap) Push(x interface{}) { *h = append(*h, x.(neighbor)) }
func (h *neighborHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// KNN returns the k nearest points to query, ascending by distance. Of points
// tied at the k-th distance, the one the search visits first is kept
// (spec.md §4.2 leaves this unspecified). It prunes a subtree whenever the query's distance to
// the splitting hyperplane already exceeds the current k-th best distance.
func (t *Tree) KNN(query Point, k int) ([]Point, error) {
	points, _, err := t.knn(query, k)
	return points, err
}

// KNNStats behaves exactly like KNN but additionally reports how many tree
// nodes were visited during the search, for the kd-index nodes-visited
// telemetry (see pkg/metrics).
func (t *Tree) KNNStats(query Point, k int) ([]Point, int, error) {
	return t.knn(query, k)
}

func (t *Tree) knn(query Point, k int) ([]Point, int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if err := t.checkDim(query); err != nil {
		return nil, 0, err
	}
	if k <= 0 || t.root == nil {
		return nil, 0, nil
	}

	h := &neighborHeap{}
	heap.Init(h)
	visited := 0
	knnVisit(t.root, query, k, h, &visited)

	out := make([]Point, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(neighbor).point
	}
	return out, visited, nil
}

func knnVisit(node *Node, query Point, k int, h *neighborHeap, visited *int) {
	if node == nil {
		return
	}
	*visited++
	d := sqDist(query, node.Point)
	if h.Len() < k {
		heap.Push(h, neighbor{node.Point, d})
	} else if d < (*h)[0].dist {
		heap.Pop(h)
		heap.Push(h, neighbor{node.Point, d})
	}

	axis := node.Axis
	var near, far *Node
	if query[axis] < node.Point[axis] {
		near, far = node.Left, node.Right
	} else {
		near, far = node.Right, node.Left
	}
	knnVisit(near, query, k, h, visited)

	planeDist := query[axis] - node.Point[axis]
	if h.Len() < k || planeDist*planeDist < (*h)[0].dist {
		knnVisit(far, query, k, h, visited)
	}
}

// Range returns every point within radius r of query (inclusive), per
// spec.md §4.2's axis-aligned pruning: a subtree is visited only if the
// query's hypersphere could reach past the splitting plane into it.
func (t *Tree) Range(query Point, r float64) ([]Point, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if err := t.checkDim(query); err != nil {
		return nil, err
	}
	if t.root == nil || r < 0 {
		return nil, nil
	}

	var out []Point
	r2 := r * r
	rangeVisit(t.root, query, r, r2, &out)
	return out, nil
}

func rangeVisit(node *Node, query Point, r, r2 float64, out *[]Point) {
	if node == nil {
		return
	}
	if sqDist(query, node.Point) <= r2 {
		*out = append(*out, node.Point)
	}
	axis := node.Axis
	if query[axis]-r <= node.Point[axis] {
		rangeVisit(node.Left, query, r, r2, out)
	}
	if query[axis]+r >= node.Point[axis] {
		rangeVisit(node.Right, query, r, r2, out)
	}
}

func (t *Tree) checkDim(p Point) error {
	if t.dim != 0 && len(p) != t.dim {
		return apperrors.Wrap(apperrors.ErrDimensionMismatch, "kdindex: query point dimension does not match tree", nil)
	}
	return nil
}
