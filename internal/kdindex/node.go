package kdindex

// Node is one vertex of the k-d tree: a point, the axis it was split on, and
// its two children. Axis cycles with depth (depth % dim), per spec.md §4.2.
type Node struct {
	Point Point
	Axis  int
	Left  *Node
	Right *Node
}
