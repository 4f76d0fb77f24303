package similarity

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/sapj/retrieval-cores/internal/kdindex"
	apperrors "github.com/sapj/retrieval-cores/pkg/errors"
)

// Index pairs a kdindex.Tree with the doc_id each point belongs to. The
// tree itself only knows about coordinates (kdindex.Point has no payload
// slot), so Index keeps a parallel point->doc_id map alongside it.
type Index struct {
	mu     sync.RWMutex
	tree   *kdindex.Tree
	byKey  map[string]int64
	logger *slog.Logger
}

// NewIndex creates an empty similarity index. The underlying tree is built
// lazily from the first inserted vector, which fixes its dimensionality.
func NewIndex(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default().With("component", "similarity")
	}
	return &Index{
		byKey:  make(map[string]int64),
		logger: logger,
	}
}

// Insert adds a document's feature vector to the index.
func (idx *Index) Insert(docID int64, vec kdindex.Point) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.tree == nil {
		tree, err := kdindex.Build([]kdindex.Point{vec})
		if err != nil {
			return fmt.Errorf("building similarity tree: %w", err)
		}
		idx.tree = tree
	} else {
		if err := idx.tree.Insert(vec); err != nil {
			return fmt.Errorf("inserting into similarity tree: %w", err)
		}
	}
	idx.byKey[pointKey(vec)] = docID
	return nil
}

// Related returns up to k doc_ids whose feature vectors are nearest to the
// given document's, excluding the document itself.
func (idx *Index) Related(vec kdindex.Point, k int) ([]int64, error) {
	ids, _, err := idx.RelatedStats(vec, k)
	return ids, err
}

// RelatedStats behaves like Related but additionally reports how many tree
// nodes the underlying k-NN search visited, for the kd-index nodes-visited
// telemetry.
func (idx *Index) RelatedStats(vec kdindex.Point, k int) ([]int64, int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.tree == nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrNotFoundSoft, "similarity index is empty", nil)
	}
	// Ask for one extra neighbor since the query document is itself a point
	// in the tree and will be its own nearest neighbor.
	points, visited, err := idx.tree.KNNStats(vec, k+1)
	if err != nil {
		return nil, 0, fmt.Errorf("k-NN query: %w", err)
	}
	selfKey := pointKey(vec)
	ids := make([]int64, 0, k)
	for _, p := range points {
		if pointKey(p) == selfKey {
			continue
		}
		if id, ok := idx.byKey[pointKey(p)]; ok {
			ids = append(ids, id)
		}
		if len(ids) == k {
			break
		}
	}
	return ids, visited, nil
}

// Len reports how many vectors are currently indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.tree == nil {
		return 0
	}
	return idx.tree.Len()
}

// pointKey renders a feature vector as a stable map key. Vectorize's
// outputs are deterministic functions of integer counts and an hour bucket,
// so exact float equality is safe here.
func pointKey(p kdindex.Point) string {
	var b strings.Builder
	for i, v := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}
