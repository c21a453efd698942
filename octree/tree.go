package octree

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Tree is an octree root together with the edge of the cube it covers. It is
// immutable and safe for concurrent reads.
type Tree[I Index] struct {
	root Node[I]
	edge int
}

// Build compresses indices, a cube of the given edge in row-major order
// (x + z*edge + y*edge*edge), into a tree.
func Build[I Index](indices []I, edge int) (Tree[I], error) {
	if err := checkEdge(edge); err != nil {
		return Tree[I]{}, err
	}
	if len(indices) != edge*edge*edge {
		return Tree[I]{}, errors.Wrapf(ErrShape, "%d indices for edge %d, want %d", len(indices), edge, edge*edge*edge)
	}
	b := builder[I]{indices: indices, stride: edge}
	return Tree[I]{root: b.build(0, 0, 0, edge), edge: edge}, nil
}

// NewTree wraps a root assembled elsewhere, checking that dense leaves only
// appear at MinEdge and branches only above it.
func NewTree[I Index](root Node[I], edge int) (Tree[I], error) {
	if err := checkEdge(edge); err != nil {
		return Tree[I]{}, err
	}
	if err := validate(root, edge); err != nil {
		return Tree[I]{}, err
	}
	return Tree[I]{root: root, edge: edge}, nil
}

func checkEdge(edge int) error {
	if edge < MinEdge || edge&(edge-1) != 0 {
		return errors.Wrapf(ErrShape, "edge %d is not a power of two >= %d", edge, MinEdge)
	}
	return nil
}

func validate[I Index](n Node[I], edge int) error {
	switch n.kind {
	case Uniform:
		return nil
	case Dense:
		if edge != MinEdge || n.values == nil {
			return errors.Wrapf(ErrShape, "dense leaf at edge %d", edge)
		}
		return nil
	case Branch:
		if edge <= MinEdge || n.children == nil {
			return errors.Wrapf(ErrShape, "branch at edge %d", edge)
		}
		for i := range n.children {
			if err := validate(n.children[i], edge/2); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Wrapf(ErrShape, "unknown node kind %d", n.kind)
	}
}

// Root returns the root node.
func (t Tree[I]) Root() Node[I] { return t.root }

// Edge returns the edge of the covered cube.
func (t Tree[I]) Edge() int { return t.edge }

// Equal reports whether t and o are structurally identical.
func (t Tree[I]) Equal(o Tree[I]) bool {
	return t.edge == o.edge && t.root.Equal(o.root)
}

// Get returns the index at (x, y, z). Coordinates must lie in [0, Edge()).
func (t Tree[I]) Get(x, y, z int) I {
	n := &t.root
	size := t.edge
	for {
		switch n.kind {
		case Uniform:
			return n.value
		case Dense:
			return n.values[x+z*MinEdge+y*MinEdge*MinEdge]
		}
		half := size / 2
		n = &n.children[Octant(x >= half, y >= half, z >= half)]
		x, y, z, size = x%half, y%half, z%half, half
	}
}

// Walk visits every node in pre-order with the edge of the cube it covers.
// Children are visited in octant order.
func (t Tree[I]) Walk(fn func(n Node[I], edge int)) {
	walk(t.root, t.edge, fn)
}

func walk[I Index](n Node[I], edge int, fn func(Node[I], int)) {
	fn(n, edge)
	if n.kind != Branch {
		return
	}
	for i := range n.children {
		walk(n.children[i], edge/2, fn)
	}
}

// Stats summarizes the shape and footprint of one or more trees.
type Stats struct {
	Uniform  int
	Dense    int
	Branch   int
	MaxDepth int
	// Bytes approximates the heap held by the nodes.
	Bytes int
}

// Nodes returns the total node count.
func (s Stats) Nodes() int { return s.Uniform + s.Dense + s.Branch }

// Add merges o into s.
func (s Stats) Add(o Stats) Stats {
	s.Uniform += o.Uniform
	s.Dense += o.Dense
	s.Branch += o.Branch
	s.Bytes += o.Bytes
	if o.MaxDepth > s.MaxDepth {
		s.MaxDepth = o.MaxDepth
	}
	return s
}

// Stats walks t and counts its nodes.
func (t Tree[I]) Stats() Stats {
	var (
		s    Stats
		zero I
	)
	s.Bytes = int(unsafe.Sizeof(t.root))
	t.Walk(func(n Node[I], edge int) {
		if depth := depthAt(t.edge, edge); depth > s.MaxDepth {
			s.MaxDepth = depth
		}
		switch n.kind {
		case Uniform:
			s.Uniform++
		case Dense:
			s.Dense++
			s.Bytes += DenseVolume * int(unsafe.Sizeof(zero))
		case Branch:
			s.Branch++
			s.Bytes += 8 * int(unsafe.Sizeof(n))
		}
	})
	return s
}

// depthAt counts levels from the root (depth 1) down to a node of the given edge.
func depthAt(root, edge int) int {
	d := 1
	for e := root; e > edge; e /= 2 {
		d++
	}
	return d
}
